package handler

import (
	"net/http"
	"time"

	"github.com/Jjjbit/ledger/internal/infra/observability"
	"github.com/Jjjbit/ledger/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Services bundles everything the router exposes.
type Services struct {
	Auth         *service.AuthService
	Accounts     *service.AccountsService
	Transactions *service.TransactionsService
	Categories   *service.CategoriesService
	Ledgers      *service.LedgersService
	Budgets      *service.BudgetsService
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svcs Services, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler())
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.Handler())

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// Public
		r.Post("/auth/register", registerHandler(svcs.Auth, logger))
		r.Post("/auth/login", loginHandler(svcs.Auth, logger))

		// Authenticated
		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(svcs.Auth, logger))

			r.Get("/me", profileHandler(svcs.Auth, logger))
			r.Patch("/me", changeUsernameHandler(svcs.Auth, logger))
			r.Put("/me/password", changePasswordHandler(svcs.Auth, logger))
			r.Get("/me/net-worth", netWorthHandler(svcs.Auth, logger))
			r.Post("/me/net-worth/refresh", refreshNetWorthHandler(svcs.Auth, logger))

			// Accounts
			r.Post("/accounts", createAccountHandler(svcs.Accounts, logger))
			r.Get("/accounts", listAccountsHandler(svcs.Accounts, logger))
			r.Get("/accounts/{accountId}", getAccountHandler(svcs.Accounts, logger))
			r.Patch("/accounts/{accountId}", editAccountHandler(svcs.Accounts, logger))
			r.Delete("/accounts/{accountId}", deleteAccountHandler(svcs.Accounts, logger))
			r.Post("/accounts/{accountId}/hide", hideAccountHandler(svcs.Accounts, logger))
			r.Post("/accounts/{accountId}/adjust", adjustBalanceHandler(svcs.Accounts, logger))
			r.Post("/accounts/{accountId}/repay-debt", repayDebtHandler(svcs.Accounts, logger))
			r.Post("/accounts/{accountId}/repay-loan", repayLoanHandler(svcs.Accounts, logger))
			r.Post("/accounts/{accountId}/repay-borrowing", repayBorrowingHandler(svcs.Accounts, logger))
			r.Post("/accounts/{accountId}/receive-repayment", receiveLendingHandler(svcs.Accounts, logger))
			r.Get("/accounts/{accountId}/transactions", accountTransactionsHandler(svcs.Transactions, logger))

			// Installment plans
			r.Post("/installment-plans", createPlanHandler(svcs.Accounts, logger))
			r.Post("/installment-plans/{planId}/repay", repayPlanHandler(svcs.Accounts, logger))

			// Transactions
			r.Post("/transactions", recordTransactionHandler(svcs.Transactions, logger))
			r.Get("/transactions/{transactionId}", getTransactionHandler(svcs.Transactions, logger))
			r.Delete("/transactions/{transactionId}", deleteTransactionHandler(svcs.Transactions, logger))

			// Ledgers
			r.Post("/ledgers", createLedgerHandler(svcs.Ledgers, logger))
			r.Get("/ledgers", listLedgersHandler(svcs.Ledgers, logger))
			r.Get("/ledgers/{ledgerId}", getLedgerHandler(svcs.Ledgers, logger))
			r.Post("/ledgers/{ledgerId}/copy", copyLedgerHandler(svcs.Ledgers, logger))
			r.Delete("/ledgers/{ledgerId}", deleteLedgerHandler(svcs.Ledgers, logger))
			r.Get("/ledgers/{ledgerId}/transactions", ledgerTransactionsHandler(svcs.Transactions, logger))
			r.Get("/ledgers/{ledgerId}/categories", ledgerCategoriesHandler(svcs.Categories, logger))

			// Categories
			r.Post("/categories", createCategoryHandler(svcs.Categories, logger))
			r.Patch("/categories/{categoryId}", renameCategoryHandler(svcs.Categories, logger))
			r.Delete("/categories/{categoryId}", deleteCategoryHandler(svcs.Categories, logger))
			r.Post("/categories/{categoryId}/move", changeCategoryParentHandler(svcs.Categories, logger))
			r.Post("/categories/{categoryId}/promote", promoteCategoryHandler(svcs.Categories, logger))
			r.Post("/categories/{categoryId}/demote", demoteCategoryHandler(svcs.Categories, logger))
			r.Get("/categories/{categoryId}/transactions", categoryTransactionsHandler(svcs.Categories, logger))

			// Budgets
			r.Post("/budgets", createBudgetHandler(svcs.Budgets, logger))
			r.Get("/budgets", listBudgetReportsHandler(svcs.Budgets, logger))
			r.Get("/budgets/{budgetId}", budgetReportHandler(svcs.Budgets, logger))
			r.Put("/budgets/{budgetId}", updateBudgetHandler(svcs.Budgets, logger))
			r.Delete("/budgets/{budgetId}", deleteBudgetHandler(svcs.Budgets, logger))
			r.Post("/budgets/merge", mergeBudgetsHandler(svcs.Budgets, logger))

			// Operational summary
			r.Get("/metrics/summary", metricsSummaryHandler(metrics, logger))

			// Admin: template category tree
			r.Group(func(r chi.Router) {
				r.Use(AdminOnly(logger))
				r.Get("/admin/template-categories", listTemplateCategoriesHandler(svcs.Categories, logger))
				r.Post("/admin/template-categories", createTemplateCategoryHandler(svcs.Categories, logger))
				r.Delete("/admin/template-categories/{categoryId}", deleteTemplateCategoryHandler(svcs.Categories, logger))
			})
		})
	})

	return r
}

// ============================================================
// Health & metrics
// ============================================================

func healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func metricsSummaryHandler(metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.Snapshot())
	}
}

// ============================================================
// Template categories (admin)
// ============================================================

func listTemplateCategoriesHandler(svc *service.CategoriesService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/template-categories")
		defer span.End()

		categories, err := svc.ListTemplateCategories(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, categories)
	}
}

func createTemplateCategoryHandler(svc *service.CategoriesService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/template-categories")
		defer span.End()

		var req createCategoryRequest
		if err := decodeBody(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		c, err := svc.CreateTemplateCategory(ctx, req.Name, req.Type, req.ParentID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	}
}

func deleteTemplateCategoryHandler(svc *service.CategoriesService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/admin/template-categories/{categoryId}")
		defer span.End()

		if err := svc.DeleteTemplateCategory(ctx, chi.URLParam(r, "categoryId")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
