package handler

import (
	"net/http"

	"github.com/Jjjbit/ledger/internal/domain"
	"github.com/Jjjbit/ledger/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ============================================================
// Budgets Handlers
// ============================================================

type createBudgetRequest struct {
	CategoryID string              `json:"category_id,omitempty"`
	Amount     decimal.Decimal     `json:"amount"`
	Period     domain.BudgetPeriod `json:"period"`
}

func createBudgetHandler(svc *service.BudgetsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/budgets")
		defer span.End()

		var req createBudgetRequest
		if err := decodeBody(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		b, err := svc.Create(ctx, UserIDFromContext(ctx), req.CategoryID, req.Amount, req.Period)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, b)
	}
}

type updateBudgetRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func updateBudgetHandler(svc *service.BudgetsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/budgets/{budgetId}")
		defer span.End()

		var req updateBudgetRequest
		if err := decodeBody(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		b, err := svc.UpdateAmount(ctx, UserIDFromContext(ctx), chi.URLParam(r, "budgetId"), req.Amount)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

func deleteBudgetHandler(svc *service.BudgetsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/budgets/{budgetId}")
		defer span.End()

		if err := svc.Delete(ctx, UserIDFromContext(ctx), chi.URLParam(r, "budgetId")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type mergeBudgetsRequest struct {
	TargetID  string   `json:"target_id"`
	SourceIDs []string `json:"source_ids"`
}

func mergeBudgetsHandler(svc *service.BudgetsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/budgets/merge")
		defer span.End()

		var req mergeBudgetsRequest
		if err := decodeBody(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		b, err := svc.Merge(ctx, UserIDFromContext(ctx), req.TargetID, req.SourceIDs)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

func listBudgetReportsHandler(svc *service.BudgetsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/budgets")
		defer span.End()

		reports, err := svc.ListReports(ctx, UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, reports)
	}
}

func budgetReportHandler(svc *service.BudgetsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/budgets/{budgetId}")
		defer span.End()

		report, err := svc.Report(ctx, UserIDFromContext(ctx), chi.URLParam(r, "budgetId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}
