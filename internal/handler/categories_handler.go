package handler

import (
	"net/http"

	"github.com/Jjjbit/ledger/internal/domain"
	"github.com/Jjjbit/ledger/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Categories Handlers
// ============================================================

type createCategoryRequest struct {
	LedgerID string              `json:"ledger_id,omitempty"`
	ParentID string              `json:"parent_id,omitempty"`
	Name     string              `json:"name"`
	Type     domain.CategoryType `json:"type,omitempty"`
}

func createCategoryHandler(svc *service.CategoriesService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/categories")
		defer span.End()

		var req createCategoryRequest
		if err := decodeBody(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		ownerID := UserIDFromContext(ctx)

		var (
			c   *domain.Category
			err error
		)
		if req.ParentID != "" {
			c, err = svc.CreateSub(ctx, ownerID, req.ParentID, req.Name)
		} else {
			c, err = svc.CreateRoot(ctx, ownerID, req.LedgerID, req.Name, req.Type)
		}
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	}
}

type renameCategoryRequest struct {
	Name string `json:"name"`
}

func renameCategoryHandler(svc *service.CategoriesService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/categories/{categoryId}")
		defer span.End()

		var req renameCategoryRequest
		if err := decodeBody(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		c, err := svc.Rename(ctx, UserIDFromContext(ctx), chi.URLParam(r, "categoryId"), req.Name)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

type moveCategoryRequest struct {
	ParentID string `json:"parent_id"`
}

func changeCategoryParentHandler(svc *service.CategoriesService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/categories/{categoryId}/move")
		defer span.End()

		var req moveCategoryRequest
		if err := decodeBody(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		c, err := svc.ChangeParent(ctx, UserIDFromContext(ctx), chi.URLParam(r, "categoryId"), req.ParentID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func promoteCategoryHandler(svc *service.CategoriesService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/categories/{categoryId}/promote")
		defer span.End()

		c, err := svc.Promote(ctx, UserIDFromContext(ctx), chi.URLParam(r, "categoryId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func demoteCategoryHandler(svc *service.CategoriesService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/categories/{categoryId}/demote")
		defer span.End()

		var req moveCategoryRequest
		if err := decodeBody(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		c, err := svc.Demote(ctx, UserIDFromContext(ctx), chi.URLParam(r, "categoryId"), req.ParentID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func deleteCategoryHandler(svc *service.CategoriesService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/categories/{categoryId}")
		defer span.End()

		deleteTx := queryBool(r, "delete_transactions")
		migrateTo := r.URL.Query().Get("migrate_to")
		err := svc.Delete(ctx, UserIDFromContext(ctx), chi.URLParam(r, "categoryId"), deleteTx, migrateTo)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ledgerCategoriesHandler(svc *service.CategoriesService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/ledgers/{ledgerId}/categories")
		defer span.End()

		categories, err := svc.ListByLedger(ctx, UserIDFromContext(ctx), chi.URLParam(r, "ledgerId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, categories)
	}
}

func categoryTransactionsHandler(svc *service.CategoriesService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/categories/{categoryId}/transactions")
		defer span.End()

		txs, err := svc.Transactions(ctx, UserIDFromContext(ctx), chi.URLParam(r, "categoryId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, txs)
	}
}
