package handler

import (
	"net/http"

	"github.com/Jjjbit/ledger/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Ledgers Handlers
// ============================================================

type createLedgerRequest struct {
	Name string `json:"name"`
}

func createLedgerHandler(svc *service.LedgersService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/ledgers")
		defer span.End()

		var req createLedgerRequest
		if err := decodeBody(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		l, err := svc.Create(ctx, UserIDFromContext(ctx), req.Name)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, l)
	}
}

func listLedgersHandler(svc *service.LedgersService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/ledgers")
		defer span.End()

		ledgers, err := svc.List(ctx, UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, ledgers)
	}
}

func getLedgerHandler(svc *service.LedgersService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/ledgers/{ledgerId}")
		defer span.End()

		l, err := svc.Get(ctx, UserIDFromContext(ctx), chi.URLParam(r, "ledgerId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, l)
	}
}

func copyLedgerHandler(svc *service.LedgersService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/ledgers/{ledgerId}/copy")
		defer span.End()

		var req createLedgerRequest
		if err := decodeBody(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		l, err := svc.Copy(ctx, UserIDFromContext(ctx), chi.URLParam(r, "ledgerId"), req.Name)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, l)
	}
}

func deleteLedgerHandler(svc *service.LedgersService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/ledgers/{ledgerId}")
		defer span.End()

		if err := svc.Delete(ctx, UserIDFromContext(ctx), chi.URLParam(r, "ledgerId")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
