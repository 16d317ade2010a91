package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Jjjbit/ledger/internal/domain"
	"github.com/Jjjbit/ledger/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ============================================================
// Transactions Handlers
// ============================================================

type recordTransactionRequest struct {
	Type          domain.TransactionType `json:"type"`
	Amount        decimal.Decimal        `json:"amount"`
	Date          time.Time              `json:"date,omitempty"`
	Note          string                 `json:"note,omitempty"`
	FromAccountID string                 `json:"from_account_id,omitempty"`
	ToAccountID   string                 `json:"to_account_id,omitempty"`
	LedgerID      string                 `json:"ledger_id"`
	CategoryID    string                 `json:"category_id,omitempty"`
}

func recordTransactionHandler(svc *service.TransactionsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transactions")
		defer span.End()

		var req recordTransactionRequest
		if err := decodeBody(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		tx, err := svc.Record(ctx, UserIDFromContext(ctx), service.RecordParams{
			Type:          req.Type,
			Amount:        req.Amount,
			Date:          req.Date,
			Note:          req.Note,
			FromAccountID: req.FromAccountID,
			ToAccountID:   req.ToAccountID,
			LedgerID:      req.LedgerID,
			CategoryID:    req.CategoryID,
		})
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, tx)
	}
}

func getTransactionHandler(svc *service.TransactionsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/transactions/{transactionId}")
		defer span.End()

		tx, err := svc.Get(ctx, UserIDFromContext(ctx), chi.URLParam(r, "transactionId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, tx)
	}
}

func deleteTransactionHandler(svc *service.TransactionsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/transactions/{transactionId}")
		defer span.End()

		if err := svc.Delete(ctx, UserIDFromContext(ctx), chi.URLParam(r, "transactionId")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ledgerTransactionsHandler(svc *service.TransactionsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/ledgers/{ledgerId}/transactions")
		defer span.End()

		txs, err := svc.ListByLedger(ctx, UserIDFromContext(ctx), chi.URLParam(r, "ledgerId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, txs)
	}
}

func accountTransactionsHandler(svc *service.TransactionsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts/{accountId}/transactions")
		defer span.End()

		ownerID := UserIDFromContext(ctx)
		accountID := chi.URLParam(r, "accountId")

		// Optional ?year=&month= narrows the list to one month.
		yearStr := r.URL.Query().Get("year")
		monthStr := r.URL.Query().Get("month")
		if yearStr != "" || monthStr != "" {
			year, err := strconv.Atoi(yearStr)
			if err != nil {
				handleServiceError(w, &domain.ErrValidation{Field: "year", Message: "must be a number"}, logger)
				return
			}
			month, err := strconv.Atoi(monthStr)
			if err != nil || month < 1 || month > 12 {
				handleServiceError(w, &domain.ErrValidation{Field: "month", Message: "must be 1 through 12"}, logger)
				return
			}
			txs, err := svc.ListByAccountMonth(ctx, ownerID, accountID, year, time.Month(month))
			if err != nil {
				handleServiceError(w, err, logger)
				return
			}
			writeJSON(w, http.StatusOK, txs)
			return
		}

		txs, err := svc.ListByAccount(ctx, ownerID, accountID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, txs)
	}
}
