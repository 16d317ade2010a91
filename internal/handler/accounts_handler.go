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
// Accounts Handlers
// ============================================================

type createAccountRequest struct {
	Kind               domain.AccountKind   `json:"kind"`
	Name               string               `json:"name"`
	Type               domain.AccountType   `json:"type,omitempty"`
	Balance            decimal.Decimal      `json:"balance"`
	Currency           string               `json:"currency,omitempty"`
	Notes              string               `json:"notes,omitempty"`
	IncludedInNetWorth *bool                `json:"included_in_net_worth,omitempty"`
	Selectable         *bool                `json:"selectable,omitempty"`
	CreditLimit        decimal.Decimal      `json:"credit_limit,omitempty"`
	CurrentDebt        decimal.Decimal      `json:"current_debt,omitempty"`
	BillDay            int                  `json:"bill_day,omitempty"`
	DueDay             int                  `json:"due_day,omitempty"`
	LoanAmount         decimal.Decimal      `json:"loan_amount,omitempty"`
	AnnualRate         decimal.Decimal      `json:"annual_rate,omitempty"`
	TotalPeriods       int                  `json:"total_periods,omitempty"`
	RepaidPeriods      int                  `json:"repaid_periods,omitempty"`
	RepaymentType      domain.RepaymentType `json:"repayment_type,omitempty"`
	ReceivingAccountID string               `json:"receiving_account_id,omitempty"`
	RepaymentDay       int                  `json:"repayment_day,omitempty"`
	Amount             decimal.Decimal      `json:"amount,omitempty"`
	ToAccountID        string               `json:"to_account_id,omitempty"`
	FromAccountID      string               `json:"from_account_id,omitempty"`
	LedgerID           string               `json:"ledger_id,omitempty"`
}

func createAccountHandler(svc *service.AccountsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/accounts")
		defer span.End()

		var req createAccountRequest
		if err := decodeBody(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		ownerID := UserIDFromContext(ctx)
		included := true
		if req.IncludedInNetWorth != nil {
			included = *req.IncludedInNetWorth
		}
		selectable := true
		if req.Selectable != nil {
			selectable = *req.Selectable
		}

		var (
			account *domain.Account
			err     error
		)
		switch req.Kind {
		case domain.KindBasic, "":
			account, err = svc.CreateBasic(ctx, ownerID, service.CreateBasicParams{
				Name:               req.Name,
				Type:               req.Type,
				Balance:            req.Balance,
				Currency:           req.Currency,
				Notes:              req.Notes,
				IncludedInNetWorth: included,
				Selectable:         selectable,
			})
		case domain.KindCredit:
			account, err = svc.CreateCredit(ctx, ownerID, service.CreateCreditParams{
				Name:               req.Name,
				Balance:            req.Balance,
				CreditLimit:        req.CreditLimit,
				CurrentDebt:        req.CurrentDebt,
				BillDay:            req.BillDay,
				DueDay:             req.DueDay,
				Notes:              req.Notes,
				IncludedInNetWorth: included,
				Selectable:         selectable,
			})
		case domain.KindLoan:
			account, err = svc.CreateLoan(ctx, ownerID, service.CreateLoanParams{
				Name:               req.Name,
				LoanAmount:         req.LoanAmount,
				AnnualRate:         req.AnnualRate,
				TotalPeriods:       req.TotalPeriods,
				RepaidPeriods:      req.RepaidPeriods,
				RepaymentType:      req.RepaymentType,
				ReceivingAccountID: req.ReceivingAccountID,
				RepaymentDay:       req.RepaymentDay,
				Notes:              req.Notes,
				IncludedInNetWorth: included,
			})
		case domain.KindBorrowing:
			account, err = svc.CreateBorrowing(ctx, ownerID, service.CreateBorrowingParams{
				Name:        req.Name,
				Amount:      req.Amount,
				ToAccountID: req.ToAccountID,
				LedgerID:    req.LedgerID,
				Notes:       req.Notes,
			})
		case domain.KindLending:
			account, err = svc.CreateLending(ctx, ownerID, service.CreateLendingParams{
				Name:          req.Name,
				Amount:        req.Amount,
				FromAccountID: req.FromAccountID,
				LedgerID:      req.LedgerID,
				Notes:         req.Notes,
			})
		default:
			err = &domain.ErrValidation{Field: "kind", Message: "unknown account kind"}
		}
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, account)
	}
}

func listAccountsHandler(svc *service.AccountsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts")
		defer span.End()

		accounts, err := svc.List(ctx, UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, accounts)
	}
}

func getAccountHandler(svc *service.AccountsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts/{accountId}")
		defer span.End()

		account, err := svc.Get(ctx, UserIDFromContext(ctx), chi.URLParam(r, "accountId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, account)
	}
}

type editAccountRequest struct {
	Name               *string          `json:"name,omitempty"`
	Notes              *string          `json:"notes,omitempty"`
	Balance            *decimal.Decimal `json:"balance,omitempty"`
	IncludedInNetWorth *bool            `json:"included_in_net_worth,omitempty"`
	Selectable         *bool            `json:"selectable,omitempty"`
	CreditLimit        *decimal.Decimal `json:"credit_limit,omitempty"`
	CurrentDebt        *decimal.Decimal `json:"current_debt,omitempty"`
	BillDay            *int             `json:"bill_day,omitempty"`
	DueDay             *int             `json:"due_day,omitempty"`
	AnnualRate         *decimal.Decimal `json:"annual_rate,omitempty"`
	TotalPeriods       *int             `json:"total_periods,omitempty"`
	RepaidPeriods      *int             `json:"repaid_periods,omitempty"`
}

func editAccountHandler(svc *service.AccountsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/accounts/{accountId}")
		defer span.End()

		var req editAccountRequest
		if err := decodeBody(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		account, err := svc.Edit(ctx, UserIDFromContext(ctx), chi.URLParam(r, "accountId"), service.EditAccountParams{
			Name:               req.Name,
			Notes:              req.Notes,
			Balance:            req.Balance,
			IncludedInNetWorth: req.IncludedInNetWorth,
			Selectable:         req.Selectable,
			CreditLimit:        req.CreditLimit,
			CurrentDebt:        req.CurrentDebt,
			BillDay:            req.BillDay,
			DueDay:             req.DueDay,
			AnnualRate:         req.AnnualRate,
			TotalPeriods:       req.TotalPeriods,
			RepaidPeriods:      req.RepaidPeriods,
		})
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, account)
	}
}

func hideAccountHandler(svc *service.AccountsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/accounts/{accountId}/hide")
		defer span.End()

		if err := svc.Hide(ctx, UserIDFromContext(ctx), chi.URLParam(r, "accountId")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func deleteAccountHandler(svc *service.AccountsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/accounts/{accountId}")
		defer span.End()

		deleteTx := queryBool(r, "delete_transactions")
		if err := svc.Delete(ctx, UserIDFromContext(ctx), chi.URLParam(r, "accountId"), deleteTx); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type adjustBalanceRequest struct {
	Direction string          `json:"direction"`
	Amount    decimal.Decimal `json:"amount"`
}

func adjustBalanceHandler(svc *service.AccountsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/accounts/{accountId}/adjust")
		defer span.End()

		var req adjustBalanceRequest
		if err := decodeBody(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		ownerID := UserIDFromContext(ctx)
		accountID := chi.URLParam(r, "accountId")

		var (
			account *domain.Account
			err     error
		)
		switch req.Direction {
		case "credit":
			account, err = svc.ManualCredit(ctx, ownerID, accountID, req.Amount)
		case "debit":
			account, err = svc.ManualDebit(ctx, ownerID, accountID, req.Amount)
		default:
			err = &domain.ErrValidation{Field: "direction", Message: "must be credit or debit"}
		}
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, account)
	}
}

type repayDebtRequest struct {
	FromAccountID string          `json:"from_account_id"`
	Amount        decimal.Decimal `json:"amount"`
	LedgerID      string          `json:"ledger_id"`
}

func repayDebtHandler(svc *service.AccountsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/accounts/{accountId}/repay-debt")
		defer span.End()

		var req repayDebtRequest
		if err := decodeBody(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		tx, err := svc.RepayDebt(ctx, UserIDFromContext(ctx), chi.URLParam(r, "accountId"), req.FromAccountID, req.Amount, req.LedgerID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, tx)
	}
}

type repayRequest struct {
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	FromAccountID string           `json:"from_account_id,omitempty"`
	LedgerID      string           `json:"ledger_id,omitempty"`
}

func repayLoanHandler(svc *service.AccountsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/accounts/{accountId}/repay-loan")
		defer span.End()

		var req repayRequest
		if err := decodeBody(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		account, err := svc.RepayLoan(ctx, UserIDFromContext(ctx), chi.URLParam(r, "accountId"), service.RepayOptions{
			Amount:        req.Amount,
			FromAccountID: req.FromAccountID,
			LedgerID:      req.LedgerID,
		})
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, account)
	}
}

type counterpartyRepayRequest struct {
	AccountID string          `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	LedgerID  string          `json:"ledger_id"`
}

func repayBorrowingHandler(svc *service.AccountsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/accounts/{accountId}/repay-borrowing")
		defer span.End()

		var req counterpartyRepayRequest
		if err := decodeBody(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		tx, err := svc.RepayBorrowing(ctx, UserIDFromContext(ctx), chi.URLParam(r, "accountId"), req.AccountID, req.Amount, req.LedgerID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, tx)
	}
}

func receiveLendingHandler(svc *service.AccountsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/accounts/{accountId}/receive-repayment")
		defer span.End()

		var req counterpartyRepayRequest
		if err := decodeBody(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		tx, err := svc.ReceiveLendingRepayment(ctx, UserIDFromContext(ctx), chi.URLParam(r, "accountId"), req.AccountID, req.Amount, req.LedgerID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, tx)
	}
}

// ============================================================
// Installment Plans
// ============================================================

type createPlanRequest struct {
	AccountID    string          `json:"account_id"`
	Description  string          `json:"description"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	TotalPeriods int             `json:"total_periods"`
	FeeRate      decimal.Decimal `json:"fee_rate"`
}

func createPlanHandler(svc *service.AccountsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/installment-plans")
		defer span.End()

		var req createPlanRequest
		if err := decodeBody(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		plan, err := svc.CreateInstallmentPlan(ctx, UserIDFromContext(ctx), service.CreatePlanParams{
			AccountID:    req.AccountID,
			Description:  req.Description,
			TotalAmount:  req.TotalAmount,
			TotalPeriods: req.TotalPeriods,
			FeeRate:      req.FeeRate,
		})
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, plan)
	}
}

func repayPlanHandler(svc *service.AccountsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/installment-plans/{planId}/repay")
		defer span.End()

		var req repayRequest
		if err := decodeBody(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		plan, err := svc.RepayInstallmentPlan(ctx, UserIDFromContext(ctx), chi.URLParam(r, "planId"), service.RepayOptions{
			Amount:        req.Amount,
			FromAccountID: req.FromAccountID,
			LedgerID:      req.LedgerID,
		})
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, plan)
	}
}
