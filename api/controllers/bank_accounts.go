package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/centpay/centpay-backend/api/responses"
	"github.com/centpay/centpay-backend/api/validators"
	"github.com/centpay/centpay-backend/internal/bankaccounts"
	"github.com/centpay/centpay-backend/pkg/db/models"
	pkgerrors "github.com/centpay/centpay-backend/pkg/errors"
	"github.com/centpay/centpay-backend/pkg/logger"
)

// BankAccountRegister creates a pending payout destination for the caller.
func BankAccountRegister(svc bankaccounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bank account service unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload bankAccountRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		account, err := svc.Register(r.Context(), bankaccounts.RegisterInput{
			UserID:        userID,
			BankCode:      payload.BankCode,
			Branch:        payload.Branch,
			AccountNumber: payload.AccountNumber,
			HolderName:    validators.SanitizeString(payload.HolderName, 255),
			Document:      validators.SanitizeString(payload.Document, 32),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newBankAccountResponse(account))
	}
}

// BankAccountList returns the caller's registered payout destinations.
func BankAccountList(svc bankaccounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bank account service unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		accounts, err := svc.List(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]bankAccountResponse, 0, len(accounts))
		for i := range accounts {
			out = append(out, newBankAccountResponse(&accounts[i]))
		}
		responses.WriteSuccess(w, map[string]any{"bank_accounts": out})
	}
}

// BankAccountDetail returns one payout destination owned by the caller.
func BankAccountDetail(svc bankaccounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bank account service unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := pathUUID(r, "bankAccountId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		account, err := svc.Get(r.Context(), userID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newBankAccountResponse(account))
	}
}

// BankAccountVerify marks an account as verified. Admin only.
func BankAccountVerify(svc bankaccounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bank account service unavailable"))
			return
		}

		id, err := pathUUID(r, "bankAccountId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Verify(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "verified"})
	}
}

// BankAccountReject marks an account as rejected. Admin only.
func BankAccountReject(svc bankaccounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bank account service unavailable"))
			return
		}

		id, err := pathUUID(r, "bankAccountId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Reject(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "rejected"})
	}
}

type bankAccountRequest struct {
	BankCode      string `json:"bank_code" validate:"required,max=10"`
	Branch        string `json:"branch" validate:"required,max=20"`
	AccountNumber string `json:"account_number" validate:"required,max=30"`
	HolderName    string `json:"holder_name" validate:"required,max=255"`
	Document      string `json:"document" validate:"required,max=32"`
}

type bankAccountResponse struct {
	BankAccountID uuid.UUID `json:"bank_account_id"`
	BankCode      string    `json:"bank_code"`
	Branch        string    `json:"branch"`
	AccountNumber string    `json:"account_number"`
	HolderName    string    `json:"holder_name"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

func newBankAccountResponse(account *models.BankAccount) bankAccountResponse {
	if account == nil {
		return bankAccountResponse{}
	}
	return bankAccountResponse{
		BankAccountID: account.ID,
		BankCode:      account.BankCode,
		Branch:        account.Branch,
		AccountNumber: account.AccountNumber,
		HolderName:    account.HolderName,
		Status:        string(account.Status),
		CreatedAt:     account.CreatedAt,
	}
}
