package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/centpay/centpay-backend/api/responses"
	"github.com/centpay/centpay-backend/api/validators"
	"github.com/centpay/centpay-backend/internal/withdrawal"
	"github.com/centpay/centpay-backend/pkg/db/models"
	pkgerrors "github.com/centpay/centpay-backend/pkg/errors"
	"github.com/centpay/centpay-backend/pkg/logger"
)

// WithdrawalRequest debits the caller's available balance toward a verified
// bank account.
func WithdrawalRequest(svc withdrawal.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "withdrawal service unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload withdrawalRequestBody
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		key := strings.TrimSpace(payload.IdempotencyKey)
		if key == "" {
			key = strings.TrimSpace(r.Header.Get("Idempotency-Key"))
		}

		wd, err := svc.Request(r.Context(), withdrawal.RequestInput{
			UserID:         userID,
			BankAccountID:  payload.BankAccountID,
			AmountCents:    payload.AmountCents,
			IdempotencyKey: key,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newWithdrawalResponse(wd))
	}
}

// WithdrawalList pages through the caller's withdrawals.
func WithdrawalList(svc withdrawal.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "withdrawal service unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1_000_000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		withdrawals, err := svc.List(r.Context(), userID, limit, offset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]withdrawalResponse, 0, len(withdrawals))
		for i := range withdrawals {
			out = append(out, newWithdrawalResponse(&withdrawals[i]))
		}
		responses.WriteSuccess(w, map[string]any{
			"withdrawals": out,
			"limit":       limit,
			"offset":      offset,
		})
	}
}

// WithdrawalDetail returns one withdrawal owned by the caller.
func WithdrawalDetail(svc withdrawal.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "withdrawal service unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := pathUUID(r, "withdrawalId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		wd, err := svc.Get(r.Context(), userID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newWithdrawalResponse(wd))
	}
}

// WithdrawalConfirm marks a withdrawal as paid out by the external rail.
// Admin only.
func WithdrawalConfirm(svc withdrawal.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "withdrawal service unavailable"))
			return
		}

		id, err := pathUUID(r, "withdrawalId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload withdrawalConfirmBody
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Confirm(r.Context(), id, payload.ExternalReference); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "completed"})
	}
}

// WithdrawalFail refunds a withdrawal the rail rejected. Admin only.
func WithdrawalFail(svc withdrawal.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "withdrawal service unavailable"))
			return
		}

		id, err := pathUUID(r, "withdrawalId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload withdrawalFailBody
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Fail(r.Context(), id, payload.Reason); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "failed"})
	}
}

type withdrawalRequestBody struct {
	BankAccountID  uuid.UUID `json:"bank_account_id" validate:"required"`
	AmountCents    int64     `json:"amount_cents" validate:"required,min=1"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
}

type withdrawalConfirmBody struct {
	ExternalReference string `json:"external_reference" validate:"required,max=255"`
}

type withdrawalFailBody struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type withdrawalResponse struct {
	WithdrawalID      uuid.UUID  `json:"withdrawal_id"`
	BankAccountID     uuid.UUID  `json:"bank_account_id"`
	AmountCents       int64      `json:"amount_cents"`
	FeeCents          int64      `json:"fee_cents"`
	NetAmountCents    int64      `json:"net_amount_cents"`
	Status            string     `json:"status"`
	ExternalReference *string    `json:"external_reference,omitempty"`
	FailureReason     *string    `json:"failure_reason,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

func newWithdrawalResponse(wd *models.Withdrawal) withdrawalResponse {
	if wd == nil {
		return withdrawalResponse{}
	}
	return withdrawalResponse{
		WithdrawalID:      wd.ID,
		BankAccountID:     wd.BankAccountID,
		AmountCents:       wd.AmountCents,
		FeeCents:          wd.FeeCents,
		NetAmountCents:    wd.NetAmountCents,
		Status:            string(wd.Status),
		ExternalReference: wd.ExternalReference,
		FailureReason:     wd.FailureReason,
		CompletedAt:       wd.CompletedAt,
		CreatedAt:         wd.CreatedAt,
	}
}
