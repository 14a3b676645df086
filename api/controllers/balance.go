package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/centpay/centpay-backend/api/responses"
	"github.com/centpay/centpay-backend/api/validators"
	"github.com/centpay/centpay-backend/internal/ledger"
	"github.com/centpay/centpay-backend/pkg/db/models"
	pkgerrors "github.com/centpay/centpay-backend/pkg/errors"
	"github.com/centpay/centpay-backend/pkg/logger"
)

// Balance returns the caller's folded balance per bucket.
func Balance(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := svc.GetBalance(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, balance)
	}
}

// Movements lists the caller's ledger movements newest first.
func Movements(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1_000_000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		movements, err := svc.ListMovements(r.Context(), userID, limit, offset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]movementResponse, 0, len(movements))
		for _, m := range movements {
			out = append(out, newMovementResponse(m))
		}
		responses.WriteSuccess(w, map[string]any{
			"movements": out,
			"limit":     limit,
			"offset":    offset,
		})
	}
}

type movementResponse struct {
	MovementID         uuid.UUID `json:"movement_id"`
	AmountCents        int64     `json:"amount_cents"`
	Bucket             string    `json:"bucket"`
	MovementType       string    `json:"movement_type"`
	BalanceBeforeCents int64     `json:"balance_before_cents"`
	BalanceAfterCents  int64     `json:"balance_after_cents"`
	ReferenceType      string    `json:"reference_type"`
	ReferenceID        uuid.UUID `json:"reference_id"`
	Description        string    `json:"description,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

func newMovementResponse(m models.BalanceMovement) movementResponse {
	return movementResponse{
		MovementID:         m.ID,
		AmountCents:        m.AmountCents,
		Bucket:             string(m.Bucket),
		MovementType:       string(m.MovementType),
		BalanceBeforeCents: m.BalanceBeforeCents,
		BalanceAfterCents:  m.BalanceAfterCents,
		ReferenceType:      m.ReferenceType,
		ReferenceID:        m.ReferenceID,
		Description:        m.Description,
		CreatedAt:          m.CreatedAt,
	}
}
