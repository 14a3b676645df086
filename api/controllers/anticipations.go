package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/centpay/centpay-backend/api/responses"
	"github.com/centpay/centpay-backend/api/validators"
	"github.com/centpay/centpay-backend/internal/anticipation"
	"github.com/centpay/centpay-backend/pkg/db/models"
	pkgerrors "github.com/centpay/centpay-backend/pkg/errors"
	"github.com/centpay/centpay-backend/pkg/logger"
)

// AnticipationRequest opens an anticipation batch over the caller's held
// commissions.
func AnticipationRequest(svc anticipation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "anticipation service unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload anticipationRequestBody
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		key := strings.TrimSpace(payload.IdempotencyKey)
		if key == "" {
			key = strings.TrimSpace(r.Header.Get("Idempotency-Key"))
		}

		batch, err := svc.Request(r.Context(), anticipation.RequestInput{
			UserID:         userID,
			CommissionIDs:  payload.CommissionIDs,
			IdempotencyKey: key,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newAnticipationResponse(batch))
	}
}

// AnticipationList pages through the caller's anticipation batches.
func AnticipationList(svc anticipation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "anticipation service unavailable"))
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

		batches, err := svc.List(r.Context(), userID, limit, offset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]anticipationResponse, 0, len(batches))
		for i := range batches {
			out = append(out, newAnticipationResponse(&batches[i]))
		}
		responses.WriteSuccess(w, map[string]any{
			"anticipations": out,
			"limit":         limit,
			"offset":        offset,
		})
	}
}

// AnticipationDetail returns one batch owned by the caller.
func AnticipationDetail(svc anticipation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "anticipation service unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := pathUUID(r, "anticipationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		batch, err := svc.Get(r.Context(), userID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newAnticipationResponse(batch))
	}
}

// AnticipationProcess settles a requested batch. Admin only; the operation
// is atomic across the whole batch.
func AnticipationProcess(svc anticipation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "anticipation service unavailable"))
			return
		}

		id, err := pathUUID(r, "anticipationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		batch, err := svc.Process(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newAnticipationResponse(batch))
	}
}

type anticipationRequestBody struct {
	CommissionIDs  []uuid.UUID `json:"commission_ids" validate:"required,min=1,max=100"`
	IdempotencyKey string      `json:"idempotency_key,omitempty"`
}

type anticipationResponse struct {
	AnticipationID        uuid.UUID  `json:"anticipation_id"`
	Status                string     `json:"status"`
	FeePercentage         string     `json:"fee_percentage"`
	TotalOriginalCents    int64      `json:"total_original_cents"`
	TotalAnticipatedCents int64      `json:"total_anticipated_cents"`
	FeeCents              int64      `json:"fee_cents"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
	FailureReason         *string    `json:"failure_reason,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
}

func newAnticipationResponse(batch *models.Anticipation) anticipationResponse {
	if batch == nil {
		return anticipationResponse{}
	}
	return anticipationResponse{
		AnticipationID:        batch.ID,
		Status:                string(batch.Status),
		FeePercentage:         batch.FeePercentage.String(),
		TotalOriginalCents:    batch.TotalOriginalCents,
		TotalAnticipatedCents: batch.TotalAnticipatedCents,
		FeeCents:              batch.FeeCents,
		CompletedAt:           batch.CompletedAt,
		FailureReason:         batch.FailureReason,
		CreatedAt:             batch.CreatedAt,
	}
}
