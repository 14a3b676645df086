package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/centpay/centpay-backend/api/responses"
	"github.com/centpay/centpay-backend/internal/sales"
	"github.com/centpay/centpay-backend/pkg/db/models"
	pkgerrors "github.com/centpay/centpay-backend/pkg/errors"
	"github.com/centpay/centpay-backend/pkg/logger"
)

// SaleDetail returns one sale with its commission breakdown. Only the seller
// on the sale may read it.
func SaleDetail(repo sales.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sales repository unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		saleID, err := pathUUID(r, "saleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sale, err := repo.GetSale(r.Context(), saleID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "sale not found"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sale"))
			return
		}
		if sale.SellerUserID != userID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "sale not found"))
			return
		}

		commissions, err := repo.ListCommissionsBySale(r.Context(), sale.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load commissions"))
			return
		}

		responses.WriteSuccess(w, newSaleDetailResponse(sale, commissions))
	}
}

type commissionResponse struct {
	CommissionID    uuid.UUID  `json:"commission_id"`
	UserID          uuid.UUID  `json:"user_id"`
	Role            string     `json:"role"`
	CommissionCents int64      `json:"commission_cents"`
	NetAmountCents  int64      `json:"net_amount_cents"`
	Status          string     `json:"status"`
	ReleaseDate     time.Time  `json:"release_date"`
	ReversedAt      *time.Time `json:"reversed_at,omitempty"`
}

type saleDetailResponse struct {
	saleResponse
	Commissions []commissionResponse `json:"commissions"`
}

func newSaleDetailResponse(sale *models.Sale, commissions []models.SaleCommission) saleDetailResponse {
	out := saleDetailResponse{
		saleResponse: newSaleResponse(sale),
		Commissions:  make([]commissionResponse, 0, len(commissions)),
	}
	for _, c := range commissions {
		out.Commissions = append(out.Commissions, commissionResponse{
			CommissionID:    c.ID,
			UserID:          c.UserID,
			Role:            string(c.Role),
			CommissionCents: c.CommissionCents,
			NetAmountCents:  c.NetAmountCents,
			Status:          string(c.Status),
			ReleaseDate:     c.ReleaseDate,
			ReversedAt:      c.ReversedAt,
		})
	}
	return out
}
