package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/centpay/centpay-backend/api/responses"
	"github.com/centpay/centpay-backend/api/validators"
	checkoutsvc "github.com/centpay/centpay-backend/internal/checkout"
	"github.com/centpay/centpay-backend/pkg/db/models"
	"github.com/centpay/centpay-backend/pkg/enums"
	pkgerrors "github.com/centpay/centpay-backend/pkg/errors"
	"github.com/centpay/centpay-backend/pkg/logger"
)

// Checkout opens a sale for the authenticated seller. The gateway transaction
// reference doubles as the idempotency key, so replays return the same sale.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		sellerID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput(sellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sale, err := svc.CreateSale(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newSaleResponse(sale))
	}
}

type checkoutCoProducer struct {
	UserID  uuid.UUID `json:"user_id" validate:"required"`
	Percent string    `json:"percent" validate:"required"`
}

type checkoutRequest struct {
	ProductID        uuid.UUID            `json:"product_id" validate:"required"`
	AffiliateUserID  *uuid.UUID           `json:"affiliate_user_id,omitempty"`
	AffiliatePercent string               `json:"affiliate_percent,omitempty"`
	CoProducers      []checkoutCoProducer `json:"co_producers,omitempty" validate:"max=10,dive"`
	BuyerName        string               `json:"buyer_name" validate:"required,max=255"`
	BuyerEmail       string               `json:"buyer_email" validate:"required,email"`
	BuyerDocument    *string              `json:"buyer_document,omitempty"`
	AmountCents      int64                `json:"amount_cents" validate:"required,min=1"`
	Currency         string               `json:"currency,omitempty"`
	PaymentMethod    string               `json:"payment_method" validate:"required"`
	TransactionID    string               `json:"transaction_id" validate:"required,max=255"`
	CouponCode       *string              `json:"coupon_code,omitempty"`
}

func (req checkoutRequest) toInput(sellerID uuid.UUID) (checkoutsvc.CreateSaleInput, error) {
	affiliatePercent := decimal.Zero
	if req.AffiliatePercent != "" {
		parsed, err := decimal.NewFromString(req.AffiliatePercent)
		if err != nil {
			return checkoutsvc.CreateSaleInput{}, pkgerrors.New(pkgerrors.CodeValidation, "affiliate_percent must be a decimal string")
		}
		affiliatePercent = parsed
	}

	coProducers := make([]checkoutsvc.CoProducer, 0, len(req.CoProducers))
	for _, cp := range req.CoProducers {
		percent, err := decimal.NewFromString(cp.Percent)
		if err != nil {
			return checkoutsvc.CreateSaleInput{}, pkgerrors.New(pkgerrors.CodeValidation, "co-producer percent must be a decimal string")
		}
		coProducers = append(coProducers, checkoutsvc.CoProducer{UserID: cp.UserID, Percent: percent})
	}

	currency := enums.CurrencyBRL
	if req.Currency != "" {
		currency = enums.Currency(req.Currency)
	}

	return checkoutsvc.CreateSaleInput{
		ProductID:        req.ProductID,
		SellerUserID:     sellerID,
		AffiliateUserID:  req.AffiliateUserID,
		AffiliatePercent: affiliatePercent,
		CoProducers:      coProducers,
		BuyerName:        req.BuyerName,
		BuyerEmail:       req.BuyerEmail,
		BuyerDocument:    req.BuyerDocument,
		AmountCents:      req.AmountCents,
		Currency:         currency,
		PaymentMethod:    enums.PaymentMethod(req.PaymentMethod),
		TransactionID:    req.TransactionID,
		CouponCode:       req.CouponCode,
	}, nil
}

type saleResponse struct {
	SaleID        uuid.UUID  `json:"sale_id"`
	Status        string     `json:"status"`
	TransactionID string     `json:"transaction_id"`
	AmountCents   int64      `json:"amount_cents"`
	Currency      string     `json:"currency"`
	PaymentMethod string     `json:"payment_method"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	ApprovedAt    *time.Time `json:"approved_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func newSaleResponse(sale *models.Sale) saleResponse {
	if sale == nil {
		return saleResponse{}
	}
	return saleResponse{
		SaleID:        sale.ID,
		Status:        string(sale.Status),
		TransactionID: sale.TransactionID,
		AmountCents:   sale.AmountCents,
		Currency:      string(sale.Currency),
		PaymentMethod: string(sale.PaymentMethod),
		ExpiresAt:     sale.ExpiresAt,
		ApprovedAt:    sale.ApprovedAt,
		CreatedAt:     sale.CreatedAt,
	}
}
