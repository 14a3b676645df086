package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/centpay/centpay-backend/internal/fees"
	"github.com/centpay/centpay-backend/internal/sales"
	"github.com/centpay/centpay-backend/pkg/config"
	dbpkg "github.com/centpay/centpay-backend/pkg/db"
	"github.com/centpay/centpay-backend/pkg/db/models"
	"github.com/centpay/centpay-backend/pkg/enums"
	pkgerrors "github.com/centpay/centpay-backend/pkg/errors"
	"github.com/centpay/centpay-backend/pkg/outbox"
	"github.com/centpay/centpay-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CoProducer is one revenue-share partner on the product being sold.
type CoProducer struct {
	UserID  uuid.UUID
	Percent decimal.Decimal
}

// CreateSaleInput opens a sale awaiting payment. TransactionID is the
// gateway's charge reference and doubles as the idempotency key for the
// whole checkout call.
type CreateSaleInput struct {
	ProductID        uuid.UUID
	SellerUserID     uuid.UUID
	AffiliateUserID  *uuid.UUID
	AffiliatePercent decimal.Decimal
	CoProducers      []CoProducer
	BuyerName        string
	BuyerEmail       string
	BuyerDocument    *string
	AmountCents      int64
	Currency         enums.Currency
	PaymentMethod    enums.PaymentMethod
	TransactionID    string
	CouponCode       *string
}

// Service opens sales: it freezes the fee schedule for the transaction,
// stamps the expiry deadline, and leaves everything pending for the webhook
// gate to settle.
type Service interface {
	CreateSale(ctx context.Context, input CreateSaleInput) (*models.Sale, error)
}

type service struct {
	repo    sales.Repository
	tx      txRunner
	outbox  outboxPublisher
	fees    config.FeesConfig
	settle  config.SettlementConfig
	gateway config.GatewayConfig
}

// NewService builds a checkout service from the configured fee schedule.
func NewService(repo sales.Repository, tx txRunner, outboxSvc outboxPublisher, feesCfg config.FeesConfig, settle config.SettlementConfig, gateway config.GatewayConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("sales repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		outbox:  outboxSvc,
		fees:    feesCfg,
		settle:  settle,
		gateway: gateway,
	}, nil
}

func (s *service) CreateSale(ctx context.Context, input CreateSaleInput) (*models.Sale, error) {
	if err := s.validate(input); err != nil {
		return nil, err
	}

	if existing, err := s.repo.GetSaleByTransactionID(ctx, input.TransactionID, false); err == nil {
		return existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up transaction id")
	}

	coProducers := make([]fees.CoProducerSplit, 0, len(input.CoProducers))
	for _, co := range input.CoProducers {
		coProducers = append(coProducers, fees.CoProducerSplit{UserID: co.UserID, Percent: co.Percent})
	}
	snap, err := fees.BuildSnapshot(s.fees, s.settle, input.PaymentMethod, input.AffiliatePercent, coProducers)
	if err != nil {
		return nil, err
	}
	raw, err := snap.Marshal()
	if err != nil {
		return nil, err
	}

	sale := &models.Sale{
		ID:              uuid.New(),
		ProductID:       input.ProductID,
		SellerUserID:    input.SellerUserID,
		AffiliateUserID: input.AffiliateUserID,
		BuyerName:       input.BuyerName,
		BuyerEmail:      input.BuyerEmail,
		BuyerDocument:   input.BuyerDocument,
		AmountCents:     input.AmountCents,
		Currency:        input.Currency,
		PaymentMethod:   input.PaymentMethod,
		Status:          enums.SaleStatusPending,
		TransactionID:   input.TransactionID,
		CouponCode:      input.CouponCode,
	}
	if deadline := s.expiryFor(input.PaymentMethod); deadline > 0 {
		expiresAt := time.Now().Add(deadline)
		sale.ExpiresAt = &expiresAt
	}
	ft := &models.FinancialTransaction{
		ID:                 uuid.New(),
		SaleID:             sale.ID,
		GrossAmountCents:   input.AmountCents,
		Status:             enums.SaleStatusPending,
		IdempotencyKey:     "ft:" + input.TransactionID,
		CalculationDetails: raw,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateSale(ctx, sale); err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "transaction id already used")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create sale")
		}
		if err := repo.CreateTransaction(ctx, ft); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create financial transaction")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSaleCreated,
			AggregateType: enums.AggregateSale,
			AggregateID:   sale.ID,
			Data: payloads.SaleCreatedEvent{
				SaleID:        sale.ID,
				SellerUserID:  sale.SellerUserID,
				AmountCents:   sale.AmountCents,
				Currency:      sale.Currency,
				PaymentMethod: sale.PaymentMethod,
				TransactionID: sale.TransactionID,
				ExpiresAt:     sale.ExpiresAt,
			},
			Version: 1,
		})
	})
	if err != nil {
		// A concurrent duplicate checkout lost the unique-index race; hand
		// back the winner's sale.
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeConflict {
			if existing, findErr := s.repo.GetSaleByTransactionID(ctx, input.TransactionID, false); findErr == nil {
				return existing, nil
			}
		}
		return nil, err
	}
	return sale, nil
}

func (s *service) validate(input CreateSaleInput) error {
	if input.SellerUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "seller user id is required")
	}
	if input.ProductID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if input.AmountCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if input.TransactionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}
	if input.BuyerName == "" || input.BuyerEmail == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "buyer name and email are required")
	}
	if !input.Currency.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid currency %q", input.Currency))
	}
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", input.PaymentMethod))
	}
	if input.AffiliatePercent.IsPositive() && input.AffiliateUserID == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "affiliate percent set without affiliate user")
	}
	return nil
}

func (s *service) expiryFor(method enums.PaymentMethod) time.Duration {
	switch method {
	case enums.PaymentMethodPix:
		return s.gateway.PixExpiry
	case enums.PaymentMethodBoleto:
		return s.gateway.BoletoExpiry
	default:
		return 0
	}
}
