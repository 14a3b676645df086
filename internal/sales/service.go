package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/centpay/centpay-backend/internal/fees"
	"github.com/centpay/centpay-backend/internal/ledger"
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

type ledgerRecorder interface {
	RecordMovement(ctx context.Context, tx *gorm.DB, input ledger.MovementInput) (*models.BalanceMovement, error)
}

// PaymentEvent is one gateway notification after signature and dedup checks.
type PaymentEvent struct {
	TransactionID string
	Status        enums.SaleStatus
	AmountCents   int64
	Source        string
	Reason        string
	OccurredAt    time.Time
}

// Service drives the payment state machine. Every status change goes through
// ApplyPaymentEvent so the transition table, auditing, money splitting, and
// ledger writes cannot be bypassed.
type Service interface {
	ApplyPaymentEvent(ctx context.Context, event PaymentEvent) error
	GetSale(ctx context.Context, id uuid.UUID) (*models.Sale, error)
	ListCommissions(ctx context.Context, saleID uuid.UUID) ([]models.SaleCommission, error)
}

type service struct {
	repo           Repository
	tx             txRunner
	outbox         outboxPublisher
	ledger         ledgerRecorder
	platformUserID uuid.UUID
}

// NewService builds a sales service with the required dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, ledgerSvc ledgerRecorder, platformUserID uuid.UUID) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("sales repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger recorder required")
	}
	if platformUserID == uuid.Nil {
		return nil, fmt.Errorf("platform user id required")
	}
	return &service{
		repo:           repo,
		tx:             tx,
		outbox:         outboxSvc,
		ledger:         ledgerSvc,
		platformUserID: platformUserID,
	}, nil
}

func (s *service) GetSale(ctx context.Context, id uuid.UUID) (*models.Sale, error) {
	sale, err := s.repo.GetSale(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sale")
	}
	return sale, nil
}

func (s *service) ListCommissions(ctx context.Context, saleID uuid.UUID) ([]models.SaleCommission, error) {
	if saleID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale id is required")
	}
	return s.repo.ListCommissionsBySale(ctx, saleID)
}

func (s *service) ApplyPaymentEvent(ctx context.Context, event PaymentEvent) error {
	if event.TransactionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}
	if !event.Status.IsValid() || event.Status == enums.SaleStatusPending {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid target status %q", event.Status))
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	sale, err := s.repo.GetSaleByTransactionID(ctx, event.TransactionID, false)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("no sale for transaction %q", event.TransactionID))
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sale for payment event")
	}

	if sale.Status == event.Status {
		if err := s.audit(ctx, sale.ID, sale.Status, event, false, "status already applied"); err != nil {
			return err
		}
		return nil
	}

	if !CanTransition(sale.Status, event.Status) {
		reason := fmt.Sprintf("transition %s -> %s not allowed", sale.Status, event.Status)
		if err := s.audit(ctx, sale.ID, sale.Status, event, false, reason); err != nil {
			return err
		}
		// An approval after the charge expired means the gateway collected
		// money we already gave up on; that needs a human, not a retry.
		if event.Status == enums.SaleStatusApproved && sale.Status == enums.SaleStatusExpired {
			return pkgerrors.New(pkgerrors.CodeReconciliation, "approval received after expiry")
		}
		return pkgerrors.New(pkgerrors.CodeStateConflict, reason)
	}

	switch event.Status {
	case enums.SaleStatusApproved:
		return s.approve(ctx, sale, event)
	case enums.SaleStatusRefused, enums.SaleStatusCancelled, enums.SaleStatusExpired:
		return s.close(ctx, sale, event)
	case enums.SaleStatusRefunded, enums.SaleStatusChargeback:
		return s.reverse(ctx, sale, event)
	default:
		return pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("unhandled target status %q", event.Status))
	}
}

// approve confirms payment: flips the sale, freezes the split from the stored
// snapshot, creates commissions and splits, and credits each payee's pending
// balance. All of it happens in one transaction or not at all.
func (s *service) approve(ctx context.Context, sale *models.Sale, event PaymentEvent) error {
	ft, err := s.repo.GetTransactionBySale(ctx, sale.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load financial transaction")
	}
	// An approval must state what was collected; a missing amount is just as
	// suspect as a wrong one.
	if event.AmountCents != ft.GrossAmountCents {
		reason := fmt.Sprintf("paid amount %d does not match charged amount %d", event.AmountCents, ft.GrossAmountCents)
		if err := s.audit(ctx, sale.ID, sale.Status, event, false, reason); err != nil {
			return err
		}
		return pkgerrors.New(pkgerrors.CodeReconciliation, reason)
	}

	snap, err := fees.DecodeSnapshot(ft.CalculationDetails)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode fee snapshot")
	}
	result, err := fees.CalculateCommissions(fees.SaleInput{
		GrossCents:      ft.GrossAmountCents,
		SellerUserID:    sale.SellerUserID,
		AffiliateUserID: sale.AffiliateUserID,
		PlatformUserID:  s.platformUserID,
		Snapshot:        snap,
	})
	if err != nil {
		return err
	}

	occurred := event.OccurredAt
	releaseDate := occurred.Add(time.Duration(snap.SettlementDays) * 24 * time.Hour)

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		applied, err := repo.TransitionSale(ctx, sale.ID, sale.Status, enums.SaleStatusApproved, &occurred)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "transition sale")
		}
		if !applied {
			// A concurrent worker won the flip; this delivery is a replay.
			return nil
		}

		commissions := make([]*models.SaleCommission, 0, len(result.PerRole))
		splits := make([]*models.PaymentSplit, 0, len(result.PerRole))
		for _, rc := range result.PerRole {
			commission := &models.SaleCommission{
				ID:              uuid.New(),
				SaleID:          sale.ID,
				UserID:          rc.UserID,
				Role:            rc.Role,
				Percentage:      rc.Percentage,
				CommissionCents: rc.AmountCents,
				NetAmountCents:  rc.AmountCents,
				Status:          enums.CommissionStatusPending,
				ReleaseDate:     releaseDate,
				IdempotencyKey:  fmt.Sprintf("%s:%s:%s", sale.ID, rc.Role, rc.UserID),
			}
			commissions = append(commissions, commission)
			splits = append(splits, &models.PaymentSplit{
				ID:              uuid.New(),
				SaleID:          sale.ID,
				CommissionID:    commission.ID,
				RecipientUserID: rc.UserID,
				AmountCents:     rc.AmountCents,
				Bucket:          enums.BalanceBucketPending,
			})
		}
		if err := repo.CreateCommissions(ctx, commissions); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create commissions")
		}
		if err := repo.CreateSplits(ctx, splits); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment splits")
		}

		for _, commission := range commissions {
			_, err := s.ledger.RecordMovement(ctx, tx, ledger.MovementInput{
				UserID:        commission.UserID,
				AmountCents:   commission.CommissionCents,
				Bucket:        enums.BalanceBucketPending,
				MovementType:  enums.MovementTypeCommissionCredit,
				ReferenceType: "sale_commission",
				ReferenceID:   commission.ID,
				Description:   fmt.Sprintf("%s commission for sale %s", commission.Role, sale.ID),
			})
			if err != nil {
				return err
			}
		}

		ft.Status = enums.SaleStatusApproved
		ft.GatewayFeeCents = result.GatewayFeeCents
		ft.PlatformFeeCents = result.PlatformFeeCents
		ft.NetAmountCents = result.NetAmountCents
		ft.PaidAt = &occurred
		if err := repo.SaveTransaction(ctx, ft); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update financial transaction")
		}

		if err := repo.CreateAudit(ctx, s.auditRow(sale.ID, sale.Status, event, true, "payment approved")); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record transition audit")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSaleApproved,
			AggregateType: enums.AggregateSale,
			AggregateID:   sale.ID,
			Data: payloads.SaleApprovedEvent{
				SaleID:           sale.ID,
				SellerUserID:     sale.SellerUserID,
				GrossAmountCents: ft.GrossAmountCents,
				NetAmountCents:   ft.NetAmountCents,
				PlatformFeeCents: ft.PlatformFeeCents,
				GatewayFeeCents:  ft.GatewayFeeCents,
				CommissionCount:  len(commissions),
				ApprovedAt:       occurred,
			},
			Version:    1,
			OccurredAt: occurred,
		})
	})
}

// close handles the terminal no-money outcomes of a pending sale.
func (s *service) close(ctx context.Context, sale *models.Sale, event PaymentEvent) error {
	eventType, err := closeEventType(event.Status)
	if err != nil {
		return err
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		applied, err := repo.TransitionSale(ctx, sale.ID, sale.Status, event.Status, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "transition sale")
		}
		if !applied {
			return nil
		}

		ft, err := repo.GetTransactionBySale(ctx, sale.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load financial transaction")
		}
		ft.Status = event.Status
		if err := repo.SaveTransaction(ctx, ft); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update financial transaction")
		}

		if err := repo.CreateAudit(ctx, s.auditRow(sale.ID, sale.Status, event, true, event.Reason)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record transition audit")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateSale,
			AggregateID:   sale.ID,
			Data: payloads.SaleStatusEvent{
				SaleID:       sale.ID,
				SellerUserID: sale.SellerUserID,
				Status:       event.Status,
				Reason:       event.Reason,
			},
			Version:    1,
			OccurredAt: event.OccurredAt,
		})
	})
}

// reverse takes money back after a refund or chargeback. Each commission gets
// one guarded flip to reversed plus a negative ledger movement against the
// bucket the money currently sits in. Funds that already left via anticipation
// or payout become a debt row instead of blocking the reversal.
func (s *service) reverse(ctx context.Context, sale *models.Sale, event PaymentEvent) error {
	movementType := enums.MovementTypeRefundReversal
	if event.Status == enums.SaleStatusChargeback {
		movementType = enums.MovementTypeChargebackReversal
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		applied, err := repo.TransitionSale(ctx, sale.ID, sale.Status, event.Status, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "transition sale")
		}
		if !applied {
			return nil
		}

		commissions, err := repo.ListCommissionsBySale(ctx, sale.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list commissions")
		}

		var reversedCents, debtCents int64
		for _, commission := range commissions {
			flipped, err := repo.ReverseCommission(ctx, commission.ID, event.OccurredAt)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reverse commission")
			}
			if !flipped {
				continue
			}

			bucket := enums.BalanceBucketAvailable
			if commission.Status == enums.CommissionStatusPending {
				bucket = enums.BalanceBucketPending
			}
			_, err = s.ledger.RecordMovement(ctx, tx, ledger.MovementInput{
				UserID:        commission.UserID,
				AmountCents:   -commission.CommissionCents,
				Bucket:        bucket,
				MovementType:  movementType,
				ReferenceType: "sale_commission",
				ReferenceID:   commission.ID,
				Description:   fmt.Sprintf("%s of sale %s", event.Status, sale.ID),
			})
			if err != nil {
				return err
			}
			reversedCents += commission.CommissionCents

			if commission.AnticipatedAt != nil ||
				commission.Status == enums.CommissionStatusAnticipated ||
				commission.Status == enums.CommissionStatusPaid {
				debt := &models.AnticipationDebt{
					ID:             uuid.New(),
					UserID:         commission.UserID,
					SaleID:         sale.ID,
					CommissionID:   commission.ID,
					AmountCents:    commission.CommissionCents,
					RemainingCents: commission.CommissionCents,
					Reason:         string(event.Status),
				}
				if err := repo.CreateDebt(ctx, debt); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create debt")
				}
				debtCents += commission.CommissionCents
			}
		}

		ft, err := repo.GetTransactionBySale(ctx, sale.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load financial transaction")
		}
		ft.Status = event.Status
		if err := repo.SaveTransaction(ctx, ft); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update financial transaction")
		}

		if err := repo.CreateAudit(ctx, s.auditRow(sale.ID, sale.Status, event, true, event.Reason)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record transition audit")
		}

		eventType := enums.EventSaleRefunded
		if event.Status == enums.SaleStatusChargeback {
			eventType = enums.EventSaleChargeback
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateSale,
			AggregateID:   sale.ID,
			Data: payloads.SaleReversedEvent{
				SaleID:          sale.ID,
				SellerUserID:    sale.SellerUserID,
				Status:          event.Status,
				ReversedCents:   reversedCents,
				DebtCreated:     debtCents > 0,
				DebtAmountCents: debtCents,
			},
			Version:    1,
			OccurredAt: event.OccurredAt,
		})
	})
}

func (s *service) audit(ctx context.Context, saleID uuid.UUID, from enums.SaleStatus, event PaymentEvent, applied bool, reason string) error {
	if err := s.repo.CreateAudit(ctx, s.auditRow(saleID, from, event, applied, reason)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record transition audit")
	}
	return nil
}

func (s *service) auditRow(saleID uuid.UUID, from enums.SaleStatus, event PaymentEvent, applied bool, reason string) *models.TransitionAudit {
	return &models.TransitionAudit{
		ID:         uuid.New(),
		SaleID:     saleID,
		FromStatus: from,
		ToStatus:   event.Status,
		Applied:    applied,
		Source:     event.Source,
		Reason:     reason,
	}
}

func closeEventType(status enums.SaleStatus) (enums.OutboxEventType, error) {
	switch status {
	case enums.SaleStatusRefused:
		return enums.EventSaleRefused, nil
	case enums.SaleStatusCancelled:
		return enums.EventSaleCancelled, nil
	case enums.SaleStatusExpired:
		return enums.EventSaleExpired, nil
	default:
		return "", pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("no close event for status %q", status))
	}
}
