package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/centpay/centpay-backend/internal/ledger"
	"github.com/centpay/centpay-backend/pkg/config"
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

type ledgerAccess interface {
	RecordMovement(ctx context.Context, tx *gorm.DB, input ledger.MovementInput) (*models.BalanceMovement, error)
	BalanceForUpdate(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (ledger.Balance, error)
}

type bankAccountReader interface {
	Get(ctx context.Context, userID, id uuid.UUID) (*models.BankAccount, error)
}

// RequestInput asks to move available balance to a verified bank account.
// AmountCents is the debit; the payout fee comes out of it.
type RequestInput struct {
	UserID         uuid.UUID
	BankAccountID  uuid.UUID
	AmountCents    int64
	IdempotencyKey string
}

// Service reserves funds the moment a withdrawal is requested: the available
// balance is debited up front, and only a failure from the payout rail puts
// the money back.
type Service interface {
	Request(ctx context.Context, input RequestInput) (*models.Withdrawal, error)
	Confirm(ctx context.Context, id uuid.UUID, externalReference string) error
	Fail(ctx context.Context, id uuid.UUID, reason string) error
	Get(ctx context.Context, userID, id uuid.UUID) (*models.Withdrawal, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Withdrawal, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	ledger   ledgerAccess
	accounts bankAccountReader
	cfg      config.WithdrawalConfig
}

// NewService builds a withdrawal service with the required dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, ledgerSvc ledgerAccess, accounts bankAccountReader, cfg config.WithdrawalConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("withdrawal repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger access required")
	}
	if accounts == nil {
		return nil, fmt.Errorf("bank account reader required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		outbox:   outboxSvc,
		ledger:   ledgerSvc,
		accounts: accounts,
		cfg:      cfg,
	}, nil
}

func (s *service) Request(ctx context.Context, input RequestInput) (*models.Withdrawal, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.IdempotencyKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "idempotency key is required")
	}
	if input.AmountCents < s.cfg.MinAmountCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("withdrawal amount %d below minimum %d", input.AmountCents, s.cfg.MinAmountCents))
	}
	if input.AmountCents <= s.cfg.FeeCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "withdrawal amount does not cover the fee")
	}

	if existing, err := s.repo.FindByIdempotencyKey(ctx, input.IdempotencyKey); err == nil {
		if existing.UserID != input.UserID {
			return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key belongs to another user")
		}
		return existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up idempotency key")
	}

	account, err := s.accounts.Get(ctx, input.UserID, input.BankAccountID)
	if err != nil {
		return nil, err
	}
	if account.Status != enums.BankAccountStatusVerified {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bank account is not verified")
	}

	withdrawal := &models.Withdrawal{
		ID:             uuid.New(),
		UserID:         input.UserID,
		BankAccountID:  account.ID,
		AmountCents:    input.AmountCents,
		FeeCents:       s.cfg.FeeCents,
		NetAmountCents: input.AmountCents - s.cfg.FeeCents,
		Status:         enums.WithdrawalStatusPending,
		IdempotencyKey: input.IdempotencyKey,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		balance, err := s.ledger.BalanceForUpdate(ctx, tx, input.UserID)
		if err != nil {
			return err
		}
		if balance.AvailableCents < input.AmountCents {
			return pkgerrors.New(pkgerrors.CodeInsufficientFunds,
				fmt.Sprintf("available %d, requested %d", balance.AvailableCents, input.AmountCents))
		}

		if err := s.repo.WithTx(tx).Create(ctx, withdrawal); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create withdrawal")
		}
		_, err = s.ledger.RecordMovement(ctx, tx, ledger.MovementInput{
			UserID:        input.UserID,
			AmountCents:   -input.AmountCents,
			Bucket:        enums.BalanceBucketAvailable,
			MovementType:  enums.MovementTypeWithdrawalDebit,
			ReferenceType: "withdrawal",
			ReferenceID:   withdrawal.ID,
			Description:   "withdrawal reserved",
		})
		if err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventWithdrawalRequested,
			AggregateType: enums.AggregateWithdrawal,
			AggregateID:   withdrawal.ID,
			Data: payloads.WithdrawalRequestedEvent{
				WithdrawalID:  withdrawal.ID,
				UserID:        withdrawal.UserID,
				BankAccountID: withdrawal.BankAccountID,
				AmountCents:   withdrawal.AmountCents,
				FeeCents:      withdrawal.FeeCents,
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, err
	}
	return withdrawal, nil
}

func (s *service) Confirm(ctx context.Context, id uuid.UUID, externalReference string) error {
	withdrawal, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	now := time.Now()
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		closed, err := s.repo.WithTx(tx).MarkCompleted(ctx, withdrawal.ID, externalReference, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete withdrawal")
		}
		if !closed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "withdrawal is not open")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventWithdrawalCompleted,
			AggregateType: enums.AggregateWithdrawal,
			AggregateID:   withdrawal.ID,
			Data: payloads.WithdrawalResultEvent{
				WithdrawalID: withdrawal.ID,
				UserID:       withdrawal.UserID,
				Status:       enums.WithdrawalStatusCompleted,
				AmountCents:  withdrawal.AmountCents,
			},
			Version: 1,
		})
	})
}

// Fail closes the withdrawal and returns the reserved funds.
func (s *service) Fail(ctx context.Context, id uuid.UUID, reason string) error {
	withdrawal, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		closed, err := s.repo.WithTx(tx).MarkFailed(ctx, withdrawal.ID, reason)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fail withdrawal")
		}
		if !closed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "withdrawal is not open")
		}
		_, err = s.ledger.RecordMovement(ctx, tx, ledger.MovementInput{
			UserID:        withdrawal.UserID,
			AmountCents:   withdrawal.AmountCents,
			Bucket:        enums.BalanceBucketAvailable,
			MovementType:  enums.MovementTypeWithdrawalReversal,
			ReferenceType: "withdrawal",
			ReferenceID:   withdrawal.ID,
			Description:   "withdrawal failed, funds returned",
		})
		if err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventWithdrawalFailed,
			AggregateType: enums.AggregateWithdrawal,
			AggregateID:   withdrawal.ID,
			Data: payloads.WithdrawalResultEvent{
				WithdrawalID: withdrawal.ID,
				UserID:       withdrawal.UserID,
				Status:       enums.WithdrawalStatusFailed,
				AmountCents:  withdrawal.AmountCents,
				Reason:       reason,
			},
			Version: 1,
		})
	})
}

func (s *service) Get(ctx context.Context, userID, id uuid.UUID) (*models.Withdrawal, error) {
	withdrawal, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if withdrawal.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "withdrawal not found")
	}
	return withdrawal, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Withdrawal, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "withdrawal id is required")
	}
	withdrawal, err := s.repo.Get(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "withdrawal not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load withdrawal")
	}
	return withdrawal, nil
}
