package bankaccounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/centpay/centpay-backend/pkg/db/models"
	"github.com/centpay/centpay-backend/pkg/enums"
	pkgerrors "github.com/centpay/centpay-backend/pkg/errors"
)

// RegisterInput carries the fields for a new payout destination.
type RegisterInput struct {
	UserID        uuid.UUID
	BankCode      string
	Branch        string
	AccountNumber string
	HolderName    string
	Document      string
}

// Service manages payout destinations. New accounts start pending and only
// verified accounts can receive withdrawals.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*models.BankAccount, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*models.BankAccount, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.BankAccount, error)
	Verify(ctx context.Context, id uuid.UUID) error
	Reject(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo Repository
}

// NewService wires a bank account service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("bank account repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*models.BankAccount, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.BankCode == "" || input.Branch == "" || input.AccountNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bank code, branch and account number are required")
	}
	if input.HolderName == "" || input.Document == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "holder name and document are required")
	}
	account := &models.BankAccount{
		ID:            uuid.New(),
		UserID:        input.UserID,
		BankCode:      input.BankCode,
		Branch:        input.Branch,
		AccountNumber: input.AccountNumber,
		HolderName:    input.HolderName,
		Document:      input.Document,
		Status:        enums.BankAccountStatusPending,
	}
	if err := s.repo.Create(ctx, account); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create bank account")
	}
	return account, nil
}

func (s *service) Get(ctx context.Context, userID, id uuid.UUID) (*models.BankAccount, error) {
	account, err := s.repo.Get(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "bank account not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bank account")
	}
	if account.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "bank account not found")
	}
	return account, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.BankAccount, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) Verify(ctx context.Context, id uuid.UUID) error {
	return s.repo.UpdateStatus(ctx, id, enums.BankAccountStatusVerified)
}

func (s *service) Reject(ctx context.Context, id uuid.UUID) error {
	return s.repo.UpdateStatus(ctx, id, enums.BankAccountStatusRejected)
}
