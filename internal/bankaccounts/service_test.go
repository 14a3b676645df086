package bankaccounts

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/centpay/centpay-backend/pkg/db/models"
	"github.com/centpay/centpay-backend/pkg/enums"
	pkgerrors "github.com/centpay/centpay-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:bankaccounts_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.BankAccount{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, db
}

func registerInput(userID uuid.UUID) RegisterInput {
	return RegisterInput{
		UserID:        userID,
		BankCode:      "341",
		Branch:        "0001",
		AccountNumber: "12345-6",
		HolderName:    "Ana Souza",
		Document:      "12345678900",
	}
}

func TestRegisterStartsPending(t *testing.T) {
	svc, db := newTestService(t)
	userID := uuid.New()

	account, err := svc.Register(context.Background(), registerInput(userID))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if account.Status != enums.BankAccountStatusPending {
		t.Fatalf("expected pending status, got %s", account.Status)
	}

	var stored models.BankAccount
	if err := db.First(&stored, "id = ?", account.ID).Error; err != nil {
		t.Fatalf("load stored account: %v", err)
	}
	if stored.UserID != userID || stored.BankCode != "341" {
		t.Fatalf("unexpected stored account %+v", stored)
	}
}

func TestRegisterRejectsIncompleteInput(t *testing.T) {
	svc, _ := newTestService(t)

	cases := []struct {
		name   string
		mutate func(*RegisterInput)
	}{
		{"missing user", func(in *RegisterInput) { in.UserID = uuid.Nil }},
		{"missing bank code", func(in *RegisterInput) { in.BankCode = "" }},
		{"missing account number", func(in *RegisterInput) { in.AccountNumber = "" }},
		{"missing holder", func(in *RegisterInput) { in.HolderName = "" }},
		{"missing document", func(in *RegisterInput) { in.Document = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := registerInput(uuid.New())
			tc.mutate(&input)
			_, err := svc.Register(context.Background(), input)
			if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestGetEnforcesOwnership(t *testing.T) {
	svc, _ := newTestService(t)
	owner := uuid.New()

	account, err := svc.Register(context.Background(), registerInput(owner))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Get(context.Background(), owner, account.ID); err != nil {
		t.Fatalf("owner get: %v", err)
	}

	_, err = svc.Get(context.Background(), uuid.New(), account.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for non-owner, got %v", err)
	}

	_, err = svc.Get(context.Background(), owner, uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for unknown id, got %v", err)
	}
}

func TestVerifyAndRejectUpdateStatus(t *testing.T) {
	svc, db := newTestService(t)
	owner := uuid.New()

	verified, err := svc.Register(context.Background(), registerInput(owner))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	rejected, err := svc.Register(context.Background(), registerInput(owner))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := svc.Verify(context.Background(), verified.ID); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := svc.Reject(context.Background(), rejected.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}

	var storedVerified models.BankAccount
	if err := db.First(&storedVerified, "id = ?", verified.ID).Error; err != nil {
		t.Fatalf("load verified: %v", err)
	}
	if storedVerified.Status != enums.BankAccountStatusVerified {
		t.Fatalf("expected verified, got %s", storedVerified.Status)
	}
	var storedRejected models.BankAccount
	if err := db.First(&storedRejected, "id = ?", rejected.ID).Error; err != nil {
		t.Fatalf("load rejected: %v", err)
	}
	if storedRejected.Status != enums.BankAccountStatusRejected {
		t.Fatalf("expected rejected, got %s", storedRejected.Status)
	}
}

func TestListReturnsOnlyOwnAccounts(t *testing.T) {
	svc, _ := newTestService(t)
	owner := uuid.New()

	if _, err := svc.Register(context.Background(), registerInput(owner)); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(context.Background(), registerInput(uuid.New())); err != nil {
		t.Fatalf("register other: %v", err)
	}

	accounts, err := svc.List(context.Background(), owner)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(accounts) != 1 || accounts[0].UserID != owner {
		t.Fatalf("unexpected accounts %+v", accounts)
	}
}
