package sales

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/centpay/centpay-backend/pkg/db/models"
	"github.com/centpay/centpay-backend/pkg/enums"
)

// Repository manages persistence for sales, financial transactions,
// commissions, splits, and transition audits.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateSale(ctx context.Context, sale *models.Sale) error
	GetSale(ctx context.Context, id uuid.UUID) (*models.Sale, error)
	GetSaleByTransactionID(ctx context.Context, transactionID string, forUpdate bool) (*models.Sale, error)
	TransitionSale(ctx context.Context, saleID uuid.UUID, from, to enums.SaleStatus, approvedAt *time.Time) (bool, error)

	CreateTransaction(ctx context.Context, ft *models.FinancialTransaction) error
	GetTransactionBySale(ctx context.Context, saleID uuid.UUID) (*models.FinancialTransaction, error)
	SaveTransaction(ctx context.Context, ft *models.FinancialTransaction) error

	CreateCommissions(ctx context.Context, commissions []*models.SaleCommission) error
	ListCommissionsBySale(ctx context.Context, saleID uuid.UUID) ([]models.SaleCommission, error)
	ReverseCommission(ctx context.Context, commissionID uuid.UUID, reversedAt time.Time) (bool, error)

	CreateSplits(ctx context.Context, splits []*models.PaymentSplit) error
	CreateAudit(ctx context.Context, audit *models.TransitionAudit) error
	CreateDebt(ctx context.Context, debt *models.AnticipationDebt) error

	ListReleasableCommissions(ctx context.Context, before time.Time, limit int) ([]models.SaleCommission, error)
	ReleaseCommission(ctx context.Context, commissionID uuid.UUID, at time.Time) (bool, error)
	MarkSplitReleased(ctx context.Context, commissionID uuid.UUID, at time.Time) error
	ListExpiredPendingSales(ctx context.Context, now time.Time, limit int) ([]models.Sale, error)
	ListOpenDebtsByUser(ctx context.Context, userID uuid.UUID) ([]models.AnticipationDebt, error)
	SettleDebt(ctx context.Context, debtID uuid.UUID, at time.Time) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a sales repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateSale(ctx context.Context, sale *models.Sale) error {
	return r.db.WithContext(ctx).Create(sale).Error
}

func (r *repository) GetSale(ctx context.Context, id uuid.UUID) (*models.Sale, error) {
	var sale models.Sale
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&sale).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

// GetSaleByTransactionID resolves a sale from the gateway's transaction
// reference. SQLite serializes writers on its own, so the lock is
// postgres-only.
func (r *repository) GetSaleByTransactionID(ctx context.Context, transactionID string, forUpdate bool) (*models.Sale, error) {
	q := r.db.WithContext(ctx)
	if forUpdate && r.db.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var sale models.Sale
	if err := q.Where("transaction_id = ?", transactionID).First(&sale).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

// TransitionSale flips the status only when the row still holds the expected
// from status, so a concurrent or replayed event can never apply twice.
func (r *repository) TransitionSale(ctx context.Context, saleID uuid.UUID, from, to enums.SaleStatus, approvedAt *time.Time) (bool, error) {
	updates := map[string]any{"status": to}
	if approvedAt != nil {
		updates["approved_at"] = approvedAt
	}
	res := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Where("id = ? AND status = ?", saleID, from).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}

func (r *repository) CreateTransaction(ctx context.Context, ft *models.FinancialTransaction) error {
	return r.db.WithContext(ctx).Create(ft).Error
}

func (r *repository) GetTransactionBySale(ctx context.Context, saleID uuid.UUID) (*models.FinancialTransaction, error) {
	var ft models.FinancialTransaction
	if err := r.db.WithContext(ctx).Where("sale_id = ?", saleID).First(&ft).Error; err != nil {
		return nil, err
	}
	return &ft, nil
}

func (r *repository) SaveTransaction(ctx context.Context, ft *models.FinancialTransaction) error {
	return r.db.WithContext(ctx).Save(ft).Error
}

func (r *repository) CreateCommissions(ctx context.Context, commissions []*models.SaleCommission) error {
	if len(commissions) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(commissions).Error
}

func (r *repository) ListCommissionsBySale(ctx context.Context, saleID uuid.UUID) ([]models.SaleCommission, error) {
	var commissions []models.SaleCommission
	err := r.db.WithContext(ctx).
		Where("sale_id = ?", saleID).
		Order("created_at ASC").
		Find(&commissions).Error
	if err != nil {
		return nil, err
	}
	return commissions, nil
}

// ReverseCommission is a guarded flip to reversed. Already-reversed rows are
// left alone so a replayed reversal never double-debits the ledger.
func (r *repository) ReverseCommission(ctx context.Context, commissionID uuid.UUID, reversedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.SaleCommission{}).
		Where("id = ? AND status <> ?", commissionID, enums.CommissionStatusReversed).
		Updates(map[string]any{
			"status":      enums.CommissionStatusReversed,
			"reversed_at": reversedAt,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *repository) CreateSplits(ctx context.Context, splits []*models.PaymentSplit) error {
	if len(splits) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(splits).Error
}

func (r *repository) CreateAudit(ctx context.Context, audit *models.TransitionAudit) error {
	return r.db.WithContext(ctx).Create(audit).Error
}

func (r *repository) CreateDebt(ctx context.Context, debt *models.AnticipationDebt) error {
	return r.db.WithContext(ctx).Create(debt).Error
}

func (r *repository) ListReleasableCommissions(ctx context.Context, before time.Time, limit int) ([]models.SaleCommission, error) {
	var commissions []models.SaleCommission
	q := r.db.WithContext(ctx).
		Where("status = ? AND release_date <= ?", enums.CommissionStatusPending, before).
		Order("release_date ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&commissions).Error; err != nil {
		return nil, err
	}
	return commissions, nil
}

// ReleaseCommission flips a held commission to available. The pending guard
// keeps reversals and anticipations that landed in between from releasing.
func (r *repository) ReleaseCommission(ctx context.Context, commissionID uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.SaleCommission{}).
		Where("id = ? AND status = ?", commissionID, enums.CommissionStatusPending).
		Updates(map[string]any{
			"status":     enums.CommissionStatusAvailable,
			"updated_at": at,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *repository) MarkSplitReleased(ctx context.Context, commissionID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentSplit{}).
		Where("commission_id = ?", commissionID).
		Updates(map[string]any{
			"bucket":      enums.BalanceBucketAvailable,
			"released_at": at,
		}).Error
}

func (r *repository) ListExpiredPendingSales(ctx context.Context, now time.Time, limit int) ([]models.Sale, error) {
	var expired []models.Sale
	q := r.db.WithContext(ctx).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", enums.SaleStatusPending, now).
		Order("expires_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&expired).Error; err != nil {
		return nil, err
	}
	return expired, nil
}

func (r *repository) ListOpenDebtsByUser(ctx context.Context, userID uuid.UUID) ([]models.AnticipationDebt, error) {
	var debts []models.AnticipationDebt
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND settled_at IS NULL", userID).
		Order("created_at ASC").
		Find(&debts).Error
	if err != nil {
		return nil, err
	}
	return debts, nil
}

func (r *repository) SettleDebt(ctx context.Context, debtID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.AnticipationDebt{}).
		Where("id = ?", debtID).
		Updates(map[string]any{
			"remaining_cents": 0,
			"settled_at":      at,
		}).Error
}
