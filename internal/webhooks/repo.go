package webhooks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/centpay/centpay-backend/pkg/db/models"
	"github.com/centpay/centpay-backend/pkg/enums"
)

// Repository manages the webhook dedup ledger.
type Repository interface {
	Create(ctx context.Context, event *models.WebhookEvent) error
	FindByGatewayEvent(ctx context.Context, gateway, eventID string) (*models.WebhookEvent, error)
	Claim(ctx context.Context, id uuid.UUID) (bool, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
	ListFailed(ctx context.Context, maxRetries, limit int) ([]models.WebhookEvent, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a webhook repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, event *models.WebhookEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) FindByGatewayEvent(ctx context.Context, gateway, eventID string) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("gateway = ? AND event_id = ?", gateway, eventID).
		First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// Claim flips a received or failed event to processing. The conditional
// update means exactly one worker wins a concurrent delivery.
func (r *repository) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("id = ? AND status IN ?", id, []enums.WebhookStatus{
			enums.WebhookStatusReceived,
			enums.WebhookStatusFailed,
		}).
		Update("status", enums.WebhookStatusProcessing)
	return res.RowsAffected == 1, res.Error
}

func (r *repository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        enums.WebhookStatusProcessed,
			"processed_at":  now,
			"error_message": nil,
		}).Error
}

func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	return r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        enums.WebhookStatusFailed,
			"retry_count":   gorm.Expr("retry_count + 1"),
			"error_message": message,
		}).Error
}

func (r *repository) ListFailed(ctx context.Context, maxRetries, limit int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	q := r.db.WithContext(ctx).
		Where("status = ? AND retry_count < ?", enums.WebhookStatusFailed, maxRetries).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
