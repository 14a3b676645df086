package cron

import (
	"context"
	"fmt"

	"github.com/centpay/centpay-backend/pkg/logger"
)

const webhookRetryBatchSize = 100

type webhookRetrier interface {
	RetryFailed(ctx context.Context, limit int) (int, error)
}

type WebhookRetryJobParams struct {
	Logger    *logger.Logger
	Webhooks  webhookRetrier
	BatchSize int
}

// NewWebhookRetryJob builds the job that replays failed gateway deliveries
// still under the retry cap.
func NewWebhookRetryJob(params WebhookRetryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Webhooks == nil {
		return nil, fmt.Errorf("webhook service required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = webhookRetryBatchSize
	}
	return &webhookRetryJob{
		logg:      params.Logger,
		webhooks:  params.Webhooks,
		batchSize: batchSize,
	}, nil
}

type webhookRetryJob struct {
	logg      *logger.Logger
	webhooks  webhookRetrier
	batchSize int
}

func (j *webhookRetryJob) Name() string { return "webhook-retry" }

func (j *webhookRetryJob) Run(ctx context.Context) error {
	recovered, err := j.webhooks.RetryFailed(ctx, j.batchSize)
	if err != nil {
		return fmt.Errorf("webhook retry: %w", err)
	}
	logCtx := j.logg.WithField(ctx, "recovered", recovered)
	j.logg.Info(logCtx, "webhook retry sweep complete")
	return nil
}
