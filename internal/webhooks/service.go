package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/centpay/centpay-backend/internal/sales"
	"github.com/centpay/centpay-backend/pkg/config"
	dbpkg "github.com/centpay/centpay-backend/pkg/db"
	"github.com/centpay/centpay-backend/pkg/db/models"
	"github.com/centpay/centpay-backend/pkg/enums"
	pkgerrors "github.com/centpay/centpay-backend/pkg/errors"
	"github.com/centpay/centpay-backend/pkg/logger"
)

type saleApplier interface {
	ApplyPaymentEvent(ctx context.Context, event sales.PaymentEvent) error
}

// dedupGuard is the Redis fast path in front of the database gate. It is
// best effort: a guard miss or error always falls through to the unique index.
type dedupGuard interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
}

// Delivery is one raw gateway POST before any validation.
type Delivery struct {
	Signature string
	Body      []byte
}

// IngestResult reports what the gate did with a delivery.
type IngestResult struct {
	Event     *models.WebhookEvent
	Duplicate bool
}

// Service is the webhook ingestion gate. Each delivery is verified,
// deduplicated against the gateway event id, claimed by exactly one worker,
// and then handed to the payment state machine.
type Service struct {
	repo  Repository
	sales saleApplier
	guard dedupGuard
	cfg   config.GatewayConfig
	logg  *logger.Logger
}

// NewService builds the ingestion gate. The dedup guard is optional.
func NewService(repo Repository, saleSvc saleApplier, guard dedupGuard, cfg config.GatewayConfig, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("webhook repository required")
	}
	if saleSvc == nil {
		return nil, fmt.Errorf("sales service required")
	}
	if cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("webhook secret required")
	}
	return &Service{repo: repo, sales: saleSvc, guard: guard, cfg: cfg, logg: logg}, nil
}

// Ingest runs one delivery through the gate. A replayed event id is
// acknowledged without reprocessing; a failed event below the retry cap is
// claimed again and reprocessed.
func (s *Service) Ingest(ctx context.Context, delivery Delivery) (IngestResult, error) {
	if !VerifySignature(s.cfg.WebhookSecret, delivery.Body, delivery.Signature) {
		s.recordRejected(ctx, delivery)
		return IngestResult{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature")
	}

	env, err := parseEnvelope(delivery.Body)
	if err != nil {
		return IngestResult{}, err
	}
	target, err := mapGatewayStatus(env.Transaction.Status)
	if err != nil {
		return IngestResult{}, err
	}

	if s.guard != nil {
		key := s.guard.IdempotencyKey("webhook:"+s.cfg.Name, env.EventID)
		fresh, guardErr := s.guard.SetNX(ctx, key, "1", s.cfg.DedupTTL)
		if guardErr == nil && !fresh {
			if existing, findErr := s.repo.FindByGatewayEvent(ctx, s.cfg.Name, env.EventID); findErr == nil {
				return IngestResult{Event: existing, Duplicate: true}, nil
			}
			// Guard hit without a row means the first delivery is still in
			// flight; fall through and let the unique index arbitrate.
		}
	}

	event := &models.WebhookEvent{
		ID:            uuid.New(),
		Gateway:       s.cfg.Name,
		EventID:       env.EventID,
		EventType:     env.EventType,
		TransactionID: env.Transaction.ID,
		Payload:       delivery.Body,
		Status:        enums.WebhookStatusReceived,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		if !dbpkg.IsUniqueViolation(err, "ux_webhook_events_gateway_event") {
			return IngestResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "register webhook event")
		}
		existing, findErr := s.repo.FindByGatewayEvent(ctx, s.cfg.Name, env.EventID)
		if findErr != nil {
			return IngestResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load webhook event")
		}
		if existing.Status != enums.WebhookStatusFailed || existing.RetryCount >= s.cfg.MaxRetries {
			return IngestResult{Event: existing, Duplicate: true}, nil
		}
		event = existing
	}

	return s.process(ctx, event, env, target)
}

// Reprocess replays one stored event, used by the retry worker for failed
// deliveries. The claim keeps concurrent retries single-flight.
func (s *Service) Reprocess(ctx context.Context, event *models.WebhookEvent) (IngestResult, error) {
	if event == nil {
		return IngestResult{}, pkgerrors.New(pkgerrors.CodeValidation, "webhook event required")
	}
	env, err := parseEnvelope(event.Payload)
	if err != nil {
		return IngestResult{}, err
	}
	target, err := mapGatewayStatus(env.Transaction.Status)
	if err != nil {
		return IngestResult{}, err
	}
	return s.process(ctx, event, env, target)
}

// RetryFailed replays failed deliveries below the retry cap.
func (s *Service) RetryFailed(ctx context.Context, limit int) (int, error) {
	events, err := s.repo.ListFailed(ctx, s.cfg.MaxRetries, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list failed webhooks")
	}
	replayed := 0
	for i := range events {
		if _, err := s.Reprocess(ctx, &events[i]); err != nil {
			s.logError(ctx, &events[i], err)
			continue
		}
		replayed++
	}
	return replayed, nil
}

func (s *Service) process(ctx context.Context, event *models.WebhookEvent, env *gatewayEnvelope, target enums.SaleStatus) (IngestResult, error) {
	claimed, err := s.repo.Claim(ctx, event.ID)
	if err != nil {
		return IngestResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim webhook event")
	}
	if !claimed {
		return IngestResult{Event: event, Duplicate: true}, nil
	}

	applyErr := s.sales.ApplyPaymentEvent(ctx, sales.PaymentEvent{
		TransactionID: env.Transaction.ID,
		Status:        target,
		AmountCents:   env.Transaction.AmountCents,
		Source:        "webhook:" + s.cfg.Name,
		OccurredAt:    env.OccurredAt,
	})
	if applyErr != nil {
		if markErr := s.repo.MarkFailed(ctx, event.ID, applyErr.Error()); markErr != nil {
			return IngestResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, markErr, "mark webhook failed")
		}
		s.logError(ctx, event, applyErr)
		return IngestResult{Event: event}, applyErr
	}

	if err := s.repo.MarkProcessed(ctx, event.ID); err != nil {
		return IngestResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark webhook processed")
	}
	event.Status = enums.WebhookStatusProcessed
	return IngestResult{Event: event}, nil
}

// recordRejected keeps an audit row for a delivery that failed signature
// verification. The envelope is parsed best effort for the claimed event id,
// but the row is stored under a synthetic event id so a forged delivery can
// never shadow the real event, and with retries already exhausted so the
// retry worker never replays it. A write error is only logged.
func (s *Service) recordRejected(ctx context.Context, delivery Delivery) {
	var env gatewayEnvelope
	_ = json.Unmarshal(delivery.Body, &env)

	event := &models.WebhookEvent{
		ID:            uuid.New(),
		Gateway:       s.cfg.Name,
		EventType:     env.EventType,
		TransactionID: env.Transaction.ID,
		Payload:       delivery.Body,
		Status:        enums.WebhookStatusFailed,
		RetryCount:    s.cfg.MaxRetries,
	}
	event.EventID = "rejected_" + event.ID.String()
	msg := "invalid webhook signature"
	if env.EventID != "" {
		msg = fmt.Sprintf("invalid webhook signature for event %s", env.EventID)
	}
	event.ErrorMessage = &msg

	if err := s.repo.Create(ctx, event); err != nil {
		s.logError(ctx, event, err)
	}
}

func (s *Service) logError(ctx context.Context, event *models.WebhookEvent, err error) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"gateway":        event.Gateway,
		"event_id":       event.EventID,
		"transaction_id": event.TransactionID,
		"error":          err.Error(),
	})
	s.logg.Warn(logCtx, "webhook processing failed")
}
