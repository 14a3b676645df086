package webhooks

import (
	"io"
	"net/http"
	"time"

	"github.com/centpay/centpay-backend/api/responses"
	"github.com/centpay/centpay-backend/internal/webhooks"
	pkgerrors "github.com/centpay/centpay-backend/pkg/errors"
	"github.com/centpay/centpay-backend/pkg/logger"
	"github.com/centpay/centpay-backend/pkg/metrics"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// GatewayWebhook ingests one signed delivery from the payment gateway.
// Duplicates are acknowledged with 200 so the gateway stops redelivering.
func GatewayWebhook(svc *webhooks.Service, gateway string, wm *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		start := time.Now()
		wm.IncReceived(gateway)

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			wm.IncFailed(gateway)
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read webhook body"))
			return
		}

		result, err := svc.Ingest(r.Context(), webhooks.Delivery{
			Signature: r.Header.Get("X-Gateway-Signature"),
			Body:      body,
		})
		wm.ObserveIngestDuration(gateway, time.Since(start))
		if err != nil {
			wm.IncFailed(gateway)
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if result.Duplicate {
			wm.IncDuplicate(gateway)
		} else {
			wm.IncProcessed(gateway)
		}

		payload := map[string]any{
			"duplicate": result.Duplicate,
		}
		if result.Event != nil {
			payload["event_id"] = result.Event.EventID
			payload["status"] = string(result.Event.Status)
		}
		responses.WriteSuccess(w, payload)
	}
}
