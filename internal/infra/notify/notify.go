package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"firmaflow/internal/domain"
	"firmaflow/internal/usecase"

	"go.uber.org/zap"
)

// LogGateway writes events to the structured log. The default when no
// delivery channel is configured; dispatch is fire-and-forget either
// way.
type LogGateway struct {
	Log *zap.Logger
}

func NewLogGateway(log *zap.Logger) *LogGateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogGateway{Log: log}
}

func (g *LogGateway) Notify(ctx context.Context, event domain.Event) error {
	g.Log.Info("event",
		zap.String("type", string(event.Type)),
		zap.Strings("recipients", event.Recipients),
		zap.Any("payload", event.Payload),
		zap.Time("occurred_at", event.OccurredAt),
	)
	return nil
}

// WebhookGateway POSTs each event as JSON to a configured endpoint.
type WebhookGateway struct {
	URL    string
	Client *http.Client
	Log    *zap.Logger
}

func NewWebhookGateway(url string, timeout time.Duration, log *zap.Logger) *WebhookGateway {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &WebhookGateway{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
		Log:    log,
	}
}

func (g *WebhookGateway) Notify(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := g.Client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver %s: %w", event.Type, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("deliver %s: endpoint status %s", event.Type, resp.Status)
	}
	return nil
}

var (
	_ usecase.NotificationGateway = (*LogGateway)(nil)
	_ usecase.NotificationGateway = (*WebhookGateway)(nil)
)
