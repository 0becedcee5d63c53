package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/config"
	"github.com/sells-group/leadgen/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertJobFailureRate  AlertType = "job_failure_rate"
	AlertFallbackRate    AlertType = "fallback_rate"
	AlertFallbackBacklog AlertType = "fallback_backlog"
)

// minSample is the smallest sample a rate alert is evaluated on.
const minSample = 5

// Alert is one breached threshold.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// webhookPayload is the body posted for one batch of alerts.
type webhookPayload struct {
	Source string  `json:"source"`
	Alerts []Alert `json:"alerts"`
}

// rule inspects a snapshot and reports at most one alert.
type rule func(cfg config.MonitoringConfig, snap *MetricsSnapshot) (Alert, bool)

var rules = []rule{jobFailureRule, fallbackRateRule, fallbackBacklogRule}

func jobFailureRule(cfg config.MonitoringConfig, snap *MetricsSnapshot) (Alert, bool) {
	finished := snap.JobsDone + snap.JobsFailed
	if finished < minSample || snap.JobsFailRate <= cfg.FailureRateThreshold {
		return Alert{}, false
	}
	return Alert{
		Type:     AlertJobFailureRate,
		Severity: "high",
		Message: fmt.Sprintf("%.1f%% of lead jobs failed in the last %dh (%d of %d, threshold %.1f%%)",
			snap.JobsFailRate*100, snap.LookbackHours, snap.JobsFailed, finished, cfg.FailureRateThreshold*100),
		Details: map[string]any{
			"failure_rate": snap.JobsFailRate,
			"threshold":    cfg.FailureRateThreshold,
			"failed":       snap.JobsFailed,
			"finished":     finished,
		},
	}, true
}

func fallbackRateRule(cfg config.MonitoringConfig, snap *MetricsSnapshot) (Alert, bool) {
	delivered := snap.Published + snap.Fallbacks
	if delivered < minSample || snap.FallbackRate <= cfg.FallbackRateThreshold {
		return Alert{}, false
	}
	return Alert{
		Type:     AlertFallbackRate,
		Severity: "high",
		Message: fmt.Sprintf("%.1f%% of leads went to the fallback queue (%d of %d in last %dh); check the broker",
			snap.FallbackRate*100, snap.Fallbacks, delivered, snap.LookbackHours),
		Details: map[string]any{
			"fallback_rate": snap.FallbackRate,
			"threshold":     cfg.FallbackRateThreshold,
			"fallbacks":     snap.Fallbacks,
			"delivered":     delivered,
		},
	}, true
}

func fallbackBacklogRule(cfg config.MonitoringConfig, snap *MetricsSnapshot) (Alert, bool) {
	if cfg.FallbackBacklog <= 0 || snap.FallbackDepth <= cfg.FallbackBacklog {
		return Alert{}, false
	}
	return Alert{
		Type:     AlertFallbackBacklog,
		Severity: "medium",
		Message: fmt.Sprintf("%d lead file(s) waiting in the fallback queue (limit %d); run leadgen replay",
			snap.FallbackDepth, cfg.FallbackBacklog),
		Details: map[string]any{
			"depth": snap.FallbackDepth,
			"limit": cfg.FallbackBacklog,
		},
	}, true
}

// Alerter turns a MetricsSnapshot into alerts and posts them to a webhook.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
	retry  resilience.RetryConfig
	now    func() time.Time
}

// NewAlerter creates an Alerter for cfg.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		retry:  resilience.NewRetryConfig(3, 1000, 8000, 2.0, 0.25),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate returns the alerts whose thresholds snap breaches.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := a.now()
	for _, r := range rules {
		if alert, ok := r(a.cfg, snap); ok {
			alert.Timestamp = now
			alerts = append(alerts, alert)
		}
	}
	return alerts
}

// SendAlerts posts alerts to the webhook in one request and returns how many
// were delivered: all of them or none.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	payload, err := json.Marshal(webhookPayload{Source: "leadgen", Alerts: alerts})
	if err != nil {
		zap.L().Error("monitoring: marshal alerts", zap.Error(err))
		return 0
	}

	cfg := a.retry
	cfg.OnRetry = resilience.RetryLogger("monitoring", "webhook")
	err = resilience.Do(ctx, cfg, func(ctx context.Context) error {
		return a.post(ctx, payload)
	})
	if err != nil {
		zap.L().Error("monitoring: failed to send alerts",
			zap.Int("alerts", len(alerts)),
			zap.String("error_class", resilience.ClassifyError(err)),
			zap.Error(err),
		)
		return 0
	}
	zap.L().Info("monitoring: alerts sent", zap.Int("alerts", len(alerts)))
	return len(alerts)
}

func (a *Alerter) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return resilience.Permanent(eris.Wrap(err, "monitoring: create webhook request"))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		err := eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(err, resp.StatusCode)
		}
		return err
	}
	return nil
}
