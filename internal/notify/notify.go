// Package notify posts cycle-level events to an optional operator webhook
// (§6 "optional webhook URL for notifications"). Channel choice (Slack,
// a generic incoming webhook, anything else) is a host concern; this
// package only fixes the payload shape to slack.WebhookMessage.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"

	"github.com/antigravity-dev/agencyos/internal/config"
)

// Notifier posts best-effort notifications; a missing webhook URL makes it
// a no-op so the orchestrator never blocks on notification delivery.
type Notifier struct {
	webhookURL string
	logger     *slog.Logger
}

func New(cfg config.Notify, logger *slog.Logger) *Notifier {
	return &Notifier{webhookURL: cfg.WebhookURL, logger: logger}
}

// Enabled reports whether a webhook URL is configured.
func (n *Notifier) Enabled() bool {
	return n.webhookURL != ""
}

// CycleFailed notifies that a cycle failed at a given phase.
func (n *Notifier) CycleFailed(ctx context.Context, cycleNumber int64, phase string, cause error) {
	n.post(fmt.Sprintf(":rotating_light: cycle %d failed at phase %s: %v", cycleNumber, phase, cause))
}

// GateRegressed notifies that a previously-passing gate started failing.
func (n *Notifier) GateRegressed(ctx context.Context, gate string, value *float64) {
	msg := fmt.Sprintf(":warning: gate %s started failing", gate)
	if value != nil {
		msg = fmt.Sprintf("%s (value=%.3f)", msg, *value)
	}
	n.post(msg)
}

// SnapshotWriteFailed notifies that the atomic snapshot write failed.
func (n *Notifier) SnapshotWriteFailed(ctx context.Context, cause error) {
	n.post(fmt.Sprintf(":x: snapshot write failed: %v", cause))
}

func (n *Notifier) post(text string) {
	if !n.Enabled() {
		return
	}
	msg := &slack.WebhookMessage{Text: text}
	if err := slack.PostWebhook(n.webhookURL, msg); err != nil {
		n.logger.Warn("notify: webhook post failed", "error", err)
	}
}
