package notify

import (
	"context"

	"github.com/nestiq/lead-engine/pkg/logging"
)

// AdminNotifier delivers operational alerts to the tenant's staff. Delivery
// is best effort: callers never fail a conversation turn over a notification.
type AdminNotifier interface {
	Notify(ctx context.Context, tenantID, message string) error
}

// LogNotifier writes notifications to the structured log. It stands in for
// channel-specific notifiers (SMS, email) in environments without one.
type LogNotifier struct {
	log *logging.Logger
}

func NewLogNotifier(log *logging.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, tenantID, message string) error {
	n.log.Info("admin notification", "tenant_id", tenantID, "message", message)
	return nil
}
