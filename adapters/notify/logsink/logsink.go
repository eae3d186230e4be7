// Package logsink delivers notifications to the structured log.
package logsink

import (
	"context"

	"github.com/clustermaster/clustermaster/domain/model"
	"github.com/clustermaster/clustermaster/internal/logging"
)

// Notifier writes each notification as one log record. Errors become Error
// records and warnings Warn records; everything else is logged at Info.
type Notifier struct {
	// Logger overrides the logger carried by the context.
	Logger logging.Logger
}

func New() *Notifier { return &Notifier{} }

func (n *Notifier) Notify(ctx context.Context, ev *model.Notification) error {
	log := n.Logger
	if log == nil {
		log = logging.FromContext(ctx)
	}
	kv := []any{"id", ev.ID, "level", ev.Level, "cluster", ev.ClusterName, "message", ev.Message}
	switch ev.Level {
	case model.NotificationError:
		log.Error(ctx, "NOTIFY:"+ev.Title, kv...)
	case model.NotificationWarning:
		log.Warn(ctx, "NOTIFY:"+ev.Title, kv...)
	default:
		log.Info(ctx, "NOTIFY:"+ev.Title, kv...)
	}
	return nil
}

var _ model.NotifierPort = (*Notifier)(nil)
