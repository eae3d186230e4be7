package domain

import (
	"context"
	"time"

	"github.com/clustermaster/clustermaster/domain/model"
)

// DeploymentRepository stores cloud deployment records.
type DeploymentRepository interface {
	Create(ctx context.Context, d *model.Deployment) error
	Get(ctx context.Context, id string) (*model.Deployment, error)
	// List returns records of userID, or every record when userID is empty.
	List(ctx context.Context, userID string) ([]*model.Deployment, error)
	UpdateStatus(ctx context.Context, id string, status model.DeploymentStatus, logs string) error
	Delete(ctx context.Context, id string) error
}

// ActivityRepository stores activity log entries.
type ActivityRepository interface {
	Add(ctx context.Context, a *model.Activity) error
	// List returns entries newest first, at most limit when limit > 0.
	List(ctx context.Context, cluster string, limit int) ([]*model.Activity, error)
	UpdateStatus(ctx context.Context, id, status, message string) error
	// Trim keeps the newest max entries and drops entries older than before.
	Trim(ctx context.Context, max int, before time.Time) (int, error)
}

// NotificationRepository stores notifications shown to operators.
type NotificationRepository interface {
	Add(ctx context.Context, n *model.Notification) error
	List(ctx context.Context, unreadOnly bool, limit int) ([]*model.Notification, error)
	MarkRead(ctx context.Context, id string) error
}

// Repositories groups repository interfaces built by a store backend.
type Repositories struct {
	Deployment   DeploymentRepository
	Activity     ActivityRepository
	Notification NotificationRepository
}
