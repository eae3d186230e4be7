package deployment

import (
	"context"
	"sync"
	"time"

	"github.com/clustermaster/clustermaster/domain"
	"github.com/clustermaster/clustermaster/domain/model"
	"github.com/clustermaster/clustermaster/internal/logging"
	"github.com/clustermaster/clustermaster/usecase/activity"
)

// UseCase runs cloud deployments in the background and tracks them in the
// deployment repository.
type UseCase struct {
	Repo  domain.DeploymentRepository
	Infra model.InfraPort
	// Activity records activity entries and notifications. Optional.
	Activity *activity.UseCase

	wg sync.WaitGroup
}

// Wait blocks until every background run has finished.
func (u *UseCase) Wait() { u.wg.Wait() }

// setStatus records a status transition; repository failures are logged only.
func (u *UseCase) setStatus(ctx context.Context, id string, status model.DeploymentStatus, logs string) {
	if err := u.Repo.UpdateStatus(ctx, id, status, logs); err != nil {
		logging.FromContext(ctx).Warn(ctx, "deployment status not recorded", "id", id, "status", status, "error", err)
	}
}

func (u *UseCase) record(ctx context.Context, action string, d *model.Deployment, status, message string) {
	if u.Activity == nil {
		return
	}
	_, err := u.Activity.Log(ctx, &activity.LogInput{
		Type:        "deployment",
		Action:      action,
		ClusterName: d.ClusterName,
		Status:      status,
		Message:     message,
		User:        d.UserID,
		Details:     map[string]string{"id": d.ID, "provider": string(d.Provider)},
	})
	if err != nil {
		logging.FromContext(ctx).Warn(ctx, "activity not recorded", "action", action, "error", err)
	}
}

func (u *UseCase) notify(ctx context.Context, level, title, message, cluster string) {
	if u.Activity == nil {
		return
	}
	if _, err := u.Activity.Notify(ctx, &activity.NotifyInput{Level: level, Title: title, Message: message, ClusterName: cluster}); err != nil {
		logging.FromContext(ctx).Warn(ctx, "notification failed", "title", title, "error", err)
	}
}

func now() time.Time { return time.Now().UTC() }
