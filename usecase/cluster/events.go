package cluster

import (
	"context"

	"github.com/clustermaster/clustermaster/domain/model"
	"github.com/clustermaster/clustermaster/internal/logging"
	"github.com/clustermaster/clustermaster/usecase/activity"
)

// begin records a started activity and returns a function recording the
// final status. Recording failures are logged only.
func (u *UseCase) begin(ctx context.Context, action, cluster string, details map[string]string) func(status, message string) {
	if u.Activity == nil {
		return func(string, string) {}
	}
	out, err := u.Activity.Log(ctx, &activity.LogInput{
		Type:        "cluster",
		Action:      action,
		ClusterName: cluster,
		Status:      model.ActivityStarted,
		Details:     details,
	})
	if err != nil {
		logging.FromContext(ctx).Warn(ctx, "activity not recorded", "action", action, "error", err)
		return func(string, string) {}
	}
	id := out.Activity.ID
	return func(status, message string) {
		if err := u.Activity.UpdateStatus(ctx, &activity.UpdateStatusInput{ID: id, Status: status, Message: message}); err != nil {
			logging.FromContext(ctx).Warn(ctx, "activity status not recorded", "action", action, "error", err)
		}
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

func statusOf(success bool) string {
	if success {
		return model.ActivitySuccess
	}
	return model.ActivityFailed
}
