package backup

import (
	"context"
	"time"

	"github.com/clustermaster/clustermaster/domain/model"
	"github.com/clustermaster/clustermaster/internal/logging"
	"github.com/clustermaster/clustermaster/usecase/activity"
	"github.com/clustermaster/clustermaster/usecase/cluster"
)

// NamespacedResources are exported from every non-system namespace.
var NamespacedResources = []string{
	"serviceaccounts",
	"configmaps",
	"secrets",
	"persistentvolumeclaims",
	"roles",
	"rolebindings",
	"services",
	"deployments",
	"statefulsets",
	"daemonsets",
	"cronjobs",
	"horizontalpodautoscalers",
	"ingresses",
	"networkpolicies",
}

// ClusterResources are exported once per cluster.
var ClusterResources = []string{"clusterroles", "clusterrolebindings"}

// SystemNamespaces are owned by the provider and never exported.
var SystemNamespaces = map[string]bool{
	"kube-system":        true,
	"kube-public":        true,
	"kube-node-lease":    true,
	"local-path-storage": true,
}

// ClusterCreator creates the target cluster of a restore. It is implemented
// by *cluster.UseCase.
type ClusterCreator interface {
	Create(ctx context.Context, in *cluster.CreateInput) (*cluster.CreateOutput, error)
}

// UseCase creates, lists, restores and deletes resource-level backups.
type UseCase struct {
	ClusterPort model.ClusterPort
	Resources   model.ResourcePort
	Store       model.BackupStore
	// Clusters creates restore targets. Restore fails without it.
	Clusters ClusterCreator
	// Activity records backup activity. Optional.
	Activity *activity.UseCase
	// Now defaults to time.Now.
	Now func() time.Time
}

func (u *UseCase) now() time.Time {
	if u.Now != nil {
		return u.Now()
	}
	return time.Now()
}

func (u *UseCase) begin(ctx context.Context, action, clusterName string, details map[string]string) func(status, message string) {
	if u.Activity == nil {
		return func(string, string) {}
	}
	out, err := u.Activity.Log(ctx, &activity.LogInput{
		Type:        "backup",
		Action:      action,
		ClusterName: clusterName,
		Status:      model.ActivityStarted,
		Details:     details,
	})
	if err != nil {
		logging.FromContext(ctx).Warn(ctx, "activity not recorded", "action", action, "error", err)
		return func(string, string) {}
	}
	return func(status, message string) {
		if err := u.Activity.UpdateStatus(ctx, &activity.UpdateStatusInput{ID: out.Activity.ID, Status: status, Message: message}); err != nil {
			logging.FromContext(ctx).Warn(ctx, "activity status not recorded", "action", action, "error", err)
		}
	}
}
