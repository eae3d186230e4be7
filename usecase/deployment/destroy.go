package deployment

import (
	"context"
	"fmt"

	"github.com/clustermaster/clustermaster/domain/model"
	"github.com/clustermaster/clustermaster/internal/logging"
)

type DestroyInput struct {
	ID     string `json:"id"`
	UserID string `json:"user_id,omitempty"`
}

type DestroyOutput struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// Destroy tears the deployment down synchronously. On success the working
// directory and the record are removed; on failure the record is kept with
// status destroy_failed. Only completed, failed or destroy_failed deployments
// can be destroyed.
func (u *UseCase) Destroy(ctx context.Context, in *DestroyInput) (out *DestroyOutput, err error) {
	if in == nil {
		return nil, model.ErrDeploymentNotFound
	}
	g, err := u.Get(ctx, &GetInput{ID: in.ID, UserID: in.UserID})
	if err != nil {
		return nil, err
	}
	d := g.Deployment
	switch d.Status {
	case model.DeploymentCompleted, model.DeploymentFailed, model.DeploymentDestroyFailed:
	default:
		return nil, fmt.Errorf("%w: deployment %s is %s", model.ErrDeploymentInvalid, d.ID, d.Status)
	}
	ctx, finish := logging.Span(ctx, "UC", "deployment.destroy", "id", d.ID, "cluster", d.ClusterName)
	defer func() { finish(err) }()

	dir, ok := u.Infra.Dir(d.ID)
	if !ok {
		return nil, fmt.Errorf("%w: no working directory for %s", model.ErrDeploymentNotFound, d.ID)
	}
	u.setStatus(ctx, d.ID, model.DeploymentDestroying, "Destroying cluster...")
	output, err := u.Infra.Run(ctx, dir, model.InfraDestroy)
	if err != nil {
		msg := "Terraform destroy failed:\n" + output
		u.setStatus(ctx, d.ID, model.DeploymentDestroyFailed, msg)
		u.record(ctx, "destroy", d, model.ActivityFailed, msg)
		u.notify(ctx, model.NotificationError, "Destroy failed", fmt.Sprintf("destroy of %s failed", d.ClusterName), d.ClusterName)
		return &DestroyOutput{Message: "Failed to destroy cluster", Error: msg}, nil
	}
	if err := u.Infra.Remove(d.ID); err != nil {
		logging.FromContext(ctx).Warn(ctx, "working directory not removed", "dir", dir, "error", err)
	}
	u.setStatus(ctx, d.ID, model.DeploymentDestroyed, "Cluster destroyed successfully")
	if err := u.Repo.Delete(ctx, d.ID); err != nil {
		logging.FromContext(ctx).Warn(ctx, "deployment record not deleted", "id", d.ID, "error", err)
	}
	u.record(ctx, "destroy", d, model.ActivitySuccess, "cluster destroyed")
	u.notify(ctx, model.NotificationInfo, "Cluster destroyed", fmt.Sprintf("deployment %s of %s destroyed", d.ID, d.ClusterName), d.ClusterName)
	return &DestroyOutput{Success: true, Message: "Cluster destroyed successfully"}, nil
}
