package cluster

import (
	"context"
	"fmt"
	"time"

	"github.com/clustermaster/clustermaster/domain/model"
	"github.com/clustermaster/clustermaster/internal/logging"
)

// DeleteInput identifies the cluster to remove.
type DeleteInput struct {
	Name string `json:"name"`
}

// DeleteOutput combines the provider result with the cleanup outcome.
type DeleteOutput struct {
	Success         bool           `json:"success"`
	Cluster         string         `json:"cluster_name"`
	Provider        model.Provider `json:"provider"`
	Message         string         `json:"message,omitempty"`
	Error           string         `json:"error,omitempty"`
	ForwardsStopped int            `json:"port_forwards_stopped"`
	PortsReleased   bool           `json:"ports_released"`
	CleanupErrors   []string       `json:"cleanup_errors,omitempty"`
}

// Delete stops the cluster's port forwards and releases its ports, then
// deletes it. Cleanup failures are reported and never block the deletion.
func (u *UseCase) Delete(ctx context.Context, in *DeleteInput) (out *DeleteOutput, err error) {
	if in == nil || in.Name == "" {
		return nil, model.ErrClusterInvalid
	}
	ctx, finish := logging.Span(ctx, "UC", "cluster.delete", "cluster", in.Name)
	defer func() { finish(err) }()

	unlock := u.lock(in.Name)
	defer unlock()

	ref, err := u.ClusterPort.Resolve(ctx, in.Name)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	done := u.begin(ctx, "delete", in.Name, map[string]string{"provider": string(ref.Provider)})
	out = &DeleteOutput{Cluster: in.Name, Provider: ref.Provider}

	if u.Forwarder != nil {
		out.ForwardsStopped = u.Forwarder.Stop(in.Name)
	}
	released, rerr := u.Ledger.Release(ctx, in.Name)
	if rerr != nil {
		out.CleanupErrors = append(out.CleanupErrors, fmt.Sprintf("release ports: %v", rerr))
	}
	out.PortsReleased = released

	res := u.ClusterPort.Delete(ctx, ref)
	u.observe("delete", ref.Provider, res.Success, start)
	out.Success = res.Success
	out.Message = res.Message
	if !res.Success {
		out.Error = res.Message
		u.notify(ctx, model.NotificationError, "Cluster deletion failed", res.Message, in.Name)
	} else {
		u.init()
		u.states.set(in.Name, model.ScaleStateAbsent)
		u.notify(ctx, model.NotificationInfo, "Cluster deleted", fmt.Sprintf("cluster %s (%s) deleted", in.Name, ref.Provider), in.Name)
	}
	done(statusOf(res.Success), res.Message)
	u.invalidate(ctx)
	return out, nil
}
