package cluster

import (
	"context"
	"time"

	"github.com/clustermaster/clustermaster/domain/model"
	"github.com/clustermaster/clustermaster/internal/logging"
)

// PowerInput names the cluster to start or stop.
type PowerInput struct {
	Name string `json:"name"`
}

// PowerOutput reports a start or stop.
type PowerOutput struct {
	Success  bool           `json:"success"`
	Cluster  string         `json:"cluster_name"`
	Provider model.Provider `json:"provider"`
	Message  string         `json:"message,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Start resumes the node containers of a stopped cluster.
func (u *UseCase) Start(ctx context.Context, in *PowerInput) (*PowerOutput, error) {
	return u.power(ctx, "start", in)
}

// Stop pauses the node containers of a cluster.
func (u *UseCase) Stop(ctx context.Context, in *PowerInput) (*PowerOutput, error) {
	return u.power(ctx, "stop", in)
}

func (u *UseCase) power(ctx context.Context, op string, in *PowerInput) (out *PowerOutput, err error) {
	if in == nil || in.Name == "" {
		return nil, model.ErrClusterInvalid
	}
	ctx, finish := logging.Span(ctx, "UC", "cluster."+op, "cluster", in.Name)
	defer func() { finish(err) }()

	unlock := u.lock(in.Name)
	defer unlock()

	ref, err := u.ClusterPort.Resolve(ctx, in.Name)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	done := u.begin(ctx, op, in.Name, map[string]string{"provider": string(ref.Provider)})
	var res *model.OpResult
	if op == "start" {
		res = u.ClusterPort.Start(ctx, ref)
	} else {
		if u.Forwarder != nil {
			u.Forwarder.Stop(in.Name)
		}
		res = u.ClusterPort.Stop(ctx, ref)
	}
	u.observe(op, ref.Provider, res.Success, start)
	done(statusOf(res.Success), res.Message)
	u.invalidate(ctx)
	out = &PowerOutput{Success: res.Success, Cluster: in.Name, Provider: ref.Provider, Message: res.Message}
	if !res.Success {
		out.Error = res.Message
	}
	return out, nil
}
