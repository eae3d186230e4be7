package cluster

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/clustermaster/clustermaster/domain/model"
	"github.com/clustermaster/clustermaster/internal/logging"
)

// ScaleInput selects the target worker count.
type ScaleInput struct {
	Name    string `json:"name"`
	Workers int    `json:"workers" validate:"gte=0,lte=50"`
}

// ScaleOutput reports the outcome of a scale. For kind the cluster was
// recreated and Warning describes the data loss.
type ScaleOutput struct {
	Success        bool             `json:"success"`
	Cluster        string           `json:"cluster_name"`
	Provider       model.Provider   `json:"provider"`
	State          model.ScaleState `json:"state"`
	PreviousAgents int              `json:"previous_agents"`
	CurrentAgents  int              `json:"current_agents"`
	Destructive    bool             `json:"destructive"`
	Warning        string           `json:"warning,omitempty"`
	Message        string           `json:"message,omitempty"`
	Error          string           `json:"error,omitempty"`
	Operations     []string         `json:"operations,omitempty"`
}

// Scale changes the worker count. k3d scales live; kind is deleted and
// recreated with the same host ports. A failure leaves the cluster in state
// scale_failed and is not retried.
func (u *UseCase) Scale(ctx context.Context, in *ScaleInput) (out *ScaleOutput, err error) {
	if in == nil || in.Name == "" {
		return nil, model.ErrClusterInvalid
	}
	if in.Workers < 0 {
		return nil, fmt.Errorf("%w: negative worker count", model.ErrClusterInvalid)
	}
	ctx, finish := logging.Span(ctx, "UC", "cluster.scale", "cluster", in.Name, "workers", in.Workers)
	defer func() { finish(err) }()

	unlock := u.lock(in.Name)
	defer unlock()

	ref, err := u.ClusterPort.Resolve(ctx, in.Name)
	if err != nil {
		return nil, err
	}
	ports, _, err := u.Ledger.Get(ctx, in.Name)
	if err != nil {
		return nil, err
	}

	u.init()
	u.states.set(in.Name, model.ScaleStateScaling)
	start := time.Now()
	done := u.begin(ctx, "scale", in.Name, map[string]string{
		"provider": string(ref.Provider),
		"workers":  strconv.Itoa(in.Workers),
	})

	rep := u.ClusterPort.Scale(ctx, ref, in.Workers, ports)
	u.observe("scale", ref.Provider, rep.Success, start)
	out = &ScaleOutput{
		Success:        rep.Success,
		Cluster:        in.Name,
		Provider:       ref.Provider,
		PreviousAgents: rep.Previous,
		CurrentAgents:  rep.Current,
		Destructive:    rep.Destructive,
		Warning:        rep.Warning,
		Message:        rep.Message,
		Operations:     rep.Steps,
	}
	if rep.Success {
		out.State = model.ScaleStateReady
		u.notify(ctx, model.NotificationSuccess, "Cluster scaled", rep.Message, in.Name)
	} else {
		out.State = model.ScaleStateScaleFailed
		out.Error = rep.Message
		u.notify(ctx, model.NotificationError, "Cluster scaling failed", rep.Message, in.Name)
	}
	u.states.set(in.Name, out.State)
	done(statusOf(rep.Success), rep.Message)
	u.invalidate(ctx)
	return out, nil
}
