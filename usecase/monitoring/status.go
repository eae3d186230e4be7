package monitoring

import (
	"context"
	"fmt"

	"github.com/clustermaster/clustermaster/domain/model"
	"github.com/clustermaster/clustermaster/internal/logging"
	"github.com/clustermaster/clustermaster/usecase/workload"
)

// StatusInput names the cluster.
type StatusInput struct {
	Cluster string `json:"cluster"`
}

// StatusOutput describes the monitoring bundle of one cluster. Failures of
// individual reads are reported in Errors; the other fields stay usable.
type StatusOutput struct {
	Cluster   string                `json:"cluster_name"`
	Provider  model.Provider        `json:"provider"`
	Namespace string                `json:"namespace"`
	Healthy   bool                  `json:"healthy"`
	Pods      []model.PodStatus     `json:"pods"`
	Services  []model.ServiceStatus `json:"services"`
	Nodes     []model.NodeUsage     `json:"nodes,omitempty"`
	URLs      map[string]string     `json:"urls,omitempty"`
	Forwards  []model.ForwardStatus `json:"port_forwards,omitempty"`
	Errors    map[string]string     `json:"errors,omitempty"`
}

// Status reads pods, services and node usage of the cluster. Healthy is
// true when the monitoring namespace has pods and all of them run.
func (u *UseCase) Status(ctx context.Context, in *StatusInput) (out *StatusOutput, err error) {
	if in == nil || in.Cluster == "" {
		return nil, model.ErrClusterInvalid
	}
	ctx, finish := logging.Span(ctx, "UC", "monitoring.status", "cluster", in.Cluster)
	defer func() { finish(err) }()

	ref, err := u.ClusterPort.Resolve(ctx, in.Cluster)
	if err != nil {
		return nil, err
	}
	kc := ref.Context()
	out = &StatusOutput{Cluster: ref.Name, Provider: ref.Provider, Namespace: workload.MonitoringNamespace}
	fail := func(part string, err error) {
		if out.Errors == nil {
			out.Errors = map[string]string{}
		}
		out.Errors[part] = err.Error()
	}

	if pods, err := u.MonitoringPort.Pods(ctx, kc, workload.MonitoringNamespace); err != nil {
		fail("pods", err)
	} else {
		out.Pods = pods
	}
	if svcs, err := u.MonitoringPort.Services(ctx, kc, workload.MonitoringNamespace); err != nil {
		fail("services", err)
	} else {
		out.Services = svcs
	}
	if nodes, err := u.MonitoringPort.NodeUsage(ctx, kc); err != nil {
		fail("nodes", err)
	} else {
		out.Nodes = nodes
	}
	if u.Ledger != nil {
		if ports, ok, err := u.Ledger.Get(ctx, ref.Name); err != nil {
			fail("ports", err)
		} else if ok {
			out.URLs = map[string]string{}
			for role, p := range ports {
				out.URLs[string(role)] = fmt.Sprintf("http://localhost:%d", p)
			}
		}
	}
	if u.Forwarder != nil {
		for _, f := range u.Forwarder.List() {
			if f.Cluster == ref.Name {
				out.Forwards = append(out.Forwards, f)
			}
		}
	}

	out.Healthy = len(out.Pods) > 0
	for _, p := range out.Pods {
		if p.Phase != "Running" && p.Phase != "Succeeded" {
			out.Healthy = false
		}
	}
	return out, nil
}
