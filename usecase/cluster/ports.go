package cluster

import (
	"context"
	"fmt"
	"sort"

	"github.com/clustermaster/clustermaster/domain/model"
	"github.com/clustermaster/clustermaster/internal/logging"
	"github.com/clustermaster/clustermaster/usecase/workload"
)

func urls(ports model.PortAssignment) map[string]string {
	out := make(map[string]string, len(ports))
	for role, p := range ports {
		out[string(role)] = fmt.Sprintf("http://localhost:%d", p)
	}
	return out
}

// URLsInput names the cluster.
type URLsInput struct {
	Name string `json:"name"`
}

// URLsOutput lists the host URLs of the monitoring bundle.
type URLsOutput struct {
	Cluster     string               `json:"cluster_name"`
	Ports       model.PortAssignment `json:"ports"`
	URLs        map[string]string    `json:"urls"`
	Credentials *Credentials         `json:"credentials"`
}

// URLs returns the prometheus and grafana URLs recorded for the cluster.
func (u *UseCase) URLs(ctx context.Context, in *URLsInput) (*URLsOutput, error) {
	if in == nil || in.Name == "" {
		return nil, model.ErrClusterInvalid
	}
	ports, ok, err := u.Ledger.Get(ctx, in.Name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: no ports assigned to %s", model.ErrClusterNotFound, in.Name)
	}
	return &URLsOutput{
		Cluster:     in.Name,
		Ports:       ports,
		URLs:        urls(ports),
		Credentials: &Credentials{User: workload.GrafanaAdminUser, Password: workload.GrafanaAdminPassword},
	}, nil
}

// PortEntry is one ledger record.
type PortEntry struct {
	Cluster string               `json:"cluster_name"`
	Ports   model.PortAssignment `json:"ports"`
}

// Ports lists every ledger assignment sorted by cluster name.
func (u *UseCase) Ports(ctx context.Context) ([]PortEntry, error) {
	all, err := u.Ledger.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]PortEntry, 0, len(all))
	for name, p := range all {
		out = append(out, PortEntry{Cluster: name, Ports: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cluster < out[j].Cluster })
	return out, nil
}

// PortsOf returns the assignment of one cluster.
func (u *UseCase) PortsOf(ctx context.Context, name string) (*PortEntry, error) {
	p, ok, err := u.Ledger.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: no ports assigned to %s", model.ErrClusterNotFound, name)
	}
	return &PortEntry{Cluster: name, Ports: p}, nil
}

// ReleasePorts removes the assignment of a cluster and reports whether one
// existed. A missing assignment is not an error.
func (u *UseCase) ReleasePorts(ctx context.Context, name string) (bool, error) {
	unlock := u.lock(name)
	defer unlock()
	ok, err := u.Ledger.Release(ctx, name)
	if err == nil && ok {
		u.invalidate(ctx)
	}
	return ok, err
}

// PruneOutput lists the clusters whose assignments were dropped.
type PruneOutput struct {
	Removed []string `json:"removed"`
	Kept    int      `json:"kept"`
}

// PrunePorts drops ledger assignments of clusters no provider lists any more.
// Clusters with a lifecycle operation in flight are kept. Nothing is pruned
// when the provider listing fails.
func (u *UseCase) PrunePorts(ctx context.Context) (out *PruneOutput, err error) {
	ctx, finish := logging.Span(ctx, "UC", "cluster.prunePorts")
	defer func() { finish(err) }()

	refs, err := u.ClusterPort.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list clusters: %w", err)
	}
	live := make(map[string]bool, len(refs))
	for _, r := range refs {
		live[r.Name] = true
	}
	u.init()
	kept := 0
	removed, err := u.Ledger.Prune(ctx, func(name string) bool {
		ok := live[name] || u.locks.Busy(name)
		if ok {
			kept++
		}
		return ok
	})
	if err != nil {
		return nil, err
	}
	if len(removed) > 0 {
		u.invalidate(ctx)
	}
	if removed == nil {
		removed = []string{}
	}
	return &PruneOutput{Removed: removed, Kept: kept}, nil
}
