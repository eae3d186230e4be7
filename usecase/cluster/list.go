package cluster

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/clustermaster/clustermaster/domain/model"
	"github.com/clustermaster/clustermaster/internal/cache"
	"github.com/clustermaster/clustermaster/internal/logging"
)

// listConcurrency bounds the per-cluster node queries of a full list.
const listConcurrency = 8

// ListInput selects the list mode.
type ListInput struct {
	// Detailed adds nodes and node counts to each entry.
	Detailed bool `json:"detailed"`
}

// ListOutput contains the clusters of every installed provider.
type ListOutput struct {
	Clusters []*model.ClusterDetail `json:"clusters"`
}

// List returns the clusters of every installed provider with their ports.
// The detailed form queries nodes for each cluster concurrently; a failure
// on one cluster is recorded on its entry only.
func (u *UseCase) List(ctx context.Context, in *ListInput) (*ListOutput, error) {
	if in == nil {
		in = &ListInput{}
	}
	key, class := "list:fast", cache.Fast
	if in.Detailed {
		key, class = "list:full", cache.Full
	}
	return cache.GetOrLoad(ctx, u.Cache, key, class, func(ctx context.Context) (*ListOutput, error) {
		return u.list(ctx, in.Detailed)
	})
}

func (u *UseCase) list(ctx context.Context, detailed bool) (*ListOutput, error) {
	refs, err := u.ClusterPort.List(ctx)
	if err != nil && len(refs) == 0 {
		return nil, err
	}
	if err != nil {
		logging.FromContext(ctx).Warn(ctx, "partial cluster list", "error", err)
	}
	assigned, err := u.Ledger.List(ctx)
	if err != nil {
		return nil, err
	}
	out := &ListOutput{Clusters: make([]*model.ClusterDetail, len(refs))}
	for i, ref := range refs {
		out.Clusters[i] = &model.ClusterDetail{ClusterSummary: model.ClusterSummary{
			ClusterRef: ref,
			Context:    ref.Context(),
			Ports:      assigned[ref.Name],
		}}
	}
	if !detailed {
		u.init()
		for _, d := range out.Clusters {
			d.State = u.stateOf(d.Name)
		}
		return out, nil
	}

	var g errgroup.Group
	g.SetLimit(listConcurrency)
	for _, d := range out.Clusters {
		g.Go(func() error {
			u.fill(ctx, d)
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}

// fill adds nodes and state to d. Errors are stored on d.
func (u *UseCase) fill(ctx context.Context, d *model.ClusterDetail) {
	u.init()
	d.State = u.stateOf(d.Name)
	nodes, err := u.ClusterPort.Nodes(ctx, d.ClusterRef)
	if err != nil {
		d.Error = err.Error()
		return
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	d.Nodes = nodes
	for _, n := range nodes {
		if n.IsControlPlane() || n.IsWorker() {
			d.NodeCount++
		}
	}
}

// GetInput names the cluster.
type GetInput struct {
	Name string `json:"name"`
}

// Get returns the detail view of one cluster.
func (u *UseCase) Get(ctx context.Context, in *GetInput) (*model.ClusterDetail, error) {
	if in == nil || in.Name == "" {
		return nil, model.ErrClusterInvalid
	}
	return cache.GetOrLoad(ctx, u.Cache, "detail:"+in.Name, cache.Full, func(ctx context.Context) (*model.ClusterDetail, error) {
		ref, err := u.ClusterPort.Resolve(ctx, in.Name)
		if err != nil {
			return nil, err
		}
		ports, _, err := u.Ledger.Get(ctx, in.Name)
		if err != nil {
			return nil, err
		}
		d := &model.ClusterDetail{ClusterSummary: model.ClusterSummary{ClusterRef: ref, Context: ref.Context(), Ports: ports}}
		u.fill(ctx, d)
		return d, nil
	})
}

// NodesInput names the cluster.
type NodesInput struct {
	Name string `json:"name"`
}

// NodesOutput lists the nodes of a cluster.
type NodesOutput struct {
	Cluster  string         `json:"cluster_name"`
	Provider model.Provider `json:"provider"`
	Nodes    []model.Node   `json:"nodes"`
}

// Nodes returns the nodes of a cluster as reported by its provider.
func (u *UseCase) Nodes(ctx context.Context, in *NodesInput) (*NodesOutput, error) {
	if in == nil || in.Name == "" {
		return nil, model.ErrClusterInvalid
	}
	ref, err := u.ClusterPort.Resolve(ctx, in.Name)
	if err != nil {
		return nil, err
	}
	nodes, err := u.ClusterPort.Nodes(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &NodesOutput{Cluster: ref.Name, Provider: ref.Provider, Nodes: nodes}, nil
}

func (u *UseCase) stateOf(name string) model.ScaleState {
	if s, ok := u.states.get(name); ok {
		return s
	}
	return model.ScaleStateReady
}
