package workload

import (
	"context"

	"github.com/clustermaster/clustermaster/domain/model"
)

type ListInput struct {
	Cluster string `json:"cluster"`
}

type ListOutput struct {
	Context  string           `json:"context"`
	Releases []*model.Release `json:"releases"`
}

// List returns the releases of every namespace of the cluster.
func (u *UseCase) List(ctx context.Context, in *ListInput) (*ListOutput, error) {
	if in == nil || in.Cluster == "" {
		return nil, model.ErrClusterInvalid
	}
	ref, err := u.ClusterPort.Resolve(ctx, in.Cluster)
	if err != nil {
		return nil, err
	}
	rels, err := u.ReleasePort.List(ctx, ref.Context())
	if err != nil {
		return nil, err
	}
	return &ListOutput{Context: ref.Context(), Releases: rels}, nil
}
