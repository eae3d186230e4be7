package workload

import (
	"context"
	"fmt"
	"strings"

	"github.com/clustermaster/clustermaster/domain/model"
)

type UninstallInput struct {
	Cluster string `json:"cluster"`
	// App is an application name or an already qualified release name.
	App string `json:"app"`
}

type UninstallOutput struct {
	ReleaseName string `json:"release_name"`
	Namespace   string `json:"namespace"`
}

// QualifiedName returns the release name for app on cluster. A name that
// already carries the "-{cluster}" suffix is returned unchanged.
func QualifiedName(app, cluster string) string {
	if strings.HasSuffix(app, "-"+cluster) {
		return app
	}
	return model.ReleaseName(app, cluster)
}

// Uninstall finds the release namespace and removes the release.
func (u *UseCase) Uninstall(ctx context.Context, in *UninstallInput) (*UninstallOutput, error) {
	if in == nil || in.Cluster == "" || in.App == "" {
		return nil, model.ErrReleaseNotFound
	}
	ref, err := u.ClusterPort.Resolve(ctx, in.Cluster)
	if err != nil {
		return nil, err
	}
	name := QualifiedName(in.App, in.Cluster)
	rels, err := u.ReleasePort.List(ctx, ref.Context())
	if err != nil {
		return nil, err
	}
	for _, r := range rels {
		if r.Name != name {
			continue
		}
		if err := u.ReleasePort.Uninstall(ctx, ref.Context(), r.Namespace, name, DefaultUninstallTimeout); err != nil {
			return nil, fmt.Errorf("uninstall %s: %w", name, err)
		}
		return &UninstallOutput{ReleaseName: name, Namespace: r.Namespace}, nil
	}
	return nil, fmt.Errorf("%w: %s", model.ErrReleaseNotFound, name)
}
