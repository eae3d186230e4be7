package workload

import (
	"context"
	"fmt"
	"time"

	"github.com/clustermaster/clustermaster/domain/model"
	"github.com/clustermaster/clustermaster/internal/logging"
)

// InstallInput describes a chart install on a cluster.
type InstallInput struct {
	// Cluster is the target cluster name.
	Cluster string `json:"cluster"`
	// Provider skips identity resolution when the caller already knows it.
	Provider model.Provider `json:"provider,omitempty"`
	// App is the application name; the release is named "{app}-{cluster}".
	App string `json:"app"`
	// Chart is a repo-qualified chart reference, e.g. "bitnami/nginx".
	Chart string `json:"chart"`
	// Namespace defaults to "default".
	Namespace string         `json:"namespace,omitempty"`
	Values    map[string]any `json:"values,omitempty"`
	// Timeout overrides the use case install timeout.
	Timeout time.Duration `json:"-"`
}

// InstallOutput describes the installed release.
type InstallOutput struct {
	Release     *model.Release `json:"release"`
	ReleaseName string         `json:"release_name"`
	Namespace   string         `json:"namespace"`
	Context     string         `json:"context"`
}

func (u *UseCase) ref(ctx context.Context, cluster string, p model.Provider) (model.ClusterRef, error) {
	if p != "" {
		return model.ClusterRef{Name: cluster, Provider: p}, nil
	}
	return u.ClusterPort.Resolve(ctx, cluster)
}

// Install ensures the namespace and chart repository, then installs the
// chart and waits for its workloads.
func (u *UseCase) Install(ctx context.Context, in *InstallInput) (*InstallOutput, error) {
	if in == nil || in.Cluster == "" || in.App == "" || in.Chart == "" {
		return nil, fmt.Errorf("%w: cluster, app and chart are required", model.ErrClusterInvalid)
	}
	ref, err := u.ref(ctx, in.Cluster, in.Provider)
	if err != nil {
		return nil, err
	}
	ns := in.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	out := &InstallOutput{ReleaseName: model.ReleaseName(in.App, in.Cluster), Namespace: ns, Context: ref.Context()}
	log := logging.FromContext(ctx).With("cluster", in.Cluster, "release", out.ReleaseName, "namespace", ns)

	if err := u.ReleasePort.EnsureNamespace(ctx, out.Context, ns); err != nil {
		return nil, fmt.Errorf("ensure namespace %s: %w", ns, err)
	}
	if repo, ok := RepoFor(in.Chart); ok {
		if err := u.ReleasePort.EnsureRepo(ctx, repo.Name, repo.URL); err != nil {
			log.Warn(ctx, "chart repository not registered", "repo", repo.Name, "error", err)
		}
	}
	timeout := in.Timeout
	if timeout <= 0 {
		timeout = u.installTimeout()
	}
	log.Info(ctx, "installing chart", "chart", in.Chart)
	rel, err := u.ReleasePort.Install(ctx, model.ReleaseSpec{
		Context:   out.Context,
		Name:      out.ReleaseName,
		Chart:     in.Chart,
		Namespace: ns,
		Values:    in.Values,
		Timeout:   timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("install %s: %w", out.ReleaseName, err)
	}
	out.Release = rel
	return out, nil
}
