package monitoring

import (
	"context"
	"errors"
	"fmt"

	"github.com/clustermaster/clustermaster/domain/model"
	"github.com/clustermaster/clustermaster/internal/logging"
	"github.com/clustermaster/clustermaster/usecase/workload"
)

// Bundle statuses.
const (
	StatusInstalled   = "installed"
	StatusUninstalled = "uninstalled"
	StatusPartial     = "partial"
	StatusNotFound    = "not_found"
	StatusFailed      = "failed"
)

var errNoReleases = errors.New("monitoring releases are not configured")

// InstallInput names the cluster.
type InstallInput struct {
	Cluster string `json:"cluster"`
}

// Credentials are the dashboard login of the bundle.
type Credentials struct {
	User     string `json:"user"`
	Password string `json:"password"`
}

// InstallOutput reports the installed bundle. A failed port forward leaves
// the installation in place and is reported in PortForwardError.
type InstallOutput struct {
	Cluster          string               `json:"cluster_name"`
	Provider         model.Provider       `json:"provider"`
	Namespace        string               `json:"namespace"`
	Status           string               `json:"status"`
	Releases         []string             `json:"releases"`
	Ports            model.PortAssignment `json:"ports"`
	URLs             map[string]string    `json:"urls"`
	Credentials      *Credentials         `json:"credentials"`
	PortForwardError string               `json:"port_forward_error,omitempty"`
}

// Install installs the monitoring bundle on an existing cluster. The
// cluster's ledger assignment is reused, or allocated when the cluster was
// created elsewhere.
func (u *UseCase) Install(ctx context.Context, in *InstallInput) (out *InstallOutput, err error) {
	if in == nil || in.Cluster == "" {
		return nil, model.ErrClusterInvalid
	}
	if u.Releases == nil {
		return nil, errNoReleases
	}
	ctx, finish := logging.Span(ctx, "UC", "monitoring.install", "cluster", in.Cluster)
	defer func() { finish(err) }()

	ref, err := u.ClusterPort.Resolve(ctx, in.Cluster)
	if err != nil {
		return nil, err
	}
	ports, err := u.Ledger.Assign(ctx, ref.Name)
	if err != nil {
		return nil, fmt.Errorf("allocate ports: %w", err)
	}
	defer u.invalidate(ctx)

	out = &InstallOutput{
		Cluster:     ref.Name,
		Provider:    ref.Provider,
		Namespace:   workload.MonitoringNamespace,
		Status:      StatusInstalled,
		Ports:       ports,
		URLs:        map[string]string{},
		Credentials: &Credentials{User: workload.GrafanaAdminUser, Password: workload.GrafanaAdminPassword},
	}
	for _, wi := range workload.MonitoringBundle(ref, ports) {
		rel, err := u.Releases.Install(ctx, wi)
		if err != nil {
			return nil, fmt.Errorf("install %s: %w", wi.App, err)
		}
		out.Releases = append(out.Releases, rel.ReleaseName)
	}
	for role, p := range ports {
		out.URLs[string(role)] = fmt.Sprintf("http://localhost:%d", p)
	}

	if u.Forwarder != nil {
		u.Forwarder.Stop(ref.Name)
		if err := u.Forwarder.Start(ctx, ref, workload.MonitoringForwards(ports)); err != nil {
			logging.FromContext(ctx).Warn(ctx, "port forward failed", "error", err)
			out.PortForwardError = err.Error()
		}
	}
	return out, nil
}

// UninstallInput names the cluster.
type UninstallInput struct {
	Cluster string `json:"cluster"`
}

// ReleaseResult is the outcome of removing one bundle release.
type ReleaseResult struct {
	App     string `json:"app"`
	Release string `json:"release"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// UninstallOutput reports the removal of the bundle.
type UninstallOutput struct {
	Cluster          string          `json:"cluster_name"`
	Namespace        string          `json:"namespace"`
	Status           string          `json:"status"`
	Results          []ReleaseResult `json:"results"`
	ForwardsStopped  int             `json:"port_forwards_stopped"`
	NamespaceDeleted bool            `json:"namespace_deleted"`
	NamespaceError   string          `json:"namespace_error,omitempty"`
}

// Uninstall stops the bundle's port forwards, removes the dashboard and the
// time-series database, then deletes the monitoring namespace. Releases
// that are already gone are reported as not_found. The ledger assignment is
// kept because it belongs to the cluster.
func (u *UseCase) Uninstall(ctx context.Context, in *UninstallInput) (out *UninstallOutput, err error) {
	if in == nil || in.Cluster == "" {
		return nil, model.ErrClusterInvalid
	}
	if u.Releases == nil {
		return nil, errNoReleases
	}
	ctx, finish := logging.Span(ctx, "UC", "monitoring.uninstall", "cluster", in.Cluster)
	defer func() { finish(err) }()

	ref, err := u.ClusterPort.Resolve(ctx, in.Cluster)
	if err != nil {
		return nil, err
	}
	defer u.invalidate(ctx)

	out = &UninstallOutput{Cluster: ref.Name, Namespace: workload.MonitoringNamespace, Status: StatusUninstalled}
	if u.Forwarder != nil {
		out.ForwardsStopped = u.Forwarder.Stop(ref.Name)
	}
	bundle := workload.MonitoringBundle(ref, nil)
	for i := len(bundle) - 1; i >= 0; i-- {
		app := bundle[i].App
		res := ReleaseResult{App: app, Release: workload.QualifiedName(app, ref.Name), Status: StatusUninstalled}
		_, err := u.Releases.Uninstall(ctx, &workload.UninstallInput{Cluster: ref.Name, App: app})
		switch {
		case err == nil:
		case errors.Is(err, model.ErrReleaseNotFound):
			res.Status = StatusNotFound
		default:
			res.Status, res.Error = StatusFailed, err.Error()
			out.Status = StatusPartial
		}
		out.Results = append(out.Results, res)
	}

	if u.MonitoringPort != nil {
		deleted, err := u.MonitoringPort.DeleteNamespace(ctx, ref.Context(), workload.MonitoringNamespace)
		if err != nil {
			out.NamespaceError = err.Error()
			out.Status = StatusPartial
		}
		out.NamespaceDeleted = deleted
	}
	return out, nil
}
