package cluster

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/clustermaster/clustermaster/domain/model"
	"github.com/clustermaster/clustermaster/internal/logging"
	"github.com/clustermaster/clustermaster/usecase/workload"
)

// Create statuses.
const (
	StatusSuccess = "success"
	StatusExists  = "exists"
	StatusFailed  = "failed"
)

// CreateInput contains data to create a cluster.
type CreateInput struct {
	// Name is the cluster name (DNS-1123 label).
	Name string `json:"name" validate:"required"`
	// Provider is "kind" or "k3d".
	Provider string `json:"provider" validate:"required"`
	// ControlPlanes defaults to 1.
	ControlPlanes int `json:"control_planes,omitempty" validate:"gte=0,lte=7"`
	// Workers is the number of kind workers or k3d agents.
	Workers int `json:"workers" validate:"gte=0,lte=50"`
	// InstallMonitoring installs the prometheus and grafana bundle after creation.
	InstallMonitoring bool `json:"install_monitoring"`
	// K8sVersion pins the node image, e.g. "v1.30.0".
	K8sVersion string `json:"k8s_version,omitempty"`
	// Image overrides the node image.
	Image string `json:"image,omitempty"`
}

// Credentials are the dashboard login of the monitoring bundle.
type Credentials struct {
	User     string `json:"user"`
	Password string `json:"password"`
}

// CreateOutput reports the outcome of a create. Success stays true when only
// dependent steps failed; their errors are reported separately.
type CreateOutput struct {
	Status           string               `json:"status"`
	Success          bool                 `json:"success"`
	Cluster          string               `json:"cluster_name"`
	Provider         model.Provider       `json:"provider"`
	Context          string               `json:"context"`
	NodeCount        int                  `json:"node_count"`
	Ports            model.PortAssignment `json:"ports,omitempty"`
	URLs             map[string]string    `json:"urls,omitempty"`
	Credentials      *Credentials         `json:"credentials,omitempty"`
	Message          string               `json:"message,omitempty"`
	Error            string               `json:"error,omitempty"`
	MonitoringError  string               `json:"monitoring_error,omitempty"`
	PortForwardError string               `json:"port_forward_error,omitempty"`
	Steps            []string             `json:"steps,omitempty"`
}

// Create creates a cluster. An existing cluster is reported with status
// "exists" without side effects. Ports are allocated before the provider is
// called and released again when the provider fails. The monitoring bundle
// and its port forwards never roll back the cluster.
func (u *UseCase) Create(ctx context.Context, in *CreateInput) (out *CreateOutput, err error) {
	if in == nil {
		return nil, model.ErrClusterInvalid
	}
	p, err := model.ParseProvider(in.Provider)
	if err != nil {
		return nil, err
	}
	if err := model.ValidateClusterName(in.Name); err != nil {
		return nil, err
	}
	if in.Workers < 0 || in.ControlPlanes < 0 {
		return nil, fmt.Errorf("%w: negative node count", model.ErrClusterInvalid)
	}
	ctx, finish := logging.Span(ctx, "UC", "cluster.create", "cluster", in.Name, "provider", p)
	defer func() { finish(err) }()

	unlock := u.lock(in.Name)
	defer unlock()

	ref := model.ClusterRef{Name: in.Name, Provider: p}
	cps := in.ControlPlanes
	if cps == 0 {
		cps = 1
	}
	out = &CreateOutput{Cluster: in.Name, Provider: p, Context: ref.Context(), NodeCount: cps + in.Workers}

	if !u.ClusterPort.Installed(ctx, p) {
		return nil, fmt.Errorf("%w: %s", model.ErrToolUnavailable, p)
	}
	owner, err := u.owner(ctx, in.Name)
	if err != nil {
		return nil, err
	}
	switch {
	case owner == p:
		out.Status, out.Success = StatusExists, true
		out.Message = fmt.Sprintf("cluster %s already exists", in.Name)
		ports, ok, gerr := u.Ledger.Get(ctx, in.Name)
		if gerr != nil {
			logging.FromContext(ctx).Warn(ctx, "ports not read for existing cluster", "error", gerr)
		}
		if ok {
			out.Ports = ports
			out.URLs = urls(ports)
		}
		return out, nil
	case owner != "":
		return nil, fmt.Errorf("%w: cluster %s is owned by %s", model.ErrAlreadyExists, in.Name, owner)
	}

	start := time.Now()
	done := u.begin(ctx, "create", in.Name, map[string]string{
		"provider": string(p),
		"workers":  strconv.Itoa(in.Workers),
	})

	ports, err := u.Ledger.Assign(ctx, in.Name)
	if err != nil {
		done(model.ActivityFailed, err.Error())
		return nil, fmt.Errorf("allocate ports: %w", err)
	}
	out.Ports = ports

	var opts []model.ClusterCreateOption
	if in.Image != "" {
		opts = append(opts, model.WithClusterCreateImage(in.Image))
	}
	if in.K8sVersion != "" {
		opts = append(opts, model.WithClusterCreateK8sVersion(in.K8sVersion))
	}
	res := u.ClusterPort.Create(ctx, p, model.ClusterCreateSpec{Name: in.Name, ControlPlanes: cps, Workers: in.Workers, Ports: ports}, opts...)
	out.Steps = append(out.Steps, "create cluster: "+stepStatus(res))
	u.observe("create", p, res.Success, start)
	if !res.Success {
		if _, rerr := u.Ledger.Release(ctx, in.Name); rerr != nil {
			logging.FromContext(ctx).Warn(ctx, "ports not released after failed create", "error", rerr)
		}
		out.Status, out.Ports = StatusFailed, nil
		out.Error = res.Message
		done(model.ActivityFailed, res.Message)
		u.notify(ctx, model.NotificationError, "Cluster creation failed", res.Message, in.Name)
		u.invalidate(ctx)
		return out, nil
	}
	u.init()
	u.states.set(in.Name, model.ScaleStateReady)
	out.Status, out.Success = StatusSuccess, true
	out.Message = res.Message
	out.URLs = urls(ports)

	if in.InstallMonitoring && u.Installer != nil {
		u.installMonitoring(ctx, ref, ports, out)
	}

	status := model.ActivitySuccess
	if out.MonitoringError != "" || out.PortForwardError != "" {
		status = model.ActivityWarning
	}
	done(status, out.Message)
	u.notify(ctx, model.NotificationSuccess, "Cluster created", fmt.Sprintf("cluster %s (%s) created with %d nodes", in.Name, p, out.NodeCount), in.Name)
	u.invalidate(ctx)
	return out, nil
}

// owner returns the provider that currently lists name, or "".
func (u *UseCase) owner(ctx context.Context, name string) (model.Provider, error) {
	for _, p := range model.Providers {
		if !u.ClusterPort.Installed(ctx, p) {
			continue
		}
		ok, err := u.ClusterPort.Exists(ctx, model.ClusterRef{Name: name, Provider: p})
		if err != nil {
			return "", fmt.Errorf("check %s clusters: %w", p, err)
		}
		if ok {
			return p, nil
		}
	}
	return "", nil
}

// installMonitoring waits for the control plane, installs the bundle and
// starts its port forwards. Failures are recorded in out.
func (u *UseCase) installMonitoring(ctx context.Context, ref model.ClusterRef, ports model.PortAssignment, out *CreateOutput) {
	log := logging.FromContext(ctx)
	if err := u.warmUp(ctx); err != nil {
		out.MonitoringError = "monitoring skipped: " + err.Error()
		out.Steps = append(out.Steps, "install monitoring: "+out.MonitoringError)
		return
	}
	var errs []error
	for _, in := range workload.MonitoringBundle(ref, ports) {
		if _, err := u.Installer.Install(ctx, in); err != nil {
			errs = append(errs, err)
			out.Steps = append(out.Steps, "install "+in.App+": failed")
			continue
		}
		out.Steps = append(out.Steps, "install "+in.App+": ok")
	}
	if err := errors.Join(errs...); err != nil {
		log.Warn(ctx, "monitoring install failed", "error", err)
		out.MonitoringError = err.Error()
		return
	}
	out.Credentials = &Credentials{User: workload.GrafanaAdminUser, Password: workload.GrafanaAdminPassword}

	if u.Forwarder == nil {
		return
	}
	if err := u.Forwarder.Start(ctx, ref, workload.MonitoringForwards(ports)); err != nil {
		log.Warn(ctx, "port forward failed", "error", err)
		out.PortForwardError = err.Error()
		out.Steps = append(out.Steps, "port forward: failed")
		return
	}
	out.Steps = append(out.Steps, "port forward: ok")
}

func (u *UseCase) warmUp(ctx context.Context) error {
	d := u.WarmUp
	if d == 0 {
		d = DefaultWarmUp
	}
	if d < 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func stepStatus(r *model.OpResult) string {
	if r.Success {
		return "ok"
	}
	return "failed: " + r.Message
}
