package model

import "context"

// ClusterCreateOptions carries optional create parameters.
type ClusterCreateOptions struct {
	// Image pins the node image (kind only), e.g. "kindest/node:v1.30.0".
	Image string
	// K8sVersion is translated into a provider specific image when Image is empty.
	K8sVersion string
}

type ClusterCreateOption func(*ClusterCreateOptions)

func WithClusterCreateImage(image string) ClusterCreateOption {
	return func(o *ClusterCreateOptions) { o.Image = image }
}

func WithClusterCreateK8sVersion(v string) ClusterCreateOption {
	return func(o *ClusterCreateOptions) { o.K8sVersion = v }
}

// ClusterCreateSpec describes the node topology and host port mappings of a new cluster.
type ClusterCreateSpec struct {
	Name          string
	ControlPlanes int
	Workers       int
	Ports         PortAssignment
}

// OpResult is the structured outcome of a provider operation.
// Provider failures are reported here instead of being raised.
type OpResult struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Stdout  string   `json:"stdout,omitempty"`
	Stderr  string   `json:"stderr,omitempty"`
	Steps   []string `json:"steps,omitempty"`
	Err     error    `json:"-"`
}

// ErrMsg returns the error message or an empty string.
func (r *OpResult) ErrMsg() string {
	if r == nil || r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// ScaleReport is the outcome of a scale operation.
type ScaleReport struct {
	OpResult
	Previous    int    `json:"previous"`
	Current     int    `json:"current"`
	Destructive bool   `json:"destructive"`
	Warning     string `json:"warning,omitempty"`
}

// ClusterPort is the domain port over the cluster providers. The
// implementation resolves identity by querying the providers live.
type ClusterPort interface {
	// Resolve determines which provider owns name.
	Resolve(ctx context.Context, name string) (ClusterRef, error)
	// List returns the clusters of every installed provider.
	List(ctx context.Context) ([]ClusterRef, error)
	// Installed reports whether the provider tool is available.
	Installed(ctx context.Context, p Provider) bool
	Exists(ctx context.Context, ref ClusterRef) (bool, error)
	Create(ctx context.Context, p Provider, spec ClusterCreateSpec, opts ...ClusterCreateOption) *OpResult
	Delete(ctx context.Context, ref ClusterRef) *OpResult
	Scale(ctx context.Context, ref ClusterRef, workers int, ports PortAssignment) *ScaleReport
	Nodes(ctx context.Context, ref ClusterRef) ([]Node, error)
	Start(ctx context.Context, ref ClusterRef) *OpResult
	Stop(ctx context.Context, ref ClusterRef) *OpResult
}
