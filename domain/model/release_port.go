package model

import (
	"context"
	"time"
)

// Release is an installed chart instance. Release names follow the
// "{app}-{cluster}" convention.
type Release struct {
	Name       string    `json:"name"`
	Namespace  string    `json:"namespace"`
	Chart      string    `json:"chart"`
	AppVersion string    `json:"app_version,omitempty"`
	Status     string    `json:"status"`
	Revision   int       `json:"revision"`
	Updated    time.Time `json:"updated,omitempty"`
}

// ReleaseName returns the deterministic release name of app on cluster.
func ReleaseName(app, cluster string) string {
	return app + "-" + cluster
}

// ReleaseSpec describes a chart install.
type ReleaseSpec struct {
	Context   string
	Name      string
	Chart     string
	Namespace string
	Values    map[string]any
	Timeout   time.Duration
}

// ChartInfo is one chart search hit.
type ChartInfo struct {
	Repo        string `json:"repo"`
	Chart       string `json:"chart"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	AppVersion  string `json:"app_version"`
	Description string `json:"description"`
}

// ReleasePort is the domain port over the package manager.
type ReleasePort interface {
	EnsureNamespace(ctx context.Context, kubeContext, namespace string) error
	EnsureRepo(ctx context.Context, name, url string) error
	Install(ctx context.Context, spec ReleaseSpec) (*Release, error)
	List(ctx context.Context, kubeContext string) ([]*Release, error)
	Uninstall(ctx context.Context, kubeContext, namespace, name string, timeout time.Duration) error
	Search(ctx context.Context, query string) ([]*ChartInfo, error)
}
