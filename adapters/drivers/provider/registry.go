package providerdrv

import (
	"context"
	"sort"

	"github.com/clustermaster/clustermaster/domain/model"
	"github.com/clustermaster/clustermaster/internal/execx"
)

// Driver abstracts one local Kubernetes tool. Implementations live under
// adapters/drivers/provider/<name> and register themselves in init().
// Operations that run external commands report failures in their results.
type Driver interface {
	// ID returns the provider identifier (e.g., "kind").
	ID() model.Provider

	// IsInstalled reports whether the tool binary is present and answers a version check.
	IsInstalled(ctx context.Context) bool

	// ListClusters returns the names of the clusters the tool knows about.
	ListClusters(ctx context.Context) ([]string, error)

	// Exists reports whether the tool lists name. A missing tool means false.
	Exists(ctx context.Context, name string) (bool, error)

	// Create creates a cluster with the given topology and host port mappings.
	Create(ctx context.Context, spec model.ClusterCreateSpec, opts model.ClusterCreateOptions) *model.OpResult

	// Delete deletes a cluster.
	Delete(ctx context.Context, name string) *model.OpResult

	// Scale changes the worker count. ports are the host mappings to keep when
	// the tool has to recreate the cluster.
	Scale(ctx context.Context, name string, workers int, ports model.PortAssignment) *model.ScaleReport

	// ListNodes returns the nodes of a cluster.
	ListNodes(ctx context.Context, name string) ([]model.Node, error)

	// Start and Stop resume or pause the node containers of a cluster.
	Start(ctx context.Context, name string) *model.OpResult
	Stop(ctx context.Context, name string) *model.OpResult
}

// driverFactory is a constructor function for a provider driver.
type driverFactory func(runner execx.Runner, settings map[string]string) (Driver, error)

// registry holds registered drivers by name.
var registry = map[model.Provider]driverFactory{}

// Register makes a driver available by the given name. Drivers should call
// this from their init() function.
func Register(name model.Provider, factory driverFactory) {
	registry[name] = factory
}

// GetDriverFactory returns the driver factory function for the given name.
func GetDriverFactory(name model.Provider) (driverFactory, bool) {
	factory, exists := registry[name]
	return factory, exists
}

// Registered returns the names of registered drivers, sorted.
func Registered() []model.Provider {
	out := make([]model.Provider, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ListedBy implements Driver.Exists on top of IsInstalled and ListClusters.
func ListedBy(ctx context.Context, d Driver, name string) (bool, error) {
	if !d.IsInstalled(ctx) {
		return false, nil
	}
	names, err := d.ListClusters(ctx)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}
