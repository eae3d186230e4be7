package providerdrv

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/clustermaster/clustermaster/domain/model"
	"github.com/clustermaster/clustermaster/internal/execx"
	"github.com/clustermaster/clustermaster/internal/logging"
)

// PortOptions configures the ClusterPort returned by GetClusterPort.
type PortOptions struct {
	// FallbackToKind resolves names unknown to every provider as kind
	// instead of failing with model.ErrProviderAmbiguous.
	FallbackToKind bool
	// Settings are passed to every driver factory.
	Settings map[string]string
}

// clusterPortAdapter implements model.ClusterPort backed by provider drivers.
type clusterPortAdapter struct {
	drivers  map[model.Provider]Driver
	order    []model.Provider
	fallback bool
}

// GetClusterPort returns a model.ClusterPort over every registered driver.
// Identity is resolved in model.Providers order (k3d before kind).
func GetClusterPort(runner execx.Runner, opts PortOptions) (model.ClusterPort, error) {
	a := &clusterPortAdapter{drivers: map[model.Provider]Driver{}, fallback: opts.FallbackToKind}
	for _, p := range model.Providers {
		factory, ok := GetDriverFactory(p)
		if !ok {
			continue
		}
		d, err := factory(runner, opts.Settings)
		if err != nil {
			return nil, fmt.Errorf("failed to create driver %s: %w", p, err)
		}
		a.drivers[p] = d
		a.order = append(a.order, p)
	}
	if len(a.order) == 0 {
		return nil, errors.New("no provider drivers registered")
	}
	return a, nil
}

func (a *clusterPortAdapter) driver(p model.Provider) (Driver, error) {
	d, ok := a.drivers[p]
	if !ok {
		return nil, fmt.Errorf("%w: unknown provider driver %q", model.ErrProviderInvalid, p)
	}
	return d, nil
}

// Resolve queries each provider live on every call; identity is never cached.
func (a *clusterPortAdapter) Resolve(ctx context.Context, name string) (model.ClusterRef, error) {
	if err := model.ValidateClusterName(name); err != nil {
		return model.ClusterRef{}, err
	}
	var errs []error
	for _, p := range a.order {
		found, err := a.drivers[p].Exists(ctx, name)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
			continue
		}
		if found {
			return model.ClusterRef{Name: name, Provider: p}, nil
		}
	}
	if len(errs) > 0 {
		return model.ClusterRef{}, errors.Join(errs...)
	}
	if a.fallback {
		logging.FromContext(ctx).Warn(ctx, "cluster not found in any provider, assuming kind", "cluster", name)
		return model.ClusterRef{Name: name, Provider: model.ProviderKind}, nil
	}
	return model.ClusterRef{}, fmt.Errorf("%w: %s", model.ErrProviderAmbiguous, name)
}

func (a *clusterPortAdapter) List(ctx context.Context) ([]model.ClusterRef, error) {
	var out []model.ClusterRef
	var errs []error
	for _, p := range a.order {
		d := a.drivers[p]
		if !d.IsInstalled(ctx) {
			continue
		}
		names, err := d.ListClusters(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
			continue
		}
		for _, n := range names {
			out = append(out, model.ClusterRef{Name: n, Provider: p})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Provider < out[j].Provider
	})
	return out, errors.Join(errs...)
}

func (a *clusterPortAdapter) Installed(ctx context.Context, p model.Provider) bool {
	d, err := a.driver(p)
	if err != nil {
		return false
	}
	return d.IsInstalled(ctx)
}

func (a *clusterPortAdapter) Exists(ctx context.Context, ref model.ClusterRef) (bool, error) {
	d, err := a.driver(ref.Provider)
	if err != nil {
		return false, err
	}
	return d.Exists(ctx, ref.Name)
}

func (a *clusterPortAdapter) Create(ctx context.Context, p model.Provider, spec model.ClusterCreateSpec, opts ...model.ClusterCreateOption) *model.OpResult {
	d, err := a.driver(p)
	if err != nil {
		return Failed(err)
	}
	if !d.IsInstalled(ctx) {
		return Failed(fmt.Errorf("%w: %s", model.ErrToolUnavailable, p))
	}
	var o model.ClusterCreateOptions
	for _, opt := range opts {
		opt(&o)
	}
	return d.Create(ctx, spec, o)
}

func (a *clusterPortAdapter) Delete(ctx context.Context, ref model.ClusterRef) *model.OpResult {
	d, err := a.driver(ref.Provider)
	if err != nil {
		return Failed(err)
	}
	return d.Delete(ctx, ref.Name)
}

func (a *clusterPortAdapter) Scale(ctx context.Context, ref model.ClusterRef, workers int, ports model.PortAssignment) *model.ScaleReport {
	d, err := a.driver(ref.Provider)
	if err != nil {
		return &model.ScaleReport{OpResult: *Failed(err)}
	}
	return d.Scale(ctx, ref.Name, workers, ports)
}

func (a *clusterPortAdapter) Nodes(ctx context.Context, ref model.ClusterRef) ([]model.Node, error) {
	d, err := a.driver(ref.Provider)
	if err != nil {
		return nil, err
	}
	return d.ListNodes(ctx, ref.Name)
}

func (a *clusterPortAdapter) Start(ctx context.Context, ref model.ClusterRef) *model.OpResult {
	d, err := a.driver(ref.Provider)
	if err != nil {
		return Failed(err)
	}
	return d.Start(ctx, ref.Name)
}

func (a *clusterPortAdapter) Stop(ctx context.Context, ref model.ClusterRef) *model.OpResult {
	d, err := a.driver(ref.Provider)
	if err != nil {
		return Failed(err)
	}
	return d.Stop(ctx, ref.Name)
}
