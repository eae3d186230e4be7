package monitoring

import (
	"context"

	"github.com/clustermaster/clustermaster/domain/model"
	"github.com/clustermaster/clustermaster/internal/cache"
	"github.com/clustermaster/clustermaster/usecase/workload"
)

// Releases installs and removes chart releases. It is implemented by
// *workload.UseCase.
type Releases interface {
	Install(ctx context.Context, in *workload.InstallInput) (*workload.InstallOutput, error)
	Uninstall(ctx context.Context, in *workload.UninstallInput) (*workload.UninstallOutput, error)
}

// UseCase manages the monitoring bundle of a cluster and reports its state.
type UseCase struct {
	ClusterPort    model.ClusterPort
	MonitoringPort model.MonitoringPort
	Ledger         model.PortLedger
	// Releases installs and removes the bundle. Install and Uninstall fail
	// without it.
	Releases Releases
	// Forwarder runs and lists port forwards. Optional.
	Forwarder model.ForwardPort
	// Cache is invalidated after install and uninstall. Optional.
	Cache *cache.Cache
}

func (u *UseCase) invalidate(ctx context.Context) {
	if u.Cache != nil {
		u.Cache.InvalidateAll(ctx)
	}
}
