package cluster

import (
	"context"
	"sync"
	"time"

	"github.com/clustermaster/clustermaster/domain/model"
	"github.com/clustermaster/clustermaster/internal/cache"
	"github.com/clustermaster/clustermaster/usecase/activity"
	"github.com/clustermaster/clustermaster/usecase/workload"
)

// DefaultWarmUp is the pause between cluster creation and the monitoring
// install; fresh control planes do not accept installs right away.
const DefaultWarmUp = 30 * time.Second

// Installer installs a chart release. It is implemented by *workload.UseCase.
type Installer interface {
	Install(ctx context.Context, in *workload.InstallInput) (*workload.InstallOutput, error)
}

// Observer receives the outcome of every lifecycle operation.
type Observer interface {
	ObserveOp(op string, provider model.Provider, success bool, elapsed time.Duration)
}

// UseCase drives the cluster lifecycle. Create, Delete, Scale, Start and
// Stop on the same cluster name are serialized; different clusters proceed
// in parallel.
type UseCase struct {
	ClusterPort model.ClusterPort
	Ledger      model.PortLedger
	// Installer installs the monitoring bundle. Optional.
	Installer Installer
	// Forwarder runs the monitoring port forwards. Optional.
	Forwarder model.ForwardPort
	// Cache fronts List and Get. Optional.
	Cache *cache.Cache
	// Activity records activity entries and notifications. Optional.
	Activity *activity.UseCase
	// Metrics observes lifecycle operations. Optional.
	Metrics Observer
	// WarmUp overrides DefaultWarmUp. A negative value disables the pause.
	WarmUp time.Duration

	initOnce sync.Once
	locks    *keyedMutex
	states   *stateTable
}

func (u *UseCase) init() {
	u.initOnce.Do(func() {
		u.locks = newKeyedMutex()
		u.states = newStateTable()
	})
}

// lock serializes lifecycle operations on name.
func (u *UseCase) lock(name string) func() {
	u.init()
	return u.locks.Lock(name)
}

func (u *UseCase) invalidate(ctx context.Context) {
	if u.Cache != nil {
		u.Cache.InvalidateAll(ctx)
	}
}

func (u *UseCase) observe(op string, p model.Provider, success bool, start time.Time) {
	if u.Metrics != nil {
		u.Metrics.ObserveOp(op, p, success, time.Since(start))
	}
}
