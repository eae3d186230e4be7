package kube

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/clustermaster/clustermaster/domain/model"
	"github.com/clustermaster/clustermaster/internal/logging"
)

// DefaultRestartDelay is the pause before a dropped forward is reopened.
const DefaultRestartDelay = 2 * time.Second

// OpenFunc opens one forward for spec in kubeContext.
type OpenFunc func(ctx context.Context, kubeContext string, spec model.ForwardSpec) (*PortForwardResult, error)

// Forwarder implements model.ForwardPort. Each forward runs under a
// supervisor goroutine that reopens it when the connection drops until
// Stop is called. The registry is process local.
type Forwarder struct {
	// Open defaults to a service port-forward through Clients.
	Open OpenFunc
	// Clients is used by the default Open.
	Clients *Clients
	// RestartDelay overrides DefaultRestartDelay.
	RestartDelay time.Duration
	// Logger receives supervisor events. Defaults to discarding them.
	Logger logging.Logger

	mu       sync.Mutex
	forwards map[string][]*forward
	wg       sync.WaitGroup
}

var _ model.ForwardPort = (*Forwarder)(nil)

type forward struct {
	spec    model.ForwardSpec
	cluster string
	context string
	stop    chan struct{}

	mu      sync.Mutex
	running bool
	err     error
}

func (f *forward) set(running bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running, f.err = running, err
}

// NewForwarder returns a Forwarder opening service forwards through clients.
func NewForwarder(clients *Clients, log logging.Logger) *Forwarder {
	return &Forwarder{Clients: clients, Logger: log}
}

func (fw *Forwarder) open(ctx context.Context, kubeContext string, spec model.ForwardSpec) (*PortForwardResult, error) {
	if fw.Open != nil {
		return fw.Open(ctx, kubeContext, spec)
	}
	if fw.Clients == nil {
		return nil, fmt.Errorf("kube clients are not configured")
	}
	c, err := fw.Clients.For(kubeContext)
	if err != nil {
		return nil, err
	}
	pod, port, err := c.ServiceTarget(ctx, spec.Namespace, spec.Service, spec.RemotePort)
	if err != nil {
		return nil, err
	}
	return c.PortForward(ctx, &PortForwardOptions{
		Namespace:  spec.Namespace,
		PodName:    pod.Name,
		LocalPort:  spec.LocalPort,
		RemotePort: port,
	})
}

func (fw *Forwarder) logger() logging.Logger {
	if fw.Logger == nil {
		return logging.Discard()
	}
	return fw.Logger
}

// Start opens every spec for ref and supervises the forwards that came up.
// Forwards already registered for the cluster are stopped first. Specs
// that fail to open are reported in the joined error.
func (fw *Forwarder) Start(ctx context.Context, ref model.ClusterRef, specs []model.ForwardSpec) error {
	fw.Stop(ref.Name)

	var errs []error
	var started []*forward
	for _, spec := range specs {
		res, err := fw.open(ctx, ref.Context(), spec)
		if err != nil {
			errs = append(errs, fmt.Errorf("forward %s/%s %d->%d: %w", spec.Namespace, spec.Service, spec.LocalPort, spec.RemotePort, err))
			continue
		}
		f := &forward{spec: spec, cluster: ref.Name, context: ref.Context(), stop: make(chan struct{}), running: true}
		started = append(started, f)
		fw.wg.Add(1)
		go fw.supervise(f, res)
	}

	fw.mu.Lock()
	if fw.forwards == nil {
		fw.forwards = map[string][]*forward{}
	}
	if len(started) > 0 {
		fw.forwards[ref.Name] = started
	}
	fw.mu.Unlock()
	return errors.Join(errs...)
}

func (fw *Forwarder) supervise(f *forward, res *PortForwardResult) {
	defer fw.wg.Done()
	ctx := context.Background()
	log := fw.logger().With("cluster", f.cluster, "service", f.spec.Service, "local_port", f.spec.LocalPort)
	delay := fw.RestartDelay
	if delay <= 0 {
		delay = DefaultRestartDelay
	}
	for {
		if res != nil {
			select {
			case <-f.stop:
				res.StopFunc()
				return
			case err := <-res.Done:
				if err == nil {
					err = errors.New("port forward closed")
				}
				log.Warn(ctx, "port forward dropped", "error", err)
				f.set(false, err)
			}
		}
		t := time.NewTimer(delay)
		select {
		case <-f.stop:
			t.Stop()
			return
		case <-t.C:
		}
		r, err := fw.open(ctx, f.context, f.spec)
		if err != nil {
			log.Warn(ctx, "port forward reopen failed", "error", err)
			f.set(false, err)
			res = nil
			continue
		}
		log.Info(ctx, "port forward reopened")
		f.set(true, nil)
		res = r
	}
}

// Stop terminates the forwards of cluster and returns how many were stopped.
func (fw *Forwarder) Stop(cluster string) int {
	fw.mu.Lock()
	fs := fw.forwards[cluster]
	delete(fw.forwards, cluster)
	fw.mu.Unlock()
	for _, f := range fs {
		close(f.stop)
	}
	return len(fs)
}

// StopAll terminates every forward and waits for the supervisors to exit.
func (fw *Forwarder) StopAll() int {
	fw.mu.Lock()
	var names []string
	for name := range fw.forwards {
		names = append(names, name)
	}
	fw.mu.Unlock()
	n := 0
	for _, name := range names {
		n += fw.Stop(name)
	}
	fw.wg.Wait()
	return n
}

// List reports every registered forward sorted by cluster and local port.
func (fw *Forwarder) List() []model.ForwardStatus {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	var out []model.ForwardStatus
	for _, fs := range fw.forwards {
		for _, f := range fs {
			f.mu.Lock()
			st := model.ForwardStatus{ForwardSpec: f.spec, Cluster: f.cluster, Context: f.context, Running: f.running}
			if f.err != nil {
				st.Error = f.err.Error()
			}
			f.mu.Unlock()
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Cluster != out[j].Cluster {
			return out[i].Cluster < out[j].Cluster
		}
		return out[i].LocalPort < out[j].LocalPort
	})
	return out
}
