package kube

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/clustermaster/clustermaster/domain/model"
)

// fakeOpener hands out forwards whose end the test controls.
type fakeOpener struct {
	mu      sync.Mutex
	opened  map[int]int
	done    map[int]chan error
	stopped map[int]int
	fail    map[int]error
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{opened: map[int]int{}, done: map[int]chan error{}, stopped: map[int]int{}, fail: map[int]error{}}
}

func (o *fakeOpener) open(_ context.Context, _ string, spec model.ForwardSpec) (*PortForwardResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.fail[spec.LocalPort]; err != nil {
		return nil, err
	}
	o.opened[spec.LocalPort]++
	done := make(chan error, 1)
	o.done[spec.LocalPort] = done
	port := spec.LocalPort
	return &PortForwardResult{LocalPort: port, Done: done, StopFunc: func() {
		o.mu.Lock()
		o.stopped[port]++
		o.mu.Unlock()
	}}, nil
}

func (o *fakeOpener) count(m map[int]int, port int) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return m[port]
}

func (o *fakeOpener) drop(port int) {
	o.mu.Lock()
	ch := o.done[port]
	o.mu.Unlock()
	ch <- errors.New("lost connection to pod")
}

var monitoringSpecs = []model.ForwardSpec{
	{Role: model.PortRolePrometheus, Namespace: "monitoring", Service: "prometheus-server", LocalPort: 9090, RemotePort: 80},
	{Role: model.PortRoleGrafana, Namespace: "monitoring", Service: "grafana", LocalPort: 3000, RemotePort: 80},
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestForwarder_StartStop(t *testing.T) {
	o := newFakeOpener()
	fw := &Forwarder{Open: o.open, RestartDelay: time.Millisecond}
	ref := model.ClusterRef{Name: "demo", Provider: model.ProviderKind}

	if err := fw.Start(context.Background(), ref, monitoringSpecs); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	st := fw.List()
	if len(st) != 2 || st[0].LocalPort != 3000 || !st[0].Running || st[0].Context != "kind-demo" {
		t.Fatalf("List() = %+v", st)
	}
	if n := fw.Stop("demo"); n != 2 {
		t.Errorf("Stop() = %d, want 2", n)
	}
	waitFor(t, func() bool { return o.count(o.stopped, 9090) == 1 && o.count(o.stopped, 3000) == 1 })
	if n := fw.Stop("demo"); n != 0 {
		t.Errorf("second Stop() = %d", n)
	}
	if len(fw.List()) != 0 {
		t.Error("forwards listed after Stop")
	}
}

func TestForwarder_ReopensDroppedForward(t *testing.T) {
	o := newFakeOpener()
	fw := &Forwarder{Open: o.open, RestartDelay: time.Millisecond}
	ref := model.ClusterRef{Name: "demo", Provider: model.ProviderK3d}
	if err := fw.Start(context.Background(), ref, monitoringSpecs[:1]); err != nil {
		t.Fatal(err)
	}
	o.drop(9090)
	waitFor(t, func() bool { return o.count(o.opened, 9090) == 2 })
	waitFor(t, func() bool { st := fw.List(); return len(st) == 1 && st[0].Running })
	if fw.StopAll() != 1 {
		t.Error("StopAll() did not stop the forward")
	}
}

func TestForwarder_PartialFailure(t *testing.T) {
	o := newFakeOpener()
	o.fail[3000] = errors.New(`service "grafana" not found`)
	fw := &Forwarder{Open: o.open}
	ref := model.ClusterRef{Name: "demo", Provider: model.ProviderKind}

	err := fw.Start(context.Background(), ref, monitoringSpecs)
	if err == nil {
		t.Fatal("Start() succeeded")
	}
	if st := fw.List(); len(st) != 1 || st[0].LocalPort != 9090 {
		t.Errorf("List() = %+v", st)
	}
	fw.StopAll()
}

func TestForwarder_RestartReplacesForwards(t *testing.T) {
	o := newFakeOpener()
	fw := &Forwarder{Open: o.open}
	ref := model.ClusterRef{Name: "demo", Provider: model.ProviderKind}
	_ = fw.Start(context.Background(), ref, monitoringSpecs)
	_ = fw.Start(context.Background(), ref, monitoringSpecs)
	if st := fw.List(); len(st) != 2 {
		t.Errorf("List() = %d forwards, want 2", len(st))
	}
	waitFor(t, func() bool { return o.count(o.stopped, 9090) == 1 })
	fw.StopAll()
}
