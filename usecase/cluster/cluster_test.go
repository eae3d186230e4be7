package cluster

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/clustermaster/clustermaster/adapters/ledger"
	"github.com/clustermaster/clustermaster/adapters/store/inmem"
	"github.com/clustermaster/clustermaster/domain/model"
	"github.com/clustermaster/clustermaster/internal/cache"
	"github.com/clustermaster/clustermaster/usecase/activity"
	"github.com/clustermaster/clustermaster/usecase/workload"
)

// mockClusterPort keeps clusters in a map; function fields override single calls.
type mockClusterPort struct {
	mu       sync.Mutex
	clusters map[string]model.Provider
	workers  map[string]int
	creates  []model.ClusterCreateSpec

	createFunc func(ctx context.Context, p model.Provider, spec model.ClusterCreateSpec) *model.OpResult
	deleteFunc func(ctx context.Context, ref model.ClusterRef) *model.OpResult
	scaleFunc  func(ctx context.Context, ref model.ClusterRef, workers int, ports model.PortAssignment) *model.ScaleReport
	nodesFunc  func(ctx context.Context, ref model.ClusterRef) ([]model.Node, error)
	listErr    error
}

func newMockClusterPort() *mockClusterPort {
	return &mockClusterPort{clusters: map[string]model.Provider{}, workers: map[string]int{}}
}

func (m *mockClusterPort) Resolve(_ context.Context, name string) (model.ClusterRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.clusters[name]
	if !ok {
		return model.ClusterRef{}, model.ErrProviderAmbiguous
	}
	return model.ClusterRef{Name: name, Provider: p}, nil
}

func (m *mockClusterPort) List(context.Context) ([]model.ClusterRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []model.ClusterRef
	for n, p := range m.clusters {
		out = append(out, model.ClusterRef{Name: n, Provider: p})
	}
	return out, nil
}

func (m *mockClusterPort) Installed(context.Context, model.Provider) bool { return true }

func (m *mockClusterPort) Exists(_ context.Context, ref model.ClusterRef) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.clusters[ref.Name]
	return ok && p == ref.Provider, nil
}

func (m *mockClusterPort) Create(ctx context.Context, p model.Provider, spec model.ClusterCreateSpec, _ ...model.ClusterCreateOption) *model.OpResult {
	m.mu.Lock()
	m.creates = append(m.creates, spec)
	m.mu.Unlock()
	if m.createFunc != nil {
		if r := m.createFunc(ctx, p, spec); !r.Success {
			return r
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clusters[spec.Name] = p
	m.workers[spec.Name] = spec.Workers
	return &model.OpResult{Success: true, Message: "created"}
}

func (m *mockClusterPort) Delete(ctx context.Context, ref model.ClusterRef) *model.OpResult {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, ref)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.clusters, ref.Name)
	return &model.OpResult{Success: true, Message: "deleted"}
}

func (m *mockClusterPort) Scale(ctx context.Context, ref model.ClusterRef, workers int, ports model.PortAssignment) *model.ScaleReport {
	if m.scaleFunc != nil {
		return m.scaleFunc(ctx, ref, workers, ports)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.workers[ref.Name]
	m.workers[ref.Name] = workers
	return &model.ScaleReport{OpResult: model.OpResult{Success: true}, Previous: prev, Current: workers}
}

func (m *mockClusterPort) Nodes(ctx context.Context, ref model.ClusterRef) ([]model.Node, error) {
	if m.nodesFunc != nil {
		return m.nodesFunc(ctx, ref)
	}
	return []model.Node{{Name: ref.Name + "-control-plane", Role: model.NodeRoleControlPlane}}, nil
}

func (m *mockClusterPort) Start(context.Context, model.ClusterRef) *model.OpResult {
	return &model.OpResult{Success: true}
}

func (m *mockClusterPort) Stop(context.Context, model.ClusterRef) *model.OpResult {
	return &model.OpResult{Success: true}
}

type mockInstaller struct {
	installFunc func(ctx context.Context, in *workload.InstallInput) (*workload.InstallOutput, error)
	calls       []*workload.InstallInput
}

func (m *mockInstaller) Install(ctx context.Context, in *workload.InstallInput) (*workload.InstallOutput, error) {
	m.calls = append(m.calls, in)
	if m.installFunc != nil {
		return m.installFunc(ctx, in)
	}
	return &workload.InstallOutput{ReleaseName: workload.QualifiedName(in.App, in.Cluster)}, nil
}

type mockForwarder struct {
	startFunc func(ctx context.Context, ref model.ClusterRef, specs []model.ForwardSpec) error
	started   map[string]int
}

func (m *mockForwarder) Start(ctx context.Context, ref model.ClusterRef, specs []model.ForwardSpec) error {
	if m.startFunc != nil {
		if err := m.startFunc(ctx, ref, specs); err != nil {
			return err
		}
	}
	if m.started == nil {
		m.started = map[string]int{}
	}
	m.started[ref.Name] += len(specs)
	return nil
}

func (m *mockForwarder) Stop(cluster string) int {
	n := m.started[cluster]
	delete(m.started, cluster)
	return n
}

func (m *mockForwarder) List() []model.ForwardStatus { return nil }

func newTestUseCase(t *testing.T) (*UseCase, *mockClusterPort, *ledger.Ledger) {
	t.Helper()
	l, err := ledger.Open(filepath.Join(t.TempDir(), "cluster_ports.json"),
		ledger.WithProber(func(context.Context, int) bool { return true }))
	if err != nil {
		t.Fatalf("ledger.Open() error: %v", err)
	}
	cp := newMockClusterPort()
	s := inmem.NewStore()
	return &UseCase{
		ClusterPort: cp,
		Ledger:      l,
		Cache:       cache.New(cache.NewMemoryStore()),
		Activity:    &activity.UseCase{Repos: &activity.Repos{Activity: s.ActivityRepo, Notification: s.NotificationRepo}},
		WarmUp:      -1,
	}, cp, l
}

func TestCreate_ThenCreateReportsExists(t *testing.T) {
	ctx := context.Background()
	u, cp, l := newTestUseCase(t)

	out, err := u.Create(ctx, &CreateInput{Name: "demo", Provider: "kind", Workers: 3})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if out.Status != StatusSuccess || !out.Success {
		t.Fatalf("Create() = %+v", out)
	}
	if out.NodeCount != 4 || out.Context != "kind-demo" {
		t.Errorf("node_count = %d, context = %s", out.NodeCount, out.Context)
	}
	if spec := cp.creates[0]; spec.ControlPlanes != 1 || spec.Workers != 3 || len(spec.Ports) != 2 {
		t.Errorf("create spec = %+v", spec)
	}
	if out.URLs["prometheus"] != "http://localhost:30090" || out.URLs["grafana"] != "http://localhost:30030" {
		t.Errorf("urls = %v", out.URLs)
	}
	before, _ := l.List(ctx)

	again, err := u.Create(ctx, &CreateInput{Name: "demo", Provider: "kind", Workers: 1})
	if err != nil {
		t.Fatalf("second Create() error: %v", err)
	}
	if again.Status != StatusExists || !again.Success {
		t.Errorf("second Create() = %+v", again)
	}
	if len(cp.creates) != 1 {
		t.Errorf("provider create called %d times", len(cp.creates))
	}
	after, _ := l.List(ctx)
	if len(after) != len(before) || after["demo"][model.PortRolePrometheus] != before["demo"][model.PortRolePrometheus] {
		t.Errorf("ledger changed: %v -> %v", before, after)
	}
}

// unreadableLedger fails every Get.
type unreadableLedger struct{ model.PortLedger }

func (unreadableLedger) Get(context.Context, string) (model.PortAssignment, bool, error) {
	return nil, false, errors.New("ledger file corrupt")
}

func TestCreate_ExistsWithUnreadablePorts(t *testing.T) {
	ctx := context.Background()
	u, _, l := newTestUseCase(t)
	if _, err := u.Create(ctx, &CreateInput{Name: "demo", Provider: "kind"}); err != nil {
		t.Fatal(err)
	}
	u.Ledger = unreadableLedger{PortLedger: l}

	out, err := u.Create(ctx, &CreateInput{Name: "demo", Provider: "kind"})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if out.Status != StatusExists || !out.Success || out.Ports != nil {
		t.Errorf("Create() = %+v", out)
	}
}

func TestCreate_OwnedByOtherProvider(t *testing.T) {
	u, cp, _ := newTestUseCase(t)
	cp.clusters["demo"] = model.ProviderK3d
	_, err := u.Create(context.Background(), &CreateInput{Name: "demo", Provider: "kind"})
	if !errors.Is(err, model.ErrAlreadyExists) {
		t.Errorf("Create() error = %v", err)
	}
}

func TestCreate_InvalidInput(t *testing.T) {
	u, _, _ := newTestUseCase(t)
	tests := []struct {
		name string
		in   *CreateInput
		want error
	}{
		{name: "provider", in: &CreateInput{Name: "demo", Provider: "minikube"}, want: model.ErrProviderInvalid},
		{name: "name", in: &CreateInput{Name: "Demo_1", Provider: "kind"}, want: model.ErrClusterInvalid},
		{name: "workers", in: &CreateInput{Name: "demo", Provider: "kind", Workers: -1}, want: model.ErrClusterInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := u.Create(context.Background(), tt.in); !errors.Is(err, tt.want) {
				t.Errorf("Create() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCreate_ProviderFailureReleasesPorts(t *testing.T) {
	ctx := context.Background()
	u, cp, l := newTestUseCase(t)
	cp.createFunc = func(context.Context, model.Provider, model.ClusterCreateSpec) *model.OpResult {
		return &model.OpResult{Message: "kind create cluster: exit code 1"}
	}
	out, err := u.Create(ctx, &CreateInput{Name: "demo", Provider: "kind"})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if out.Status != StatusFailed || out.Success || out.Error == "" {
		t.Errorf("Create() = %+v", out)
	}
	if _, ok, _ := l.Get(ctx, "demo"); ok {
		t.Error("ports still assigned after failed create")
	}
}

func TestCreate_MonitoringFailureIsPartial(t *testing.T) {
	ctx := context.Background()
	u, _, _ := newTestUseCase(t)
	inst := &mockInstaller{installFunc: func(_ context.Context, in *workload.InstallInput) (*workload.InstallOutput, error) {
		if in.App == "grafana" {
			return nil, errors.New("timed out waiting for the condition")
		}
		return &workload.InstallOutput{}, nil
	}}
	fw := &mockForwarder{}
	u.Installer, u.Forwarder = inst, fw

	out, err := u.Create(ctx, &CreateInput{Name: "demo", Provider: "k3d", Workers: 2, InstallMonitoring: true})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if !out.Success || out.Status != StatusSuccess || out.MonitoringError == "" {
		t.Errorf("Create() = %+v", out)
	}
	if len(inst.calls) != 2 {
		t.Errorf("installs = %d", len(inst.calls))
	}
	if fw.started["demo"] != 0 {
		t.Error("port forwards started after failed monitoring install")
	}
	acts, _ := u.Activity.List(ctx, &activity.ListInput{ClusterName: "demo"})
	if len(acts.Activities) != 1 || acts.Activities[0].Status != model.ActivityWarning {
		t.Errorf("activities = %+v", acts.Activities)
	}
}

func TestCreate_MonitoringAndForwards(t *testing.T) {
	ctx := context.Background()
	u, _, _ := newTestUseCase(t)
	fw := &mockForwarder{}
	u.Installer, u.Forwarder = &mockInstaller{}, fw

	out, err := u.Create(ctx, &CreateInput{Name: "demo", Provider: "kind", InstallMonitoring: true})
	if err != nil {
		t.Fatal(err)
	}
	if out.Credentials == nil || out.Credentials.User != "admin" || out.Credentials.Password != "admin123" {
		t.Errorf("credentials = %+v", out.Credentials)
	}
	if fw.started["demo"] != 2 {
		t.Errorf("forwards started = %d", fw.started["demo"])
	}

	fw.startFunc = func(context.Context, model.ClusterRef, []model.ForwardSpec) error { return errors.New("port in use") }
	out, _ = u.Create(ctx, &CreateInput{Name: "other", Provider: "kind", InstallMonitoring: true})
	if !out.Success || out.PortForwardError == "" {
		t.Errorf("Create(other) = %+v", out)
	}
}

func TestCreate_WarmUpHonorsContext(t *testing.T) {
	u, _, _ := newTestUseCase(t)
	u.Installer = &mockInstaller{}
	u.WarmUp = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	out, err := u.Create(ctx, &CreateInput{Name: "demo", Provider: "kind", InstallMonitoring: true})
	if err != nil {
		t.Fatal(err)
	}
	if !out.Success || out.MonitoringError == "" {
		t.Errorf("Create() = %+v", out)
	}
}

func TestDelete_Cleanup(t *testing.T) {
	ctx := context.Background()
	u, cp, l := newTestUseCase(t)
	fw := &mockForwarder{}
	u.Installer, u.Forwarder = &mockInstaller{}, fw
	if _, err := u.Create(ctx, &CreateInput{Name: "demo", Provider: "kind", InstallMonitoring: true}); err != nil {
		t.Fatal(err)
	}

	out, err := u.Delete(ctx, &DeleteInput{Name: "demo"})
	if err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if !out.Success || out.ForwardsStopped != 2 || !out.PortsReleased {
		t.Errorf("Delete() = %+v", out)
	}
	if _, ok, _ := l.Get(ctx, "demo"); ok {
		t.Error("ports still assigned")
	}
	if _, ok := cp.clusters["demo"]; ok {
		t.Error("cluster not deleted")
	}
	if _, err := u.Delete(ctx, &DeleteInput{Name: "demo"}); !errors.Is(err, model.ErrProviderAmbiguous) {
		t.Errorf("second Delete() error = %v", err)
	}
}

func TestDelete_ProviderFailureStillCleansUp(t *testing.T) {
	ctx := context.Background()
	u, cp, l := newTestUseCase(t)
	_, _ = u.Create(ctx, &CreateInput{Name: "demo", Provider: "k3d"})
	cp.deleteFunc = func(context.Context, model.ClusterRef) *model.OpResult {
		return &model.OpResult{Message: "k3d cluster delete: exit code 1"}
	}
	out, err := u.Delete(ctx, &DeleteInput{Name: "demo"})
	if err != nil {
		t.Fatal(err)
	}
	if out.Success || out.Error == "" || !out.PortsReleased {
		t.Errorf("Delete() = %+v", out)
	}
	if _, ok, _ := l.Get(ctx, "demo"); ok {
		t.Error("ports still assigned")
	}
}

func TestScale_States(t *testing.T) {
	ctx := context.Background()
	u, cp, l := newTestUseCase(t)
	_, _ = u.Create(ctx, &CreateInput{Name: "demo", Provider: "kind", Workers: 2})
	ports, _, _ := l.Get(ctx, "demo")

	var during model.ScaleState
	var gotPorts model.PortAssignment
	cp.scaleFunc = func(_ context.Context, ref model.ClusterRef, workers int, p model.PortAssignment) *model.ScaleReport {
		during, _ = u.states.get(ref.Name)
		gotPorts = p
		return &model.ScaleReport{
			OpResult:    model.OpResult{Success: true, Steps: []string{"delete cluster: ok", "create cluster: ok"}},
			Previous:    2,
			Current:     workers,
			Destructive: true,
			Warning:     "all data was lost",
		}
	}
	out, err := u.Scale(ctx, &ScaleInput{Name: "demo", Workers: 1})
	if err != nil {
		t.Fatalf("Scale() error: %v", err)
	}
	if during != model.ScaleStateScaling {
		t.Errorf("state during scale = %s", during)
	}
	if !out.Success || out.State != model.ScaleStateReady || out.PreviousAgents != 2 || out.CurrentAgents != 1 || out.Warning == "" {
		t.Errorf("Scale() = %+v", out)
	}
	if gotPorts[model.PortRolePrometheus] != ports[model.PortRolePrometheus] {
		t.Errorf("scale ports = %v, want %v", gotPorts, ports)
	}

	cp.scaleFunc = func(context.Context, model.ClusterRef, int, model.PortAssignment) *model.ScaleReport {
		return &model.ScaleReport{OpResult: model.OpResult{Message: "create failed"}, Previous: 1, Current: 1}
	}
	out, _ = u.Scale(ctx, &ScaleInput{Name: "demo", Workers: 3})
	if out.Success || out.State != model.ScaleStateScaleFailed {
		t.Errorf("failed Scale() = %+v", out)
	}
	st, _ := u.State(ctx, &StateInput{Name: "demo"})
	if st.State != model.ScaleStateScaleFailed {
		t.Errorf("State() = %s", st.State)
	}
	st, _ = u.State(ctx, &StateInput{Name: "missing"})
	if st.State != model.ScaleStateAbsent {
		t.Errorf("State(missing) = %s", st.State)
	}
}

func TestList_CachedAndInvalidated(t *testing.T) {
	ctx := context.Background()
	u, cp, _ := newTestUseCase(t)
	_, _ = u.Create(ctx, &CreateInput{Name: "a", Provider: "kind"})
	_, _ = u.Create(ctx, &CreateInput{Name: "b", Provider: "k3d"})

	var nodeCalls atomic.Int32
	cp.nodesFunc = func(_ context.Context, ref model.ClusterRef) ([]model.Node, error) {
		nodeCalls.Add(1)
		if ref.Name == "b" {
			return nil, errors.New("k3d node list: exit code 1")
		}
		return []model.Node{
			{Name: "a-worker", Role: model.NodeRoleWorker},
			{Name: "a-control-plane", Role: model.NodeRoleControlPlane},
		}, nil
	}

	out, err := u.List(ctx, &ListInput{Detailed: true})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(out.Clusters) != 2 {
		t.Fatalf("clusters = %d", len(out.Clusters))
	}
	for _, c := range out.Clusters {
		switch c.Name {
		case "a":
			if c.NodeCount != 2 || c.Error != "" || len(c.Ports) != 2 {
				t.Errorf("a = %+v", c)
			}
		case "b":
			if c.Error == "" {
				t.Error("b error not recorded")
			}
		}
	}
	_, _ = u.List(ctx, &ListInput{Detailed: true})
	if n := nodeCalls.Load(); n != 2 {
		t.Errorf("node queries = %d, want 2 (cached)", n)
	}

	if _, err := u.Delete(ctx, &DeleteInput{Name: "b"}); err != nil {
		t.Fatal(err)
	}
	out, _ = u.List(ctx, &ListInput{Detailed: true})
	if len(out.Clusters) != 1 || nodeCalls.Load() != 3 {
		t.Errorf("after delete: %d clusters, %d node queries", len(out.Clusters), nodeCalls.Load())
	}
}

func TestURLsAndPorts(t *testing.T) {
	ctx := context.Background()
	u, _, _ := newTestUseCase(t)
	_, _ = u.Create(ctx, &CreateInput{Name: "a", Provider: "kind"})
	_, _ = u.Create(ctx, &CreateInput{Name: "b", Provider: "kind"})

	urls, err := u.URLs(ctx, &URLsInput{Name: "b"})
	if err != nil {
		t.Fatal(err)
	}
	if urls.URLs["prometheus"] != "http://localhost:30100" || urls.Credentials.User != "admin" {
		t.Errorf("URLs(b) = %+v", urls)
	}
	if _, err := u.URLs(ctx, &URLsInput{Name: "c"}); !errors.Is(err, model.ErrClusterNotFound) {
		t.Errorf("URLs(c) error = %v", err)
	}
	all, _ := u.Ports(ctx)
	if len(all) != 2 || all[0].Cluster != "a" {
		t.Errorf("Ports() = %+v", all)
	}
	if ok, _ := u.ReleasePorts(ctx, "a"); !ok {
		t.Error("ReleasePorts(a) = false")
	}
	if ok, _ := u.ReleasePorts(ctx, "a"); ok {
		t.Error("second ReleasePorts(a) = true")
	}
}

func TestPrunePorts(t *testing.T) {
	ctx := context.Background()
	u, cp, l := newTestUseCase(t)
	_, _ = u.Create(ctx, &CreateInput{Name: "a", Provider: "kind"})
	_, _ = u.Create(ctx, &CreateInput{Name: "b", Provider: "k3d"})
	if _, err := l.Assign(ctx, "busy"); err != nil {
		t.Fatal(err)
	}
	cp.mu.Lock()
	delete(cp.clusters, "b")
	cp.mu.Unlock()

	cp.listErr = errors.New("docker down")
	if _, err := u.PrunePorts(ctx); err == nil {
		t.Fatal("PrunePorts() succeeded with a failing listing")
	}
	if all, _ := l.List(ctx); len(all) != 3 {
		t.Fatalf("ledger changed after failed listing: %v", all)
	}
	cp.listErr = nil

	unlock := u.lock("busy")
	out, err := u.PrunePorts(ctx)
	unlock()
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Removed) != 1 || out.Removed[0] != "b" || out.Kept != 2 {
		t.Errorf("PrunePorts() = %+v", out)
	}
	if _, ok, _ := l.Get(ctx, "a"); !ok {
		t.Error("live cluster a pruned")
	}
	if _, ok, _ := l.Get(ctx, "busy"); !ok {
		t.Error("cluster with an operation in flight pruned")
	}

	out, _ = u.PrunePorts(ctx)
	if len(out.Removed) != 1 || out.Removed[0] != "busy" {
		t.Errorf("second PrunePorts() = %+v", out)
	}
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()
	unlockA := k.Lock("a")
	done := make(chan struct{})
	go func() {
		unlockB := k.Lock("b")
		unlockB()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked by a")
	}

	acquired := make(chan struct{})
	released := make(chan struct{})
	go func() {
		unlock := k.Lock("a")
		close(acquired)
		unlock()
		close(released)
	}()
	select {
	case <-acquired:
		t.Fatal("second lock on a acquired while held")
	case <-time.After(20 * time.Millisecond):
	}
	unlockA()
	<-released
	if n := k.size(); n != 0 {
		t.Errorf("size = %d after release", n)
	}
}
