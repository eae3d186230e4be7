package monitoring

import (
	"context"
	"errors"
	"testing"

	"github.com/clustermaster/clustermaster/domain/model"
)

type mockClusterPort struct {
	model.ClusterPort
	resolveFunc func(ctx context.Context, name string) (model.ClusterRef, error)
}

func (m *mockClusterPort) Resolve(ctx context.Context, name string) (model.ClusterRef, error) {
	return m.resolveFunc(ctx, name)
}

type mockMonitoringPort struct {
	podsFunc     func(ctx context.Context, kubeContext, namespace string) ([]model.PodStatus, error)
	servicesFunc func(ctx context.Context, kubeContext, namespace string) ([]model.ServiceStatus, error)
	usageFunc    func(ctx context.Context, kubeContext string) ([]model.NodeUsage, error)

	deleteNamespaceFunc func(ctx context.Context, kubeContext, namespace string) (bool, error)
}

func (m *mockMonitoringPort) Pods(ctx context.Context, kubeContext, namespace string) ([]model.PodStatus, error) {
	if m.podsFunc != nil {
		return m.podsFunc(ctx, kubeContext, namespace)
	}
	return nil, nil
}

func (m *mockMonitoringPort) Services(ctx context.Context, kubeContext, namespace string) ([]model.ServiceStatus, error) {
	if m.servicesFunc != nil {
		return m.servicesFunc(ctx, kubeContext, namespace)
	}
	return nil, nil
}

func (m *mockMonitoringPort) NodeUsage(ctx context.Context, kubeContext string) ([]model.NodeUsage, error) {
	if m.usageFunc != nil {
		return m.usageFunc(ctx, kubeContext)
	}
	return nil, nil
}

func (m *mockMonitoringPort) DeleteNamespace(ctx context.Context, kubeContext, namespace string) (bool, error) {
	if m.deleteNamespaceFunc != nil {
		return m.deleteNamespaceFunc(ctx, kubeContext, namespace)
	}
	return true, nil
}

type mockLedger struct {
	model.PortLedger
	ports map[string]model.PortAssignment
}

func (m *mockLedger) Get(_ context.Context, name string) (model.PortAssignment, bool, error) {
	p, ok := m.ports[name]
	return p, ok, nil
}

func (m *mockLedger) Assign(_ context.Context, name string) (model.PortAssignment, error) {
	if p, ok := m.ports[name]; ok {
		return p, nil
	}
	p := model.PortAssignment{model.PortRolePrometheus: 30100, model.PortRoleGrafana: 30040}
	if m.ports == nil {
		m.ports = map[string]model.PortAssignment{}
	}
	m.ports[name] = p
	return p, nil
}

type mockForwarder struct {
	list      []model.ForwardStatus
	startFunc func(ctx context.Context, ref model.ClusterRef, specs []model.ForwardSpec) error
	started   []model.ForwardSpec
	stopped   []string
}

func (m *mockForwarder) Start(ctx context.Context, ref model.ClusterRef, specs []model.ForwardSpec) error {
	if m.startFunc != nil {
		if err := m.startFunc(ctx, ref, specs); err != nil {
			return err
		}
	}
	m.started = append(m.started, specs...)
	return nil
}

func (m *mockForwarder) Stop(cluster string) int {
	m.stopped = append(m.stopped, cluster)
	n := len(m.started)
	m.started = nil
	return n
}

func (m *mockForwarder) List() []model.ForwardStatus { return m.list }

func TestStatus(t *testing.T) {
	var gotContext, gotNamespace string
	mp := &mockMonitoringPort{
		podsFunc: func(_ context.Context, kc, ns string) ([]model.PodStatus, error) {
			gotContext, gotNamespace = kc, ns
			return []model.PodStatus{{Name: "grafana-1", Phase: "Running"}, {Name: "prometheus-server-1", Phase: "Running"}}, nil
		},
		usageFunc: func(context.Context, string) ([]model.NodeUsage, error) {
			return nil, errors.New("metrics API not available")
		},
	}
	u := &UseCase{
		ClusterPort: &mockClusterPort{resolveFunc: func(_ context.Context, name string) (model.ClusterRef, error) {
			return model.ClusterRef{Name: name, Provider: model.ProviderK3d}, nil
		}},
		MonitoringPort: mp,
		Ledger:         &mockLedger{ports: map[string]model.PortAssignment{"demo": {model.PortRoleGrafana: 30030}}},
		Forwarder: &mockForwarder{list: []model.ForwardStatus{
			{Cluster: "demo", Running: true},
			{Cluster: "other", Running: true},
		}},
	}
	out, err := u.Status(context.Background(), &StatusInput{Cluster: "demo"})
	if err != nil {
		t.Fatalf("Status() error: %v", err)
	}
	if gotContext != "k3d-demo" || gotNamespace != "monitoring" {
		t.Errorf("queried %s/%s", gotContext, gotNamespace)
	}
	if !out.Healthy || len(out.Pods) != 2 {
		t.Errorf("Status() = %+v", out)
	}
	if out.Errors["nodes"] == "" {
		t.Error("node usage error not reported")
	}
	if out.URLs["grafana"] != "http://localhost:30030" || len(out.Forwards) != 1 {
		t.Errorf("urls = %v, forwards = %v", out.URLs, out.Forwards)
	}
}

func TestStatus_Unhealthy(t *testing.T) {
	tests := []struct {
		name string
		pods []model.PodStatus
	}{
		{name: "no pods"},
		{name: "pending pod", pods: []model.PodStatus{{Name: "grafana-1", Phase: "Running"}, {Name: "prometheus-server-1", Phase: "Pending"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &UseCase{
				ClusterPort: &mockClusterPort{resolveFunc: func(_ context.Context, name string) (model.ClusterRef, error) {
					return model.ClusterRef{Name: name, Provider: model.ProviderKind}, nil
				}},
				MonitoringPort: &mockMonitoringPort{podsFunc: func(context.Context, string, string) ([]model.PodStatus, error) {
					return tt.pods, nil
				}},
			}
			out, err := u.Status(context.Background(), &StatusInput{Cluster: "demo"})
			if err != nil {
				t.Fatal(err)
			}
			if out.Healthy {
				t.Error("Healthy = true")
			}
		})
	}
}

func TestStatus_UnknownCluster(t *testing.T) {
	u := &UseCase{ClusterPort: &mockClusterPort{resolveFunc: func(context.Context, string) (model.ClusterRef, error) {
		return model.ClusterRef{}, model.ErrProviderAmbiguous
	}}}
	if _, err := u.Status(context.Background(), &StatusInput{Cluster: "ghost"}); !errors.Is(err, model.ErrProviderAmbiguous) {
		t.Errorf("Status() error = %v", err)
	}
}
