package kind

import (
	"context"
	"os"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/clustermaster/clustermaster/domain/model"
	"github.com/clustermaster/clustermaster/internal/execx"
	"github.com/clustermaster/clustermaster/internal/execx/exectest"
)

func TestBuildManifest(t *testing.T) {
	spec := model.ClusterCreateSpec{
		Name:          "demo",
		ControlPlanes: 1,
		Workers:       3,
		Ports:         model.PortAssignment{model.PortRolePrometheus: 30090, model.PortRoleGrafana: 30030},
	}
	data, err := BuildManifest(spec)
	if err != nil {
		t.Fatalf("BuildManifest() error: %v", err)
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		t.Fatalf("manifest is not yaml: %v", err)
	}
	if m.Kind != "Cluster" || m.APIVersion != "kind.x-k8s.io/v1alpha4" {
		t.Errorf("header = %s %s", m.Kind, m.APIVersion)
	}
	if len(m.Nodes) != 4 {
		t.Fatalf("nodes = %d, want 4", len(m.Nodes))
	}
	if m.Nodes[0].Role != "control-plane" {
		t.Errorf("first node role = %s", m.Nodes[0].Role)
	}
	for _, n := range m.Nodes[1:] {
		if n.Role != "worker" || len(n.ExtraPortMappings) != 0 {
			t.Errorf("unexpected worker entry %+v", n)
		}
	}
	pm := m.Nodes[0].ExtraPortMappings
	if len(pm) != 2 || pm[0].HostPort != 30030 || pm[0].ContainerPort != 30030 || pm[1].HostPort != 30090 {
		t.Errorf("port mappings = %+v", pm)
	}
}

func newDriver(f *exectest.Fake) *driver { return &driver{runner: f} }

func TestCreate_TempFileRemoved(t *testing.T) {
	tests := []struct {
		name string
		fail bool
	}{
		{name: "success"},
		{name: "failure", fail: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var config string
			var content []byte
			f := exectest.New()
			f.On("kind create cluster", func(c execx.Cmd) *execx.Result {
				for i, a := range c.Args {
					if a == "--config" {
						config = c.Args[i+1]
					}
				}
				content, _ = os.ReadFile(config)
				if tt.fail {
					return &execx.Result{ExitCode: 1, Stderr: "boom"}
				}
				return &execx.Result{}
			})
			res := newDriver(f).Create(context.Background(), model.ClusterCreateSpec{Name: "demo", ControlPlanes: 1, Workers: 3}, model.ClusterCreateOptions{K8sVersion: "1.30.0"})
			if res.Success == tt.fail {
				t.Errorf("Success = %v", res.Success)
			}
			if tt.fail && !strings.Contains(res.Message, "boom") {
				t.Errorf("Message = %q, want stderr", res.Message)
			}
			if got := strings.Count(string(content), "role: worker"); got != 3 {
				t.Errorf("config had %d workers:\n%s", got, content)
			}
			if _, err := os.Stat(config); !os.IsNotExist(err) {
				t.Errorf("config %s not removed", config)
			}
			if c := f.CallsWith("kind create cluster")[0]; !strings.Contains(c.String(), "--image kindest/node:v1.30.0") || c.Timeout != execx.LongTimeout {
				t.Errorf("create command = %s timeout %v", c, c.Timeout)
			}
		})
	}
}

func TestListClusters(t *testing.T) {
	f := exectest.New().OnOutput("kind get clusters", "No kind clusters found.\n")
	names, err := newDriver(f).ListClusters(context.Background())
	if err != nil || len(names) != 0 {
		t.Fatalf("ListClusters() = %v, %v", names, err)
	}

	f.OnOutput("kind get clusters", "alpha\nbeta\n")
	d := newDriver(f)
	ok, err := d.Exists(context.Background(), "beta")
	if err != nil || !ok {
		t.Errorf("Exists(beta) = %v, %v", ok, err)
	}

	f.Missing["kind"] = true
	if ok, err := d.Exists(context.Background(), "beta"); ok || err != nil {
		t.Errorf("Exists() with missing tool = %v, %v", ok, err)
	}
}

func TestScale_Recreates(t *testing.T) {
	f := exectest.New().OnOutput("kind get nodes", "demo-control-plane\ndemo-worker\ndemo-worker2\n")
	var config []byte
	f.On("kind create cluster", func(c execx.Cmd) *execx.Result {
		config, _ = os.ReadFile(c.Args[len(c.Args)-1])
		return &execx.Result{}
	})
	ports := model.PortAssignment{model.PortRolePrometheus: 30090, model.PortRoleGrafana: 30030}
	rep := newDriver(f).Scale(context.Background(), "demo", 1, ports)
	if !rep.Success {
		t.Fatalf("Scale() failed: %s", rep.Message)
	}
	if rep.Previous != 2 || rep.Current != 1 || !rep.Destructive {
		t.Errorf("report = %+v", rep)
	}
	if !strings.Contains(rep.Warning, "lost") {
		t.Errorf("Warning = %q", rep.Warning)
	}
	calls := f.Calls()
	var order []string
	for _, c := range calls {
		if strings.HasPrefix(c, "kind delete") || strings.HasPrefix(c, "kind create") {
			order = append(order, c[:11])
		}
	}
	if strings.Join(order, ",") != "kind delete,kind create" {
		t.Errorf("calls = %v", calls)
	}
	if !strings.Contains(string(config), "hostPort: 30090") {
		t.Errorf("recreated config lost port mappings:\n%s", config)
	}
}

func TestScale_KeepsNodeImage(t *testing.T) {
	f := exectest.New().
		OnOutput("kind get nodes", "demo-control-plane\ndemo-worker\n").
		OnOutput("docker inspect -f {{.Config.Image}} demo-control-plane", "kindest/node:v1.27.3\n")
	rep := newDriver(f).Scale(context.Background(), "demo", 2, nil)
	if !rep.Success {
		t.Fatalf("Scale() failed: %s", rep.Message)
	}
	creates := f.CallsWith("kind create cluster")
	if len(creates) != 1 {
		t.Fatalf("calls = %v", f.Calls())
	}
	if !strings.HasSuffix(creates[0].String(), "--image kindest/node:v1.27.3") {
		t.Errorf("recreate = %s, want the control-plane image", creates[0].String())
	}

	t.Run("inspect fails", func(t *testing.T) {
		f := exectest.New().
			OnOutput("kind get nodes", "demo-control-plane\n").
			OnFail("docker inspect", 1, "no such object")
		if rep := newDriver(f).Scale(context.Background(), "demo", 1, nil); !rep.Success {
			t.Fatalf("Scale() failed: %s", rep.Message)
		}
		if c := f.CallsWith("kind create cluster"); len(c) != 1 || strings.Contains(c[0].String(), "--image") {
			t.Errorf("calls = %v", f.Calls())
		}
	})
}

func TestScale_DeleteFails(t *testing.T) {
	f := exectest.New().
		OnOutput("kind get nodes", "demo-control-plane\ndemo-worker\n").
		OnFail("kind delete cluster", 1, "docker not running")
	rep := newDriver(f).Scale(context.Background(), "demo", 3, nil)
	if rep.Success {
		t.Fatal("Scale() succeeded")
	}
	if len(f.CallsWith("kind create")) != 0 {
		t.Error("create attempted after failed delete")
	}
	if rep.Current != rep.Previous {
		t.Errorf("Current = %d, want %d", rep.Current, rep.Previous)
	}
}

func TestRoleOf(t *testing.T) {
	tests := map[string]model.NodeRole{
		"demo-control-plane":          model.NodeRoleControlPlane,
		"demo-control-plane2":         model.NodeRoleControlPlane,
		"demo-worker":                 model.NodeRoleWorker,
		"demo-worker3":                model.NodeRoleWorker,
		"demo-external-load-balancer": model.NodeRoleLoadBalancer,
		"other":                       model.NodeRoleUnknown,
	}
	for in, want := range tests {
		if got := roleOf(in); got != want {
			t.Errorf("roleOf(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestStartStop(t *testing.T) {
	f := exectest.New().OnOutput("kind get nodes", "demo-control-plane\ndemo-worker\n")
	d := newDriver(f)
	if res := d.Stop(context.Background(), "demo"); !res.Success {
		t.Fatalf("Stop() = %+v", res)
	}
	if len(f.CallsWith("docker stop demo-control-plane demo-worker")) != 1 {
		t.Errorf("calls = %v", f.Calls())
	}
}
