package terraform

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/clustermaster/clustermaster/domain/model"
	"github.com/clustermaster/clustermaster/internal/execx/exectest"
)

func awsVars() map[string]any {
	return map[string]any{
		"cluster_name":       "prod",
		"node_count":         3,
		"aws_region":         "eu-central-1",
		"instance_type":      "m5.large",
		"vpc_cidr":           "10.1.0.0/16",
		"aws_access_key":     "",
		"aws_secret_key":     "",
		"k8s_version":        "v1.29",
		"kubeconfig_path":    "",
		"enable_autoscaling": true,
		"min_nodes":          2,
		"max_nodes":          5,
		"disk":               0,
		"tags":               map[string]string{"team": "infra"},
	}
}

func TestPrepare_BuiltinTemplates(t *testing.T) {
	r := New(exectest.New(), "", "", t.TempDir())
	dir, err := r.Prepare(context.Background(), "run-1", model.DeploymentProviderAWS, awsVars())
	if err != nil {
		t.Fatalf("Prepare() error: %v", err)
	}
	main, err := os.ReadFile(filepath.Join(dir, "main.tf"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`region     = "eu-central-1"`,
		`cluster_name = "prod"`,
		`"team" = "infra"`,
		`instance_types = ["m5.large"]`,
		`cluster_version = "1.29"`,
		`min_size     = 2`,
		`max_size     = 5`,
		`desired_size = 3`,
	} {
		if !strings.Contains(string(main), want) {
			t.Errorf("main.tf missing %q:\n%s", want, main)
		}
	}
	if strings.Contains(string(main), "access_key") {
		t.Error("empty access key rendered")
	}
	if _, err := os.Stat(filepath.Join(dir, "providers.tf")); err != nil {
		t.Errorf("providers.tf not copied: %v", err)
	}
	if got, ok := r.Dir("run-1"); !ok || got != dir {
		t.Errorf("Dir() = %s, %v", got, ok)
	}
	if err := r.Remove("run-1"); err != nil {
		t.Fatal(err)
	}
	if _, ok := r.Dir("run-1"); ok {
		t.Error("Dir() exists after Remove")
	}
}

func TestPrepare_LocalWorkers(t *testing.T) {
	r := New(exectest.New(), "", "", t.TempDir())
	vars := awsVars()
	vars["node_count"] = 2
	dir, err := r.Prepare(context.Background(), "run-2", model.DeploymentProviderLocal, vars)
	if err != nil {
		t.Fatal(err)
	}
	main, _ := os.ReadFile(filepath.Join(dir, "main.tf"))
	if n := strings.Count(string(main), `role = "worker"`); n != 2 {
		t.Errorf("worker nodes = %d, want 2", n)
	}
	if !strings.Contains(string(main), "kindest/node:v1.29") {
		t.Errorf("node image missing:\n%s", main)
	}
}

func TestPrepare_TemplateOverride(t *testing.T) {
	tmpl := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpl, "aws_cluster.tf.tmpl"), []byte(`# {{ .cluster_name | upper }}`), 0o644); err != nil {
		t.Fatal(err)
	}
	r := New(exectest.New(), "", tmpl, t.TempDir())
	dir, err := r.Prepare(context.Background(), "run-3", model.DeploymentProviderAWS, awsVars())
	if err != nil {
		t.Fatal(err)
	}
	main, _ := os.ReadFile(filepath.Join(dir, "main.tf"))
	if string(main) != "# PROD" {
		t.Errorf("main.tf = %q", main)
	}
}

func TestPrepare_Invalid(t *testing.T) {
	r := New(exectest.New(), "", "", t.TempDir())
	tests := []struct {
		name     string
		id       string
		provider model.DeploymentProvider
	}{
		{"unknown provider", "run", "gcp"},
		{"path in id", "../escape", model.DeploymentProviderAWS},
		{"empty id", "", model.DeploymentProviderAWS},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := r.Prepare(context.Background(), tt.id, tt.provider, awsVars()); !errors.Is(err, model.ErrDeploymentInvalid) {
				t.Errorf("Prepare() error = %v", err)
			}
		})
	}
}

func TestRun(t *testing.T) {
	fake := exectest.New().
		OnOutput("tf init", "Terraform has been successfully initialized!").
		OnFail("tf apply", 1, "Error: creating EKS cluster")
	r := New(fake, "tf", "", t.TempDir())
	ctx := context.Background()

	out, err := r.Run(ctx, "/work/run-1", model.InfraInit)
	if err != nil || !strings.Contains(out, "initialized") {
		t.Fatalf("Run(init) = %q, %v", out, err)
	}
	if _, err := r.Run(ctx, "/work/run-1", model.InfraPlan); err != nil {
		t.Fatal(err)
	}
	out, err = r.Run(ctx, "/work/run-1", model.InfraApply)
	if err == nil || !strings.Contains(out, "creating EKS cluster") {
		t.Fatalf("Run(apply) = %q, %v", out, err)
	}
	if _, err := r.Run(ctx, "/work/run-1", "bogus"); err == nil {
		t.Error("Run(bogus) succeeded")
	}

	calls := fake.CallsWith("tf plan")
	if len(calls) != 1 || calls[0].Dir != "/work/run-1" || calls[0].Timeout != StepTimeout {
		t.Fatalf("plan calls = %+v", calls)
	}
	if !strings.Contains(calls[0].String(), "-out=tfplan") {
		t.Errorf("plan args = %v", calls[0].Args)
	}
	if apply := fake.CallsWith("tf apply"); !strings.HasSuffix(apply[0].String(), "-auto-approve tfplan") {
		t.Errorf("apply args = %v", apply[0].Args)
	}
}

func TestRun_MissingBinary(t *testing.T) {
	fake := exectest.New()
	fake.Missing["terraform"] = true
	r := New(fake, "", "", t.TempDir())
	if _, err := r.Run(context.Background(), "/work", model.InfraInit); !errors.Is(err, model.ErrToolUnavailable) {
		t.Errorf("Run() error = %v", err)
	}
}
