package deployment

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/clustermaster/clustermaster/adapters/store/inmem"
	"github.com/clustermaster/clustermaster/adapters/terraform"
	"github.com/clustermaster/clustermaster/domain"
	"github.com/clustermaster/clustermaster/domain/model"
	"github.com/clustermaster/clustermaster/internal/execx/exectest"
	"github.com/clustermaster/clustermaster/usecase/activity"
)

// recordingRepo keeps every status written through UpdateStatus.
type recordingRepo struct {
	domain.DeploymentRepository
	mu      sync.Mutex
	history []model.DeploymentStatus
}

func (r *recordingRepo) UpdateStatus(ctx context.Context, id string, s model.DeploymentStatus, logs string) error {
	r.mu.Lock()
	r.history = append(r.history, s)
	r.mu.Unlock()
	return r.DeploymentRepository.UpdateStatus(ctx, id, s, logs)
}

func (r *recordingRepo) statuses() []model.DeploymentStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.DeploymentStatus(nil), r.history...)
}

func newTestUseCase(t *testing.T, fake *exectest.Fake) (*UseCase, *recordingRepo, *terraform.Runner) {
	t.Helper()
	store := inmem.NewStore()
	repo := &recordingRepo{DeploymentRepository: store.DeploymentRepo}
	tf := terraform.New(fake, "terraform", "", t.TempDir())
	u := &UseCase{
		Repo:     repo,
		Infra:    tf,
		Activity: &activity.UseCase{Repos: &activity.Repos{Activity: store.ActivityRepo, Notification: store.NotificationRepo}},
	}
	return u, repo, tf
}

func localInput() *CreateInput {
	return &CreateInput{UserID: "u1", Provider: model.DeploymentProviderLocal, ClusterName: "edge", NodeCount: 2, KubeconfigPath: "/tmp/kubeconfig"}
}

func TestCreate_Completes(t *testing.T) {
	ctx := context.Background()
	fake := exectest.New().OnOutput("terraform apply", "Apply complete! Resources: 1 added.")
	u, repo, tf := newTestUseCase(t, fake)

	out, err := u.Create(ctx, localInput())
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if out.Status != model.DeploymentPending || out.RunID == "" {
		t.Fatalf("Create() = %+v", out)
	}
	u.Wait()

	g, err := u.Get(ctx, &GetInput{ID: out.RunID})
	if err != nil {
		t.Fatal(err)
	}
	d := g.Deployment
	if d.Status != model.DeploymentCompleted || !strings.Contains(d.Logs, "Apply complete!") {
		t.Errorf("deployment = %+v", d)
	}
	if d.Config["kubeconfig_path"] != "/tmp/kubeconfig" {
		t.Errorf("config = %v", d.Config)
	}
	hist := repo.statuses()
	if hist[0] != model.DeploymentRunning || hist[len(hist)-1] != model.DeploymentCompleted {
		t.Errorf("status history = %v", hist)
	}
	calls := fake.Calls()
	want := []string{"terraform init", "terraform plan", "terraform apply"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v", calls)
	}
	for i, w := range want {
		if !strings.HasPrefix(calls[i], w) {
			t.Errorf("call %d = %q, want %q", i, calls[i], w)
		}
	}
	if _, ok := tf.Dir(out.RunID); !ok {
		t.Error("working directory missing")
	}
	n, _ := u.Activity.Notifications(ctx, nil)
	if len(n.Notifications) != 1 || n.Notifications[0].Level != model.NotificationSuccess {
		t.Errorf("notifications = %+v", n.Notifications)
	}
}

func TestCreate_StepFailure(t *testing.T) {
	ctx := context.Background()
	fake := exectest.New().OnFail("terraform plan", 1, "Error: invalid provider configuration")
	u, _, _ := newTestUseCase(t, fake)

	out, err := u.Create(ctx, localInput())
	if err != nil {
		t.Fatal(err)
	}
	u.Wait()
	g, _ := u.Get(ctx, &GetInput{ID: out.RunID})
	if g.Deployment.Status != model.DeploymentFailed {
		t.Fatalf("status = %s", g.Deployment.Status)
	}
	if !strings.HasPrefix(g.Deployment.Logs, "Terraform plan failed:") || !strings.Contains(g.Deployment.Logs, "invalid provider") {
		t.Errorf("logs = %q", g.Deployment.Logs)
	}
	if len(fake.CallsWith("terraform apply")) != 0 {
		t.Error("apply ran after failed plan")
	}
}

func TestCreate_DoesNotStoreCredentials(t *testing.T) {
	ctx := context.Background()
	u, _, _ := newTestUseCase(t, exectest.New())
	in := &CreateInput{Provider: model.DeploymentProviderAWS, ClusterName: "prod", NodeCount: 3, AWSRegion: "eu-west-1", InstanceType: "t3.large", VPCCIDR: "10.0.0.0/16", AWSAccessKey: "AKIA123", AWSSecretKey: "secret", Tags: map[string]string{"env": "prod"}}
	out, err := u.Create(ctx, in)
	if err != nil {
		t.Fatal(err)
	}
	u.Wait()
	g, _ := u.Get(ctx, &GetInput{ID: out.RunID})
	for k, v := range g.Deployment.Config {
		if strings.Contains(k, "key") || v == "secret" || v == "AKIA123" {
			t.Errorf("credential stored: %s=%s", k, v)
		}
	}
	if g.Deployment.Config["tag:env"] != "prod" {
		t.Errorf("config = %v", g.Deployment.Config)
	}
}

func TestCreate_Invalid(t *testing.T) {
	u, _, _ := newTestUseCase(t, exectest.New())
	tests := []struct {
		name string
		in   *CreateInput
	}{
		{"nil", nil},
		{"no name", &CreateInput{Provider: model.DeploymentProviderLocal, NodeCount: 1, KubeconfigPath: "k"}},
		{"no nodes", &CreateInput{Provider: model.DeploymentProviderLocal, ClusterName: "a", KubeconfigPath: "k"}},
		{"aws without credentials", &CreateInput{Provider: model.DeploymentProviderAWS, ClusterName: "a", NodeCount: 1, AWSRegion: "us-east-1"}},
		{"local without kubeconfig", &CreateInput{Provider: model.DeploymentProviderLocal, ClusterName: "a", NodeCount: 1}},
		{"unknown provider", &CreateInput{Provider: "gcp", ClusterName: "a", NodeCount: 1}},
		{"autoscaling bounds", &CreateInput{Provider: model.DeploymentProviderLocal, ClusterName: "a", NodeCount: 1, KubeconfigPath: "k", EnableAutoscaling: true, MinNodes: 5, MaxNodes: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := u.Create(context.Background(), tt.in); !errors.Is(err, model.ErrDeploymentInvalid) {
				t.Errorf("Create() error = %v", err)
			}
		})
	}
}

func TestDestroy(t *testing.T) {
	ctx := context.Background()
	fake := exectest.New()
	u, repo, tf := newTestUseCase(t, fake)
	out, _ := u.Create(ctx, localInput())
	u.Wait()

	res, err := u.Destroy(ctx, &DestroyInput{ID: out.RunID})
	if err != nil || !res.Success {
		t.Fatalf("Destroy() = %+v, %v", res, err)
	}
	if len(fake.CallsWith("terraform destroy -input=false -no-color -auto-approve")) != 1 {
		t.Errorf("calls = %v", fake.Calls())
	}
	hist := repo.statuses()
	if hist[len(hist)-2] != model.DeploymentDestroying || hist[len(hist)-1] != model.DeploymentDestroyed {
		t.Errorf("status history = %v", hist)
	}
	if _, ok := tf.Dir(out.RunID); ok {
		t.Error("working directory kept")
	}
	if _, err := u.Get(ctx, &GetInput{ID: out.RunID}); !errors.Is(err, model.ErrDeploymentNotFound) {
		t.Errorf("Get() after destroy error = %v", err)
	}
	if _, err := u.Destroy(ctx, &DestroyInput{ID: out.RunID}); !errors.Is(err, model.ErrDeploymentNotFound) {
		t.Errorf("second Destroy() error = %v", err)
	}
}

func TestDestroy_Failure(t *testing.T) {
	ctx := context.Background()
	fake := exectest.New().OnFail("terraform destroy", 1, "Error: dependency violation")
	u, _, tf := newTestUseCase(t, fake)
	out, _ := u.Create(ctx, localInput())
	u.Wait()

	res, err := u.Destroy(ctx, &DestroyInput{ID: out.RunID})
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || !strings.Contains(res.Error, "dependency violation") {
		t.Errorf("Destroy() = %+v", res)
	}
	g, err := u.Get(ctx, &GetInput{ID: out.RunID})
	if err != nil || g.Deployment.Status != model.DeploymentDestroyFailed {
		t.Errorf("Get() = %+v, %v", g, err)
	}
	if _, ok := tf.Dir(out.RunID); !ok {
		t.Error("working directory removed after failed destroy")
	}
}

func TestDestroy_RejectsActiveDeployment(t *testing.T) {
	ctx := context.Background()
	fake := exectest.New()
	u, repo, _ := newTestUseCase(t, fake)
	out, _ := u.Create(ctx, localInput())
	u.Wait()

	for _, s := range []model.DeploymentStatus{model.DeploymentPending, model.DeploymentRunning, model.DeploymentDestroying} {
		t.Run(string(s), func(t *testing.T) {
			if err := repo.UpdateStatus(ctx, out.RunID, s, ""); err != nil {
				t.Fatal(err)
			}
			if _, err := u.Destroy(ctx, &DestroyInput{ID: out.RunID}); !errors.Is(err, model.ErrDeploymentInvalid) {
				t.Errorf("Destroy() error = %v, want ErrDeploymentInvalid", err)
			}
		})
	}
	if n := len(fake.CallsWith("terraform destroy")); n != 0 {
		t.Errorf("terraform destroy called %d times", n)
	}
}

func TestGetAndList_UserScope(t *testing.T) {
	ctx := context.Background()
	u, _, _ := newTestUseCase(t, exectest.New())
	a, _ := u.Create(ctx, localInput())
	other := localInput()
	other.UserID = "u2"
	_, _ = u.Create(ctx, other)
	u.Wait()

	if _, err := u.Get(ctx, &GetInput{ID: a.RunID, UserID: "u2"}); !errors.Is(err, model.ErrDeploymentNotFound) {
		t.Errorf("Get() of foreign record error = %v", err)
	}
	l, _ := u.List(ctx, &ListInput{UserID: "u1"})
	if len(l.Deployments) != 1 {
		t.Errorf("List(u1) = %d", len(l.Deployments))
	}
	l, _ = u.List(ctx, nil)
	if len(l.Deployments) != 2 {
		t.Errorf("List() = %d", len(l.Deployments))
	}
}
