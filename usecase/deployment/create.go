package deployment

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/clustermaster/clustermaster/domain/model"
	"github.com/clustermaster/clustermaster/internal/logging"
)

// CreateInput describes a cloud deployment. AWS credentials are passed to
// the rendered configuration and never stored in the record.
type CreateInput struct {
	UserID      string                   `json:"user_id,omitempty"`
	Provider    model.DeploymentProvider `json:"provider"`
	ClusterName string                   `json:"cluster_name"`
	NodeCount   int                      `json:"node_count"`

	AWSRegion    string `json:"aws_region,omitempty"`
	InstanceType string `json:"instance_type,omitempty"`
	VPCCIDR      string `json:"vpc_cidr,omitempty"`
	AWSAccessKey string `json:"aws_access_key,omitempty"`
	AWSSecretKey string `json:"aws_secret_key,omitempty"`

	KubeconfigPath string `json:"kubeconfig_path,omitempty"`

	CPU    int `json:"cpu,omitempty"`
	Memory int `json:"memory,omitempty"`
	Disk   int `json:"disk,omitempty"`

	K8sVersion        string            `json:"k8s_version,omitempty"`
	EnableAutoscaling bool              `json:"enable_autoscaling,omitempty"`
	MinNodes          int               `json:"min_nodes,omitempty"`
	MaxNodes          int               `json:"max_nodes,omitempty"`
	Tags              map[string]string `json:"tags,omitempty"`
}

type CreateOutput struct {
	RunID   string                 `json:"run_id"`
	Message string                 `json:"message"`
	Status  model.DeploymentStatus `json:"status"`
}

func (in *CreateInput) validate() error {
	if in.ClusterName == "" {
		return fmt.Errorf("%w: cluster_name required", model.ErrDeploymentInvalid)
	}
	if in.NodeCount < 1 {
		return fmt.Errorf("%w: node_count must be at least 1", model.ErrDeploymentInvalid)
	}
	switch in.Provider {
	case model.DeploymentProviderAWS:
		if in.AWSRegion == "" || in.InstanceType == "" || in.VPCCIDR == "" || in.AWSAccessKey == "" || in.AWSSecretKey == "" {
			return fmt.Errorf("%w: aws provider requires aws_region, instance_type, vpc_cidr, aws_access_key and aws_secret_key", model.ErrDeploymentInvalid)
		}
	case model.DeploymentProviderLocal:
		if in.KubeconfigPath == "" {
			return fmt.Errorf("%w: local provider requires kubeconfig_path", model.ErrDeploymentInvalid)
		}
	default:
		return fmt.Errorf("%w: provider %q", model.ErrDeploymentInvalid, in.Provider)
	}
	if in.EnableAutoscaling && in.MaxNodes > 0 && in.MinNodes > in.MaxNodes {
		return fmt.Errorf("%w: min_nodes exceeds max_nodes", model.ErrDeploymentInvalid)
	}
	return nil
}

// vars are the template variables. Every key is always present.
func (in *CreateInput) vars() map[string]any {
	tags := in.Tags
	if tags == nil {
		tags = map[string]string{}
	}
	return map[string]any{
		"provider":           string(in.Provider),
		"cluster_name":       in.ClusterName,
		"node_count":         in.NodeCount,
		"aws_region":         in.AWSRegion,
		"instance_type":      in.InstanceType,
		"vpc_cidr":           in.VPCCIDR,
		"aws_access_key":     in.AWSAccessKey,
		"aws_secret_key":     in.AWSSecretKey,
		"kubeconfig_path":    in.KubeconfigPath,
		"cpu":                in.CPU,
		"memory":             in.Memory,
		"disk":               in.Disk,
		"k8s_version":        in.K8sVersion,
		"enable_autoscaling": in.EnableAutoscaling,
		"min_nodes":          in.MinNodes,
		"max_nodes":          in.MaxNodes,
		"tags":               tags,
	}
}

// config is the stored copy of the request without credentials.
func (in *CreateInput) config() map[string]string {
	c := map[string]string{}
	set := func(k, v string) {
		if v != "" {
			c[k] = v
		}
	}
	set("aws_region", in.AWSRegion)
	set("instance_type", in.InstanceType)
	set("vpc_cidr", in.VPCCIDR)
	set("kubeconfig_path", in.KubeconfigPath)
	set("k8s_version", in.K8sVersion)
	if in.EnableAutoscaling {
		c["enable_autoscaling"] = "true"
		c["min_nodes"] = strconv.Itoa(in.MinNodes)
		c["max_nodes"] = strconv.Itoa(in.MaxNodes)
	}
	for k, v := range in.Tags {
		c["tag:"+k] = v
	}
	return c
}

// Create stores a pending record and starts the run in the background.
// The run outlives ctx; use Wait to join it.
func (u *UseCase) Create(ctx context.Context, in *CreateInput) (out *CreateOutput, err error) {
	if in == nil {
		return nil, model.ErrDeploymentInvalid
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	ctx, finish := logging.Span(ctx, "UC", "deployment.create", "cluster", in.ClusterName, "provider", in.Provider)
	defer func() { finish(err) }()

	t := now()
	d := &model.Deployment{
		ID:          uuid.NewString(),
		UserID:      in.UserID,
		Provider:    in.Provider,
		Status:      model.DeploymentPending,
		ClusterName: in.ClusterName,
		NodeCount:   in.NodeCount,
		Config:      in.config(),
		CreatedAt:   t,
		UpdatedAt:   t,
	}
	if err := u.Repo.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("save deployment: %w", err)
	}
	u.record(ctx, "deploy", d, model.ActivityStarted, "deployment started")

	bg := context.WithoutCancel(ctx)
	vars := in.vars()
	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		u.run(bg, d, vars)
	}()
	return &CreateOutput{RunID: d.ID, Message: "Deployment started successfully", Status: model.DeploymentPending}, nil
}

var steps = []struct {
	step    model.InfraStep
	message string
}{
	{model.InfraInit, "Initializing Terraform..."},
	{model.InfraPlan, "Planning deployment..."},
	{model.InfraApply, "Applying configuration..."},
}

func (u *UseCase) run(ctx context.Context, d *model.Deployment, vars map[string]any) {
	log := logging.FromContext(ctx).With("deployment", d.ID, "cluster", d.ClusterName)
	u.setStatus(ctx, d.ID, model.DeploymentRunning, "Starting deployment...")

	fail := func(msg string) {
		log.Warn(ctx, "deployment failed", "error", msg)
		u.setStatus(ctx, d.ID, model.DeploymentFailed, msg)
		u.record(ctx, "deploy", d, model.ActivityFailed, msg)
		u.notify(ctx, model.NotificationError, "Deployment failed", fmt.Sprintf("deployment of %s failed", d.ClusterName), d.ClusterName)
	}

	dir, err := u.Infra.Prepare(ctx, d.ID, d.Provider, vars)
	if err != nil {
		fail("Failed to render Terraform config: " + err.Error())
		return
	}
	var output string
	for _, s := range steps {
		u.setStatus(ctx, d.ID, model.DeploymentRunning, s.message)
		output, err = u.Infra.Run(ctx, dir, s.step)
		if err != nil {
			fail(fmt.Sprintf("Terraform %s failed:\n%s", s.step, output))
			return
		}
	}
	log.Info(ctx, "deployment completed")
	u.setStatus(ctx, d.ID, model.DeploymentCompleted, "Deployment completed successfully:\n"+output)
	u.record(ctx, "deploy", d, model.ActivitySuccess, "deployment completed")
	u.notify(ctx, model.NotificationSuccess, "Deployment completed", fmt.Sprintf("cluster %s deployed with %d nodes", d.ClusterName, d.NodeCount), d.ClusterName)
}
