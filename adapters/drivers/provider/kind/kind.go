// Package kind implements the kind provider driver. Node topology is fixed
// at creation time, so scaling recreates the cluster.
package kind

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	providerdrv "github.com/clustermaster/clustermaster/adapters/drivers/provider"
	"github.com/clustermaster/clustermaster/domain/model"
	"github.com/clustermaster/clustermaster/internal/execx"
	"github.com/clustermaster/clustermaster/internal/logging"
)

const (
	binary       = "kind"
	imagePrefix  = "kindest/node:"
	noClustersOK = "No kind clusters found."

	// ScaleWarning is attached to every kind scale report.
	ScaleWarning = "kind cannot resize a running cluster: the cluster was deleted and recreated and all cluster-resident workloads and data were lost"
)

// driver implements providerdrv.Driver for kind.
type driver struct {
	runner execx.Runner
	image  string // default node image; empty means the kind default
}

func init() {
	providerdrv.Register(model.ProviderKind, func(runner execx.Runner, settings map[string]string) (providerdrv.Driver, error) {
		return &driver{runner: runner, image: settings["kind.image"]}, nil
	})
}

// ID returns the provider identifier.
func (d *driver) ID() model.Provider { return model.ProviderKind }

func (d *driver) run(ctx context.Context, long bool, args ...string) *execx.Result {
	c := execx.Cmd{Name: binary, Args: args}
	if long {
		c.Timeout = execx.LongTimeout
	}
	return d.runner.Run(ctx, c)
}

// IsInstalled runs "kind version".
func (d *driver) IsInstalled(ctx context.Context) bool {
	if _, err := d.runner.LookPath(binary); err != nil {
		return false
	}
	return d.run(ctx, false, "version").OK()
}

// ListClusters runs "kind get clusters".
func (d *driver) ListClusters(ctx context.Context) ([]string, error) {
	res := d.run(ctx, false, "get", "clusters")
	if !res.OK() {
		return nil, res.Err()
	}
	return parseLines(res.Stdout), nil
}

func (d *driver) Exists(ctx context.Context, name string) (bool, error) {
	return providerdrv.ListedBy(ctx, d, name)
}

// manifestNode is one entry of the kind Cluster config.
type manifestNode struct {
	Role              string        `yaml:"role"`
	ExtraPortMappings []portMapping `yaml:"extraPortMappings,omitempty"`
}

type portMapping struct {
	ContainerPort int    `yaml:"containerPort"`
	HostPort      int    `yaml:"hostPort"`
	Protocol      string `yaml:"protocol"`
}

type manifest struct {
	Kind       string         `yaml:"kind"`
	APIVersion string         `yaml:"apiVersion"`
	Name       string         `yaml:"name"`
	Nodes      []manifestNode `yaml:"nodes"`
}

// BuildManifest renders the kind Cluster config for spec. The first
// control-plane node carries the host port mappings so NodePort services are
// reachable from the host on the same port numbers.
func BuildManifest(spec model.ClusterCreateSpec) ([]byte, error) {
	cps := spec.ControlPlanes
	if cps < 1 {
		cps = 1
	}
	m := manifest{Kind: "Cluster", APIVersion: "kind.x-k8s.io/v1alpha4", Name: spec.Name}
	for i := 0; i < cps; i++ {
		n := manifestNode{Role: "control-plane"}
		if i == 0 {
			for _, p := range spec.Ports.Values() {
				n.ExtraPortMappings = append(n.ExtraPortMappings, portMapping{ContainerPort: p, HostPort: p, Protocol: "TCP"})
			}
		}
		m.Nodes = append(m.Nodes, n)
	}
	for i := 0; i < spec.Workers; i++ {
		m.Nodes = append(m.Nodes, manifestNode{Role: "worker"})
	}
	return yaml.Marshal(&m)
}

// Create writes the manifest to a temporary file, which is removed whatever
// the outcome, and runs "kind create cluster".
func (d *driver) Create(ctx context.Context, spec model.ClusterCreateSpec, opts model.ClusterCreateOptions) *model.OpResult {
	data, err := BuildManifest(spec)
	if err != nil {
		return providerdrv.Failed(fmt.Errorf("render kind config: %w", err))
	}
	f, err := os.CreateTemp("", "kind-"+spec.Name+"-*.yaml")
	if err != nil {
		return providerdrv.Failed(fmt.Errorf("create temp kind config: %w", err))
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(data); err != nil {
		f.Close()
		return providerdrv.Failed(fmt.Errorf("write temp kind config: %w", err))
	}
	if err := f.Close(); err != nil {
		return providerdrv.Failed(fmt.Errorf("close temp kind config: %w", err))
	}

	args := []string{"create", "cluster", "--name", spec.Name, "--config", f.Name()}
	if img := d.nodeImage(opts); img != "" {
		args = append(args, "--image", img)
	}
	logging.FromContext(ctx).Info(ctx, "creating kind cluster", "cluster", spec.Name, "control_planes", spec.ControlPlanes, "workers", spec.Workers)
	res := d.run(ctx, true, args...)
	return providerdrv.OpResultFrom(res, fmt.Sprintf("kind cluster %s created with %d nodes", spec.Name, max(spec.ControlPlanes, 1)+spec.Workers))
}

func (d *driver) nodeImage(opts model.ClusterCreateOptions) string {
	switch {
	case opts.Image != "":
		return opts.Image
	case opts.K8sVersion != "":
		v := opts.K8sVersion
		if !strings.HasPrefix(v, "v") {
			v = "v" + v
		}
		return imagePrefix + v
	default:
		return d.image
	}
}

// Delete runs "kind delete cluster".
func (d *driver) Delete(ctx context.Context, name string) *model.OpResult {
	res := d.run(ctx, true, "delete", "cluster", "--name", name)
	return providerdrv.OpResultFrom(res, fmt.Sprintf("kind cluster %s deleted", name))
}

// ListNodes runs "kind get nodes" and derives roles from the container names.
func (d *driver) ListNodes(ctx context.Context, name string) ([]model.Node, error) {
	res := d.run(ctx, false, "get", "nodes", "--name", name)
	if !res.OK() {
		return nil, res.Err()
	}
	var nodes []model.Node
	for _, n := range parseLines(res.Stdout) {
		nodes = append(nodes, model.Node{Name: n, Role: roleOf(n), Status: "running"})
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	return nodes, nil
}

func roleOf(node string) model.NodeRole {
	switch {
	case strings.HasSuffix(node, "-external-load-balancer"):
		return model.NodeRoleLoadBalancer
	case strings.Contains(node, "-control-plane"):
		return model.NodeRoleControlPlane
	case strings.Contains(node, "-worker"):
		return model.NodeRoleWorker
	default:
		return model.NodeRoleUnknown
	}
}

// Scale deletes and recreates the cluster with the requested worker count,
// keeping the control-plane count and the host port mappings.
func (d *driver) Scale(ctx context.Context, name string, workers int, ports model.PortAssignment) *model.ScaleReport {
	rep := &model.ScaleReport{Destructive: true, Warning: ScaleWarning}
	nodes, err := d.ListNodes(ctx, name)
	if err != nil {
		rep.OpResult = *providerdrv.Failed(fmt.Errorf("list nodes: %w", err))
		return rep
	}
	cps := 0
	var opts model.ClusterCreateOptions
	for _, n := range nodes {
		switch n.Role {
		case model.NodeRoleControlPlane:
			cps++
			if opts.Image == "" {
				opts.Image = d.nodeImageOf(ctx, n.Name)
			}
		case model.NodeRoleWorker:
			rep.Previous++
		}
	}
	rep.Current = rep.Previous
	if cps == 0 {
		cps = 1
	}

	del := d.Delete(ctx, name)
	rep.Steps = append(rep.Steps, "delete cluster "+name+": "+status(del))
	if !del.Success {
		rep.Success = false
		rep.Message, rep.Err, rep.Stderr = del.Message, del.Err, del.Stderr
		return rep
	}
	rep.Current = 0

	spec := model.ClusterCreateSpec{Name: name, ControlPlanes: cps, Workers: workers, Ports: ports}
	cr := d.Create(ctx, spec, opts)
	rep.Steps = append(rep.Steps, fmt.Sprintf("recreate cluster %s with %d workers: %s", name, workers, status(cr)))
	rep.Stdout, rep.Stderr = cr.Stdout, cr.Stderr
	if !cr.Success {
		rep.Success = false
		rep.Message, rep.Err = cr.Message, cr.Err
		return rep
	}
	rep.Success = true
	rep.Current = workers
	rep.Message = fmt.Sprintf("kind cluster %s recreated with %d workers", name, workers)
	return rep
}

// nodeImageOf returns the image of a node container, or "" when docker cannot
// tell.
func (d *driver) nodeImageOf(ctx context.Context, node string) string {
	res := d.runner.Run(ctx, execx.Cmd{Name: "docker", Args: []string{"inspect", "-f", "{{.Config.Image}}", node}})
	if !res.OK() {
		logging.FromContext(ctx).Warn(ctx, "node image not readable, recreating with the default image", "node", node, "error", res.Err())
		return ""
	}
	return strings.TrimSpace(res.Stdout)
}

func status(r *model.OpResult) string {
	if r.Success {
		return "ok"
	}
	return "failed: " + r.Message
}

// Start and Stop act on the node containers through docker, as kind has no
// start/stop verbs of its own.
func (d *driver) Start(ctx context.Context, name string) *model.OpResult {
	return d.docker(ctx, "start", name)
}

func (d *driver) Stop(ctx context.Context, name string) *model.OpResult {
	return d.docker(ctx, "stop", name)
}

func (d *driver) docker(ctx context.Context, verb, name string) *model.OpResult {
	nodes, err := d.ListNodes(ctx, name)
	if err != nil {
		return providerdrv.Failed(err)
	}
	if len(nodes) == 0 {
		return providerdrv.Failed(fmt.Errorf("%w: kind cluster %s has no nodes", model.ErrClusterNotFound, name))
	}
	args := []string{verb}
	for _, n := range nodes {
		args = append(args, n.Name)
	}
	res := d.runner.Run(ctx, execx.Cmd{Name: "docker", Args: args, Timeout: execx.LongTimeout})
	return providerdrv.OpResultFrom(res, fmt.Sprintf("kind cluster %s: %s %d nodes", name, verb, len(nodes)))
}

func parseLines(out string) []string {
	var names []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == noClustersOK || strings.HasPrefix(line, "No kind nodes found") {
			continue
		}
		names = append(names, line)
	}
	return names
}
