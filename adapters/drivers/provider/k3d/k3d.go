// Package k3d implements the k3d provider driver. Agents are added and
// removed on a running cluster, so scaling is non-destructive.
package k3d

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	providerdrv "github.com/clustermaster/clustermaster/adapters/drivers/provider"
	"github.com/clustermaster/clustermaster/domain/model"
	"github.com/clustermaster/clustermaster/internal/execx"
	"github.com/clustermaster/clustermaster/internal/logging"
)

const binary = "k3d"

type driver struct {
	runner  execx.Runner
	apiPort string // optional --api-port value
}

func init() {
	providerdrv.Register(model.ProviderK3d, func(runner execx.Runner, settings map[string]string) (providerdrv.Driver, error) {
		return &driver{runner: runner, apiPort: settings["k3d.api_port"]}, nil
	})
}

func (d *driver) ID() model.Provider { return model.ProviderK3d }

func (d *driver) run(ctx context.Context, long bool, args ...string) *execx.Result {
	c := execx.Cmd{Name: binary, Args: args}
	if long {
		c.Timeout = execx.LongTimeout
	}
	return d.runner.Run(ctx, c)
}

func (d *driver) IsInstalled(ctx context.Context) bool {
	if _, err := d.runner.LookPath(binary); err != nil {
		return false
	}
	return d.run(ctx, false, "version").OK()
}

type clusterJSON struct {
	Name string `json:"name"`
}

// ListClusters runs "k3d cluster list -o json".
func (d *driver) ListClusters(ctx context.Context) ([]string, error) {
	res := d.run(ctx, false, "cluster", "list", "-o", "json")
	if !res.OK() {
		return nil, res.Err()
	}
	var cs []clusterJSON
	if strings.TrimSpace(res.Stdout) != "" {
		if err := json.Unmarshal([]byte(res.Stdout), &cs); err != nil {
			return nil, fmt.Errorf("decode k3d cluster list: %w", err)
		}
	}
	names := make([]string, 0, len(cs))
	for _, c := range cs {
		names = append(names, c.Name)
	}
	return names, nil
}

func (d *driver) Exists(ctx context.Context, name string) (bool, error) {
	return providerdrv.ListedBy(ctx, d, name)
}

// CreateArgs returns the "k3d cluster create" arguments for spec.
func (d *driver) CreateArgs(spec model.ClusterCreateSpec, opts model.ClusterCreateOptions) []string {
	servers := spec.ControlPlanes
	if servers < 1 {
		servers = 1
	}
	args := []string{"cluster", "create", spec.Name,
		"--servers", strconv.Itoa(servers),
		"--agents", strconv.Itoa(spec.Workers),
		"--wait",
	}
	if d.apiPort != "" {
		args = append(args, "--api-port", d.apiPort)
	}
	for _, p := range spec.Ports.Values() {
		args = append(args, "--port", fmt.Sprintf("%d:%d@loadbalancer", p, p))
	}
	switch {
	case opts.Image != "":
		args = append(args, "--image", opts.Image)
	case opts.K8sVersion != "":
		args = append(args, "--image", "rancher/k3s:"+k3sTag(opts.K8sVersion))
	}
	return args
}

func k3sTag(v string) string {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !strings.Contains(v, "k3s") {
		v += "-k3s1"
	}
	return v
}

func (d *driver) Create(ctx context.Context, spec model.ClusterCreateSpec, opts model.ClusterCreateOptions) *model.OpResult {
	logging.FromContext(ctx).Info(ctx, "creating k3d cluster", "cluster", spec.Name, "servers", spec.ControlPlanes, "agents", spec.Workers)
	res := d.run(ctx, true, d.CreateArgs(spec, opts)...)
	return providerdrv.OpResultFrom(res, fmt.Sprintf("k3d cluster %s created with %d servers and %d agents", spec.Name, max(spec.ControlPlanes, 1), spec.Workers))
}

func (d *driver) Delete(ctx context.Context, name string) *model.OpResult {
	res := d.run(ctx, true, "cluster", "delete", name)
	return providerdrv.OpResultFrom(res, fmt.Sprintf("k3d cluster %s deleted", name))
}

type nodeJSON struct {
	Name          string            `json:"name"`
	Role          string            `json:"role"`
	Cluster       string            `json:"cluster"`
	Created       string            `json:"created"`
	RuntimeLabels map[string]string `json:"runtimeLabels"`
	State         struct {
		Running bool   `json:"Running"`
		Status  string `json:"Status"`
	} `json:"State"`
}

func (n nodeJSON) cluster() string {
	if n.Cluster != "" {
		return n.Cluster
	}
	return n.RuntimeLabels["k3d.cluster"]
}

func (n nodeJSON) role() model.NodeRole {
	r := n.Role
	if r == "" {
		r = n.RuntimeLabels["k3d.role"]
	}
	switch {
	case r == "server":
		return model.NodeRoleServer
	case r == "agent":
		return model.NodeRoleAgent
	case r == "loadbalancer":
		return model.NodeRoleLoadBalancer
	case strings.Contains(n.Name, "-agent-"):
		return model.NodeRoleAgent
	case strings.Contains(n.Name, "-server-"):
		return model.NodeRoleServer
	case strings.HasSuffix(n.Name, "-serverlb"):
		return model.NodeRoleLoadBalancer
	}
	return model.NodeRoleUnknown
}

// ListNodes runs "k3d node list -o json" and keeps the nodes of name.
// Nodes are ordered by creation time, then by name.
func (d *driver) ListNodes(ctx context.Context, name string) ([]model.Node, error) {
	res := d.run(ctx, false, "node", "list", "-o", "json")
	if !res.OK() {
		return nil, res.Err()
	}
	var raw []nodeJSON
	if strings.TrimSpace(res.Stdout) != "" {
		if err := json.Unmarshal([]byte(res.Stdout), &raw); err != nil {
			return nil, fmt.Errorf("decode k3d node list: %w", err)
		}
	}
	var mine []nodeJSON
	for _, n := range raw {
		if n.cluster() == name {
			mine = append(mine, n)
		}
	}
	sort.SliceStable(mine, func(i, j int) bool {
		ti, tj := createdAt(mine[i]), createdAt(mine[j])
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return mine[i].Name < mine[j].Name
	})
	nodes := make([]model.Node, 0, len(mine))
	for _, n := range mine {
		node := model.Node{Name: n.Name, Role: n.role(), Status: n.State.Status, Created: n.Created}
		if node.Status == "" && n.State.Running {
			node.Status = "running"
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func createdAt(n nodeJSON) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, n.Created)
	return t
}

// agentIndex extracts N from "agent-N" style names, or -1.
func agentIndex(node string) int {
	i := strings.LastIndex(node, "agent-")
	if i < 0 {
		return -1
	}
	rest := node[i+len("agent-"):]
	if j := strings.IndexByte(rest, '-'); j >= 0 {
		rest = rest[:j]
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return -1
	}
	return n
}

// Scale adds or removes agents on the running cluster. Newly created agents
// get the next free index. Removal takes the most recently created agents
// first. The first failing step stops the operation and is reported with the
// node count reached so far.
func (d *driver) Scale(ctx context.Context, name string, workers int, _ model.PortAssignment) *model.ScaleReport {
	rep := &model.ScaleReport{}
	nodes, err := d.ListNodes(ctx, name)
	if err != nil {
		rep.OpResult = *providerdrv.Failed(fmt.Errorf("list nodes: %w", err))
		return rep
	}
	var agents []model.Node
	next := 0
	for _, n := range nodes {
		if n.Role != model.NodeRoleAgent {
			continue
		}
		agents = append(agents, n)
		if i := agentIndex(n.Name); i >= next {
			next = i + 1
		}
	}
	rep.Previous = len(agents)
	rep.Current = len(agents)
	log := logging.FromContext(ctx)

	switch delta := workers - len(agents); {
	case delta > 0:
		rep.Steps = append(rep.Steps, fmt.Sprintf("adding %d agent(s)", delta))
		for i := 0; i < delta; i++ {
			agent := fmt.Sprintf("agent-%d", next+i)
			res := d.run(ctx, true, "node", "create", agent, "--cluster", name, "--role", "agent", "--wait")
			if !res.OK() {
				rep.Steps = append(rep.Steps, "failed to add "+agent+": "+strings.TrimSpace(res.Stderr))
				return d.failScale(rep, res)
			}
			rep.Current++
			rep.Steps = append(rep.Steps, "added "+agent)
			log.Info(ctx, "k3d agent added", "cluster", name, "node", agent)
		}
	case delta < 0:
		rep.Steps = append(rep.Steps, fmt.Sprintf("removing %d agent(s)", -delta))
		for i := 0; i < -delta; i++ {
			node := agents[len(agents)-1-i].Name
			res := d.run(ctx, true, "node", "delete", node)
			if !res.OK() {
				rep.Steps = append(rep.Steps, "failed to remove "+node+": "+strings.TrimSpace(res.Stderr))
				return d.failScale(rep, res)
			}
			rep.Current--
			rep.Steps = append(rep.Steps, "removed "+node)
			log.Info(ctx, "k3d agent removed", "cluster", name, "node", node)
		}
	default:
		rep.Steps = append(rep.Steps, "no changes needed, cluster already at target size")
	}
	rep.Success = true
	rep.Message = fmt.Sprintf("k3d cluster %s scaled to %d agents", name, workers)
	return rep
}

func (d *driver) failScale(rep *model.ScaleReport, res *execx.Result) *model.ScaleReport {
	rep.Success = false
	rep.Err = fmt.Errorf("%w: stopped at %d of the requested agents: %w", model.ErrPartialFailure, rep.Current, res.Err())
	rep.Message = rep.Err.Error()
	rep.Stdout, rep.Stderr = res.Stdout, res.Stderr
	return rep
}

func (d *driver) Start(ctx context.Context, name string) *model.OpResult {
	return providerdrv.OpResultFrom(d.run(ctx, true, "cluster", "start", name), fmt.Sprintf("k3d cluster %s started", name))
}

func (d *driver) Stop(ctx context.Context, name string) *model.OpResult {
	return providerdrv.OpResultFrom(d.run(ctx, true, "cluster", "stop", name), fmt.Sprintf("k3d cluster %s stopped", name))
}
