package kube

import (
	"context"
	"fmt"
	"sort"
	"strings"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/clustermaster/clustermaster/domain/model"
	"github.com/clustermaster/clustermaster/internal/execx"
	"github.com/clustermaster/clustermaster/internal/logging"
)

// Monitor implements model.MonitoringPort with client-go and the metrics API.
type Monitor struct {
	Clients *Clients
	// Runner runs the kubectl top fallback. Nil disables the fallback.
	Runner execx.Runner
}

var _ model.MonitoringPort = (*Monitor)(nil)

// DeleteNamespace removes namespace from the cluster of kubeContext.
func (m *Monitor) DeleteNamespace(ctx context.Context, kubeContext, namespace string) (bool, error) {
	c, err := m.Clients.For(kubeContext)
	if err != nil {
		return false, err
	}
	return c.DeleteNamespace(ctx, namespace)
}

// Pods lists the pods of namespace, or of every namespace when it is empty.
func (m *Monitor) Pods(ctx context.Context, kubeContext, namespace string) ([]model.PodStatus, error) {
	c, err := m.Clients.For(kubeContext)
	if err != nil {
		return nil, err
	}
	list, err := c.Clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list pods: %w", err)
	}
	out := make([]model.PodStatus, 0, len(list.Items))
	for i := range list.Items {
		out = append(out, podStatus(&list.Items[i]))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Namespace+"/"+out[i].Name < out[j].Namespace+"/"+out[j].Name })
	return out, nil
}

func podStatus(p *corev1.Pod) model.PodStatus {
	ready := 0
	var restarts int32
	for _, cs := range p.Status.ContainerStatuses {
		if cs.Ready {
			ready++
		}
		restarts += cs.RestartCount
	}
	return model.PodStatus{
		Name:      p.Name,
		Namespace: p.Namespace,
		Phase:     string(p.Status.Phase),
		Ready:     fmt.Sprintf("%d/%d", ready, len(p.Spec.Containers)),
		Restarts:  restarts,
	}
}

// Services lists the services of namespace, or of every namespace when it is empty.
func (m *Monitor) Services(ctx context.Context, kubeContext, namespace string) ([]model.ServiceStatus, error) {
	c, err := m.Clients.For(kubeContext)
	if err != nil {
		return nil, err
	}
	list, err := c.Clientset.CoreV1().Services(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	out := make([]model.ServiceStatus, 0, len(list.Items))
	for _, s := range list.Items {
		st := model.ServiceStatus{
			Name:      s.Name,
			Namespace: s.Namespace,
			Type:      string(s.Spec.Type),
			ClusterIP: s.Spec.ClusterIP,
		}
		for _, p := range s.Spec.Ports {
			st.Ports = append(st.Ports, p.Port)
			if p.NodePort > 0 {
				st.NodePorts = append(st.NodePorts, p.NodePort)
			}
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Namespace+"/"+out[i].Name < out[j].Namespace+"/"+out[j].Name })
	return out, nil
}

// NodeUsage reads node CPU and memory from the metrics API and falls back
// to kubectl top nodes when the API is not served.
func (m *Monitor) NodeUsage(ctx context.Context, kubeContext string) ([]model.NodeUsage, error) {
	c, err := m.Clients.For(kubeContext)
	if err != nil {
		return nil, err
	}
	var apiErr error
	if c.Metrics != nil {
		list, err := c.Metrics.MetricsV1beta1().NodeMetricses().List(ctx, metav1.ListOptions{})
		if err == nil {
			out := make([]model.NodeUsage, 0, len(list.Items))
			for _, nm := range list.Items {
				cpu := nm.Usage[corev1.ResourceCPU]
				mem := nm.Usage[corev1.ResourceMemory]
				out = append(out, model.NodeUsage{Name: nm.Name, CPUMilli: cpu.MilliValue(), MemoryBytes: mem.Value()})
			}
			sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
			return out, nil
		}
		apiErr = err
	} else {
		apiErr = fmt.Errorf("metrics client not configured")
	}
	if m.Runner == nil {
		return nil, fmt.Errorf("node metrics: %w", apiErr)
	}
	logging.FromContext(ctx).Debug(ctx, "metrics API unavailable, using kubectl top", "context", kubeContext, "error", apiErr)
	res := m.Runner.Run(ctx, execx.Cmd{Name: "kubectl", Args: []string{"top", "nodes", "--no-headers", "--context", kubeContext}})
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("node metrics: %w", err)
	}
	return ParseTopNodes(res.Stdout)
}

// ParseTopNodes parses `kubectl top nodes --no-headers` output:
//
//	kind-demo-control-plane   180m   4%   1024Mi   13%
func ParseTopNodes(out string) ([]model.NodeUsage, error) {
	var nodes []model.NodeUsage
	for _, line := range strings.Split(out, "\n") {
		f := strings.Fields(line)
		if len(f) == 0 {
			continue
		}
		if len(f) < 4 {
			return nil, fmt.Errorf("unexpected kubectl top line %q", line)
		}
		cpu, err := resource.ParseQuantity(f[1])
		if err != nil {
			return nil, fmt.Errorf("parse cpu %q: %w", f[1], err)
		}
		mem, err := resource.ParseQuantity(f[3])
		if err != nil {
			return nil, fmt.Errorf("parse memory %q: %w", f[3], err)
		}
		nodes = append(nodes, model.NodeUsage{Name: f[0], CPUMilli: cpu.MilliValue(), MemoryBytes: mem.Value()})
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	return nodes, nil
}
