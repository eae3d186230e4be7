package model

import "context"

// PodStatus is a condensed pod view.
type PodStatus struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
	Phase     string `json:"phase"`
	Ready     string `json:"ready"`
	Restarts  int32  `json:"restarts"`
}

// ServiceStatus is a condensed service view.
type ServiceStatus struct {
	Name      string  `json:"name"`
	Namespace string  `json:"namespace"`
	Type      string  `json:"type"`
	ClusterIP string  `json:"cluster_ip"`
	Ports     []int32 `json:"ports"`
	NodePorts []int32 `json:"node_ports,omitempty"`
}

// NodeUsage is the resource usage of one node.
type NodeUsage struct {
	Name        string `json:"name"`
	CPUMilli    int64  `json:"cpu_milli"`
	MemoryBytes int64  `json:"memory_bytes"`
}

// MonitoringPort reads in-cluster state for a kube context.
type MonitoringPort interface {
	Pods(ctx context.Context, kubeContext, namespace string) ([]PodStatus, error)
	Services(ctx context.Context, kubeContext, namespace string) ([]ServiceStatus, error)
	NodeUsage(ctx context.Context, kubeContext string) ([]NodeUsage, error)
	// DeleteNamespace removes namespace and reports whether it existed.
	DeleteNamespace(ctx context.Context, kubeContext, namespace string) (bool, error)
}
