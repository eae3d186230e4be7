package model

import "context"

// ForwardSpec forwards a local port to a service port inside a cluster.
type ForwardSpec struct {
	Role       PortRole `json:"role"`
	Namespace  string   `json:"namespace"`
	Service    string   `json:"service"`
	LocalPort  int      `json:"local_port"`
	RemotePort int      `json:"remote_port"`
}

// ForwardStatus reports a running forward.
type ForwardStatus struct {
	ForwardSpec
	Cluster string `json:"cluster"`
	Context string `json:"context"`
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

// ForwardPort supervises background port forwards keyed by cluster name.
// State is process local and starts empty.
type ForwardPort interface {
	Start(ctx context.Context, ref ClusterRef, specs []ForwardSpec) error
	// Stop terminates every forward of cluster and returns how many were stopped.
	Stop(cluster string) int
	List() []ForwardStatus
}
