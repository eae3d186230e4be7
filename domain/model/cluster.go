package model

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/util/validation"
)

// Provider identifies the local Kubernetes tool that owns a cluster.
type Provider string

const (
	ProviderKind Provider = "kind"
	ProviderK3d  Provider = "k3d"
)

// Providers lists supported providers in resolution order.
var Providers = []Provider{ProviderK3d, ProviderKind}

// ParseProvider validates a provider string.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderKind, ProviderK3d:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrProviderInvalid, s)
	}
}

func (p Provider) String() string { return string(p) }

// ClusterRef is the provider-qualified identity of a cluster.
// It is derived on demand and never persisted on its own.
type ClusterRef struct {
	Name     string   `json:"name"`
	Provider Provider `json:"provider"`
}

// Context returns the kube context name "{provider}-{name}" used for every
// provider-scoped kubectl/helm call.
func (r ClusterRef) Context() string {
	return string(r.Provider) + "-" + r.Name
}

// ValidateClusterName checks that name is usable as a cluster name on both providers.
func ValidateClusterName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", ErrClusterInvalid)
	}
	if errs := validation.IsDNS1123Label(name); len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrClusterInvalid, strings.Join(errs, "; "))
	}
	return nil
}

// NodeRole is the role of a node inside a cluster.
type NodeRole string

const (
	NodeRoleControlPlane NodeRole = "control-plane"
	NodeRoleWorker       NodeRole = "worker"
	NodeRoleServer       NodeRole = "server"
	NodeRoleAgent        NodeRole = "agent"
	NodeRoleLoadBalancer NodeRole = "loadbalancer"
	NodeRoleUnknown      NodeRole = "unknown"
)

// Node describes a single cluster node as reported by the provider tool.
type Node struct {
	Name    string   `json:"name"`
	Role    NodeRole `json:"role"`
	Status  string   `json:"status,omitempty"`
	Created string   `json:"created,omitempty"`
}

// IsWorker reports whether the node carries workloads (kind worker or k3d agent).
func (n Node) IsWorker() bool {
	return n.Role == NodeRoleWorker || n.Role == NodeRoleAgent
}

// IsControlPlane reports whether the node runs the control plane.
func (n Node) IsControlPlane() bool {
	return n.Role == NodeRoleControlPlane || n.Role == NodeRoleServer
}

// ScaleState tracks the scaling lifecycle of a cluster.
//
//	absent --create--> ready --scale--> scaling --ok--> ready
//	                                    scaling --fail--> scale_failed
type ScaleState string

const (
	ScaleStateAbsent      ScaleState = "absent"
	ScaleStateReady       ScaleState = "ready"
	ScaleStateScaling     ScaleState = "scaling"
	ScaleStateScaled      ScaleState = "scaled"
	ScaleStateScaleFailed ScaleState = "scale_failed"
)

// ClusterSummary is the fast list view of a cluster.
type ClusterSummary struct {
	ClusterRef
	Context string         `json:"context"`
	Ports   PortAssignment `json:"ports,omitempty"`
}

// ClusterDetail is the full view of a cluster including its nodes.
type ClusterDetail struct {
	ClusterSummary
	Nodes     []Node     `json:"nodes"`
	NodeCount int        `json:"node_count"`
	State     ScaleState `json:"state"`
	Error     string     `json:"error,omitempty"`
}
