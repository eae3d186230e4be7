package model

import (
	"context"
	"sort"
)

// PortRole names a logical host port kind allocated per cluster.
type PortRole string

const (
	PortRolePrometheus PortRole = "prometheus"
	PortRoleGrafana    PortRole = "grafana"
)

// PortRoleBases holds the first candidate port of each role. Candidate slot i
// yields base+i*PortIncrement for every role.
var PortRoleBases = map[PortRole]int{
	PortRolePrometheus: 30090,
	PortRoleGrafana:    30030,
}

const (
	// PortIncrement is the distance between consecutive candidate slots.
	PortIncrement = 10
	// PortCeiling is the highest NodePort value.
	PortCeiling = 32767
)

// PortAssignment maps each role to a concrete host port.
type PortAssignment map[PortRole]int

// Clone returns a copy of the assignment.
func (a PortAssignment) Clone() PortAssignment {
	if a == nil {
		return nil
	}
	out := make(PortAssignment, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Values returns the concrete ports in ascending order.
func (a PortAssignment) Values() []int {
	out := make([]int, 0, len(a))
	for _, v := range a {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// PortLedger is the persistent mapping of cluster name to assigned ports.
type PortLedger interface {
	// Assign returns the existing assignment of name or allocates a new one.
	Assign(ctx context.Context, name string) (PortAssignment, error)
	// Release removes the assignment and reports whether one existed.
	Release(ctx context.Context, name string) (bool, error)
	Get(ctx context.Context, name string) (PortAssignment, bool, error)
	List(ctx context.Context) (map[string]PortAssignment, error)
	// Prune removes every assignment keep rejects and returns the removed names.
	Prune(ctx context.Context, keep func(name string) bool) ([]string, error)
}
