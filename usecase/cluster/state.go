package cluster

import (
	"context"
	"errors"
	"sync"

	"github.com/clustermaster/clustermaster/domain/model"
)

// stateTable tracks the scale state of clusters seen by this process.
// It starts empty and is not persisted.
type stateTable struct {
	mu     sync.RWMutex
	states map[string]model.ScaleState
}

func newStateTable() *stateTable {
	return &stateTable{states: map[string]model.ScaleState{}}
}

func (t *stateTable) get(name string) (model.ScaleState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.states[name]
	return s, ok
}

func (t *stateTable) set(name string, s model.ScaleState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s == model.ScaleStateAbsent {
		delete(t.states, name)
		return
	}
	t.states[name] = s
}

// StateInput names the cluster whose state is read.
type StateInput struct {
	Name string `json:"name"`
}

// StateOutput reports the scale state of a cluster.
type StateOutput struct {
	Name  string           `json:"name"`
	State model.ScaleState `json:"state"`
}

// State returns the recorded scale state. Clusters without a record are
// ready when a provider lists them and absent otherwise.
func (u *UseCase) State(ctx context.Context, in *StateInput) (*StateOutput, error) {
	if in == nil || in.Name == "" {
		return nil, model.ErrClusterInvalid
	}
	u.init()
	if s, ok := u.states.get(in.Name); ok {
		return &StateOutput{Name: in.Name, State: s}, nil
	}
	_, err := u.ClusterPort.Resolve(ctx, in.Name)
	switch {
	case err == nil:
		return &StateOutput{Name: in.Name, State: model.ScaleStateReady}, nil
	case errors.Is(err, model.ErrProviderAmbiguous):
		return &StateOutput{Name: in.Name, State: model.ScaleStateAbsent}, nil
	default:
		return nil, err
	}
}
