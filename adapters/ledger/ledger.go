// Package ledger implements the file-backed port ledger: a persistent map of
// cluster name to the host ports assigned to it.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/clustermaster/clustermaster/domain/model"
	"github.com/clustermaster/clustermaster/internal/logging"
)

// SchemaVersion is written to every ledger file.
const SchemaVersion = 1

// Prober reports whether a host port is currently free.
type Prober func(ctx context.Context, port int) bool

// TCPProber treats a port as free when a TCP connect to host:port fails.
func TCPProber(host string, timeout time.Duration) Prober {
	return func(ctx context.Context, port int) bool {
		d := net.Dialer{Timeout: timeout}
		conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
		if err != nil {
			return true
		}
		_ = conn.Close()
		return false
	}
}

// Ledger is a model.PortLedger persisted as a single JSON file. Every mutation
// rewrites the whole file through a temp file and rename. An optional
// advisory file lock serializes writers across processes.
type Ledger struct {
	path     string
	fileLock bool
	probe    Prober
	bases    map[model.PortRole]int
	mu       sync.Mutex
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithFileLock enables the advisory lock on "<path>.lock".
func WithFileLock(enabled bool) Option { return func(l *Ledger) { l.fileLock = enabled } }

// WithProber replaces the live TCP probe.
func WithProber(p Prober) Option { return func(l *Ledger) { l.probe = p } }

// WithRoleBases overrides the role base ports.
func WithRoleBases(bases map[model.PortRole]int) Option {
	return func(l *Ledger) { l.bases = bases }
}

// Open returns a ledger backed by path. The file is created on first write.
func Open(path string, opts ...Option) (*Ledger, error) {
	if path == "" {
		return nil, errors.New("ledger path is empty")
	}
	l := &Ledger{
		path:  path,
		probe: TCPProber("127.0.0.1", 500*time.Millisecond),
		bases: model.PortRoleBases,
	}
	for _, o := range opts {
		o(l)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	return l, nil
}

// Path returns the backing file path.
func (l *Ledger) Path() string { return l.path }

// Assign returns the assignment of name, allocating the lowest free slot when absent.
func (l *Ledger) Assign(ctx context.Context, name string) (model.PortAssignment, error) {
	if name == "" {
		return nil, model.ErrClusterInvalid
	}
	var out model.PortAssignment
	err := l.update(func(m map[string]model.PortAssignment) (bool, error) {
		if a, ok := m[name]; ok {
			out = a.Clone()
			return false, nil
		}
		a, err := l.scan(ctx, m)
		if err != nil {
			return false, err
		}
		m[name] = a
		out = a.Clone()
		logging.FromContext(ctx).Info(ctx, "ports assigned", "cluster", name, "ports", a)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Release drops the assignment of name. Releasing an unknown name returns false.
func (l *Ledger) Release(ctx context.Context, name string) (bool, error) {
	removed := false
	err := l.update(func(m map[string]model.PortAssignment) (bool, error) {
		if _, ok := m[name]; !ok {
			return false, nil
		}
		delete(m, name)
		removed = true
		return true, nil
	})
	if removed {
		logging.FromContext(ctx).Info(ctx, "ports released", "cluster", name)
	}
	return removed, err
}

// Get returns the assignment of name.
func (l *Ledger) Get(_ context.Context, name string) (model.PortAssignment, bool, error) {
	m, err := l.snapshot()
	if err != nil {
		return nil, false, err
	}
	a, ok := m[name]
	return a, ok, nil
}

// List returns every assignment.
func (l *Ledger) List(_ context.Context) (map[string]model.PortAssignment, error) {
	return l.snapshot()
}

// Prune removes assignments whose cluster keep rejects and returns the removed names.
func (l *Ledger) Prune(ctx context.Context, keep func(name string) bool) ([]string, error) {
	var removed []string
	err := l.update(func(m map[string]model.PortAssignment) (bool, error) {
		for name := range m {
			if !keep(name) {
				delete(m, name)
				removed = append(removed, name)
			}
		}
		return len(removed) > 0, nil
	})
	sort.Strings(removed)
	if len(removed) > 0 {
		logging.FromContext(ctx).Info(ctx, "ledger pruned", "clusters", removed)
	}
	return removed, err
}

// scan walks candidate slots upward and returns the first one whose ports are
// neither assigned nor bound on the host.
func (l *Ledger) scan(ctx context.Context, m map[string]model.PortAssignment) (model.PortAssignment, error) {
	used := map[int]bool{}
	for _, a := range m {
		for _, p := range a {
			used[p] = true
		}
	}
	roles := make([]model.PortRole, 0, len(l.bases))
	for r := range l.bases {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })

	for slot := 0; ; slot++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cand := make(model.PortAssignment, len(roles))
		for _, r := range roles {
			p := l.bases[r] + slot*model.PortIncrement
			if p > model.PortCeiling {
				return nil, fmt.Errorf("%w: slot %d exceeds %d", model.ErrResourceExhausted, slot, model.PortCeiling)
			}
			cand[r] = p
		}
		if l.available(ctx, cand, used) {
			return cand, nil
		}
	}
}

func (l *Ledger) available(ctx context.Context, cand model.PortAssignment, used map[int]bool) bool {
	for _, p := range cand {
		if used[p] {
			return false
		}
	}
	for _, p := range cand {
		if !l.probe(ctx, p) {
			return false
		}
	}
	return true
}

// update runs fn on the current contents under both locks and persists when fn reports a change.
func (l *Ledger) update(fn func(map[string]model.PortAssignment) (bool, error)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	unlock, err := l.lockFile()
	if err != nil {
		return err
	}
	defer unlock()

	m, err := l.load()
	if err != nil {
		return err
	}
	changed, err := fn(m)
	if err != nil || !changed {
		return err
	}
	return l.save(m)
}

func (l *Ledger) snapshot() (map[string]model.PortAssignment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	unlock, err := l.lockFile()
	if err != nil {
		return nil, err
	}
	defer unlock()
	return l.load()
}

func (l *Ledger) lockFile() (func(), error) {
	if !l.fileLock {
		return func() {}, nil
	}
	return acquireFileLock(l.path + ".lock")
}

type fileFormat struct {
	SchemaVersion int                             `json:"schema_version"`
	Assignments   map[string]model.PortAssignment `json:"assignments"`
}

// load reads the ledger. Files without schema_version are the legacy flat
// {cluster: {role: port}} layout.
func (l *Ledger) load() (map[string]model.PortAssignment, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]model.PortAssignment{}, nil
		}
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	if len(data) == 0 {
		return map[string]model.PortAssignment{}, nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parse ledger %s: %w", l.path, err)
	}
	if _, ok := probe["schema_version"]; !ok {
		legacy := map[string]model.PortAssignment{}
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, fmt.Errorf("parse legacy ledger %s: %w", l.path, err)
		}
		return legacy, nil
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse ledger %s: %w", l.path, err)
	}
	if f.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("ledger %s has schema version %d, newer than supported %d", l.path, f.SchemaVersion, SchemaVersion)
	}
	if f.Assignments == nil {
		f.Assignments = map[string]model.PortAssignment{}
	}
	return f.Assignments, nil
}

func (l *Ledger) save(m map[string]model.PortAssignment) error {
	data, err := json.MarshalIndent(fileFormat{SchemaVersion: SchemaVersion, Assignments: m}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	dir := filepath.Dir(l.path)
	tmp, err := os.CreateTemp(dir, ".ledger-*.tmp")
	if err != nil {
		return fmt.Errorf("create ledger temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write ledger temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync ledger temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close ledger temp file: %w", err)
	}
	if err := os.Rename(tmpPath, l.path); err != nil {
		cleanup()
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

var _ model.PortLedger = (*Ledger)(nil)
