// Package download_registry holds the client's authoritative view of download
// jobs. Every change goes through Dispatch, which applies the pure Reduce
// function under a mutex.
package download_registry

import (
	"sync"

	"github.com/isseis/go-ytdl-client/logger"
	"github.com/isseis/go-ytdl-client/ytdl_api"
)

// SnapshotSaver persists the full job list after every ReplaceAll.
type SnapshotSaver interface {
	Save(jobs []DownloadJob) error
}

// Logger is the subset of logger.Logger used by the registry.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Registry is the single mutable holder of a State.
// All methods are safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	state State
	gen   uint64

	saveMu    sync.Mutex
	savedGen  uint64
	saver     SnapshotSaver
	logger    Logger
	changes   chan struct{}
	dispatchN counter
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithSnapshotSaver sets where ReplaceAll snapshots are written.
func WithSnapshotSaver(s SnapshotSaver) RegistryOption {
	return func(r *Registry) {
		r.saver = s
	}
}

// WithLogger sets the logger for the registry.
func WithLogger(l Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = l
	}
}

// New creates a registry seeded with initial, typically the warm-start cache.
// Seeding does not trigger a snapshot save.
func New(initial []DownloadJob, options ...RegistryOption) *Registry {
	r := &Registry{
		state:   NewState(initial),
		changes: make(chan struct{}, 1),
		logger:  logger.NewDiscardLogger(),
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Dispatch applies a and returns the resulting state.
// It panics with UnknownActionError for an unknown action kind.
func (r *Registry) Dispatch(a Action) State {
	next, changed, gen := r.apply(a)
	r.dispatchN.Increment()
	if changed {
		r.notify()
	}
	if a.Kind == ActionReplaceAll {
		r.saveSnapshot(gen, next)
	}
	return next
}

func (r *Registry) apply(a Action) (State, bool, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next, changed := reduce(r.state, a)
	r.state = next
	r.gen++
	return next, changed, r.gen
}

// ReplaceAll discards the current contents in favour of jobs.
func (r *Registry) ReplaceAll(jobs []DownloadJob) State {
	return r.Dispatch(ReplaceAllAction(jobs))
}

// ApplyStatusUpdate merges patch into an existing job; unknown ids are ignored.
func (r *Registry) ApplyStatusUpdate(patch StatusPatch) State {
	return r.Dispatch(StatusUpdateAction(patch))
}

// ApplyDelete removes id when status is ytdl_api.StatusDeleted.
func (r *Registry) ApplyDelete(id MediaID, status ytdl_api.DownloadStatus) State {
	return r.Dispatch(DeleteAction(id, status))
}

// State returns the current state.
func (r *Registry) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// View returns the jobs in insertion order.
func (r *Registry) View() []DownloadJob {
	return r.State().Jobs()
}

// Get looks up a job by id.
func (r *Registry) Get(id MediaID) (DownloadJob, bool) {
	return r.State().Get(id)
}

// Len returns the number of jobs.
func (r *Registry) Len() int {
	return r.State().Len()
}

// Changes returns a channel that receives a value after the state changed.
// Notifications coalesce: a reader that falls behind sees one pending value.
func (r *Registry) Changes() <-chan struct{} {
	return r.changes
}

func (r *Registry) notify() {
	select {
	case r.changes <- struct{}{}:
	default:
	}
}

// saveSnapshot writes s unless a newer snapshot has been written already.
// It runs outside r.mu so slow storage never blocks readers or dispatchers.
func (r *Registry) saveSnapshot(gen uint64, s State) {
	if r.saver == nil {
		return
	}
	r.saveMu.Lock()
	defer r.saveMu.Unlock()
	if gen < r.savedGen {
		r.logger.Debug("Skipping stale snapshot", "generation", gen)
		return
	}
	if err := r.saver.Save(s.Jobs()); err != nil {
		r.logger.Warn("Failed to save download snapshot", "error", err, "jobs", s.Len())
		return
	}
	r.savedGen = gen
}
