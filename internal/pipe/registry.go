//go:build unix

package pipe

import (
	"sort"
	"sync"
	"time"

	"github.com/GriffinCanCode/ipckit/internal/shared/id"
)

// entry records the child bound to one open stream.
type entry struct {
	pid       int
	command   string
	direction Direction
	openedAt  time.Time
}

// Registry is the process-wide table pairing each open stream with the child
// that must be reaped when it closes. All mutation is mutually exclusive;
// the backing map is created lazily on first insert and never shrinks.
type Registry struct {
	mu      sync.Mutex
	entries map[id.StreamID]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// reserve claims a slot for sid, failing with ErrTooManyStreams when the
// registry already holds max entries (max <= 0 means unlimited). The check
// and the insert share one critical section, so concurrent reservations
// can never overshoot the cap.
func (r *Registry) reserve(sid id.StreamID, e entry, max int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if max > 0 && len(r.entries) >= max {
		return ErrTooManyStreams
	}
	if r.entries == nil {
		r.entries = make(map[id.StreamID]entry)
	}
	r.entries[sid] = e
	return nil
}

// bind records the pid of the child that ended up backing a reserved slot.
func (r *Registry) bind(sid id.StreamID, pid int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[sid]; ok {
		e.pid = pid
		r.entries[sid] = e
	}
}

// remove deletes and returns the entry for sid. A missing entry means the
// stream was never opened here or was already closed.
func (r *Registry) remove(sid id.StreamID) (entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[sid]
	if ok {
		delete(r.entries, sid)
	}
	return e, ok
}

// Len reports the number of currently open, unclosed streams.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.entries)
}

// Snapshot returns a consistent view of all open streams, oldest first.
func (r *Registry) Snapshot() []StreamInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]StreamInfo, 0, len(r.entries))
	for sid, e := range r.entries {
		infos = append(infos, StreamInfo{
			ID:        sid,
			Pid:       e.pid,
			Command:   e.command,
			Direction: e.direction.String(),
			OpenedAt:  e.openedAt,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}
