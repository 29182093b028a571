package repl

import (
	"fmt"
	"sync"
	"time"
)

type evaluationEntry struct {
	segmentID string
	created   time.Time
}

type serviceEntry struct {
	callback ServiceCallback
	created  time.Time
}

// registry holds the two correlation tables. An id lives in at most one of them.
// Entries leave only through the dispatcher (terminal status or expiry) or a failed send.
type registry struct {
	mu          sync.RWMutex
	evaluations map[string]evaluationEntry
	services    map[string]serviceEntry
}

func newRegistry() *registry {
	return &registry{
		evaluations: make(map[string]evaluationEntry),
		services:    make(map[string]serviceEntry),
	}
}

func (r *registry) registerEvaluation(id, segmentID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.containsLocked(id) {
		return fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	r.evaluations[id] = evaluationEntry{segmentID: segmentID, created: now}
	return nil
}

func (r *registry) registerService(id string, callback ServiceCallback, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.containsLocked(id) {
		return fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	r.services[id] = serviceEntry{callback: callback, created: now}
	return nil
}

func (r *registry) lookupEvaluation(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.evaluations[id]
	return e.segmentID, ok
}

func (r *registry) lookupService(id string) (ServiceCallback, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.services[id]
	return e.callback, ok
}

func (r *registry) removeEvaluation(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.evaluations[id]
	delete(r.evaluations, id)
	return ok
}

func (r *registry) removeService(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.services[id]
	delete(r.services, id)
	return ok
}

func (r *registry) contains(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.containsLocked(id)
}

func (r *registry) containsLocked(id string) bool {
	_, e := r.evaluations[id]
	_, s := r.services[id]
	return e || s
}

func (r *registry) counts() (evaluations, services int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.evaluations), len(r.services)
}

type expiredEntry struct {
	id        string
	segmentID string // empty for service requests
	age       time.Duration
}

// expire removes every entry registered before now-ttl.
func (r *registry) expire(now time.Time, ttl time.Duration) []expiredEntry {
	cutoff := now.Add(-ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	var out []expiredEntry
	for id, e := range r.evaluations {
		if e.created.Before(cutoff) {
			out = append(out, expiredEntry{id: id, segmentID: e.segmentID, age: now.Sub(e.created)})
			delete(r.evaluations, id)
		}
	}
	for id, e := range r.services {
		if e.created.Before(cutoff) {
			out = append(out, expiredEntry{id: id, age: now.Sub(e.created)})
			delete(r.services, id)
		}
	}
	return out
}
