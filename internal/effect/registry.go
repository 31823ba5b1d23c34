package effect

import (
	"sort"
	"sync"

	"github.com/roach88/uniflow/internal/ir"
)

// RetirePolicy decides what happens to a running effect displaced from the
// registry by a new effect with the same identity.
type RetirePolicy int

const (
	// RetireKeep lets the displaced effect run to completion and deliver.
	// It stays reachable by CancelByType and Stop. Immediate disposal could
	// race with a delivery the old effect already has in flight.
	RetireKeep RetirePolicy = iota
	// RetireCancel cancels the displaced effect immediately.
	RetireCancel
)

func (p RetirePolicy) String() string {
	switch p {
	case RetireKeep:
		return "keep"
	case RetireCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// registry is the two-level index command type -> value key -> effect.
//
// Thread-safety: every method takes mu. Registry reads and writes come from
// the submitting goroutine and from effect goroutines finishing on their own.
type registry struct {
	mu      sync.Mutex
	slots   map[string]map[string]*runningEffect
	retired map[*runningEffect]struct{}
	closed  bool

	// tasks counts effect goroutines. Add happens under mu so that close
	// followed by Wait observes every accepted effect.
	tasks sync.WaitGroup
}

func newRegistry() *registry {
	return &registry{
		slots:   make(map[string]map[string]*runningEffect),
		retired: make(map[*runningEffect]struct{}),
	}
}

// save registers e under its identity. A still-running occupant with the
// same identity is returned as displaced and, under RetireKeep, moved to the
// retired set. Returns ok=false if the registry is closed.
func (r *registry) save(e *runningEffect, policy RetirePolicy) (displaced *runningEffect, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, false
	}
	displaced = r.put(e, policy)
	r.tasks.Add(1)
	return displaced, true
}

// supersede cancels every running effect of e's type, then registers e.
// Both steps happen under one lock acquisition so two switch effects of the
// same type are never registered as running at the same time.
func (r *registry) supersede(e *runningEffect) (cancelled []*runningEffect, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, false
	}
	cancelled = r.cancelTypeLocked(e.identity.Type)
	r.put(e, RetireCancel)
	r.tasks.Add(1)
	return cancelled, true
}

func (r *registry) put(e *runningEffect, policy RetirePolicy) (displaced *runningEffect) {
	slot := r.slots[e.identity.Type]
	if slot == nil {
		slot = make(map[string]*runningEffect)
		r.slots[e.identity.Type] = slot
	}
	if old, exists := slot[e.identity.Key]; exists && old.IsRunning() {
		displaced = old
		switch policy {
		case RetireCancel:
			old.tryCancel()
		default:
			r.retired[old] = struct{}{}
		}
	}
	slot[e.identity.Key] = e
	return displaced
}

// finish completes e and removes it from the registry. Returns true if e
// completed normally and its result may be delivered.
func (r *registry) finish(e *runningEffect) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ok := e.complete()
	r.removeLocked(e)
	return ok
}

func (r *registry) removeLocked(e *runningEffect) {
	delete(r.retired, e)
	slot := r.slots[e.identity.Type]
	if slot == nil {
		return
	}
	if slot[e.identity.Key] == e {
		delete(slot, e.identity.Key)
	}
	if len(slot) == 0 {
		delete(r.slots, e.identity.Type)
	}
}

// cancel cancels every effect with the given identity, the registered one
// and any retired ones it displaced. Returns false if none was running.
func (r *registry) cancel(id ir.Identity) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cancelled := false
	if e, ok := r.slots[id.Type][id.Key]; ok {
		r.removeLocked(e)
		cancelled = e.tryCancel()
	}
	for e := range r.retired {
		if e.identity != id {
			continue
		}
		delete(r.retired, e)
		if e.tryCancel() {
			cancelled = true
		}
	}
	return cancelled
}

// cancelType cancels every running effect of type t, retired ones included.
func (r *registry) cancelType(t string) []*runningEffect {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelTypeLocked(t)
}

func (r *registry) cancelTypeLocked(t string) []*runningEffect {
	var cancelled []*runningEffect
	for _, e := range r.slots[t] {
		if e.tryCancel() {
			cancelled = append(cancelled, e)
		}
	}
	delete(r.slots, t)
	for e := range r.retired {
		if e.identity.Type != t {
			continue
		}
		delete(r.retired, e)
		if e.tryCancel() {
			cancelled = append(cancelled, e)
		}
	}
	sortByEpoch(cancelled)
	return cancelled
}

// lookup returns the running effect registered under id.
// Entries that are registered but no longer running are never returned.
func (r *registry) lookup(id ir.Identity) (*runningEffect, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.slots[id.Type][id.Key]
	if !ok || !e.IsRunning() {
		return nil, false
	}
	return e, true
}

// running returns the running effects of type t (all types if t is empty),
// retired ones included, ordered by epoch.
func (r *registry) running(t string) []*runningEffect {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*runningEffect
	for typ, slot := range r.slots {
		if t != "" && typ != t {
			continue
		}
		for _, e := range slot {
			if e.IsRunning() {
				out = append(out, e)
			}
		}
	}
	for e := range r.retired {
		if (t == "" || e.identity.Type == t) && e.IsRunning() {
			out = append(out, e)
		}
	}
	sortByEpoch(out)
	return out
}

// close marks the registry closed and returns every registered effect.
// After close, save and supersede reject new effects.
func (r *registry) close() []*runningEffect {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	var all []*runningEffect
	for _, slot := range r.slots {
		for _, e := range slot {
			all = append(all, e)
		}
	}
	for e := range r.retired {
		all = append(all, e)
	}
	r.slots = make(map[string]map[string]*runningEffect)
	r.retired = make(map[*runningEffect]struct{})
	sortByEpoch(all)
	return all
}

func sortByEpoch(effects []*runningEffect) {
	sort.Slice(effects, func(i, j int) bool { return effects[i].epoch < effects[j].epoch })
}
