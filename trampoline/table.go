package trampoline

import (
	"sync"
)

// Table tracks callbacks whose native function pointers have been
// handed to foreign code.
//
// The platform never recycles trampoline slots, so a pointer given out
// once stays callable for the life of the process. Entries are
// therefore tombstoned rather than removed: Invalidate marks a
// registration dead and releases the managed target, but the handle
// stays resolvable through Info so a stale pointer can still be
// diagnosed by name instead of as an anonymous fault.
type Table struct {
	entries   []entry
	observers []Observer
	live      int
	mu        sync.RWMutex
	obsMu     sync.RWMutex
	closed    bool
}

type entry struct {
	target any
	name   string
	ptr    uintptr
	dead   bool
}

// NewTable creates an empty callback table.
func NewTable() *Table {
	return &Table{
		entries: make([]entry, 0, 16),
	}
}

// Register records a live callback and returns its handle.
// Returns 0 after Close.
func (t *Table) Register(name string, ptr uintptr, target any) Handle {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0
	}
	t.entries = append(t.entries, entry{
		target: target,
		name:   name,
		ptr:    ptr,
	})
	t.live++
	handle := Handle(len(t.entries))
	t.mu.Unlock()

	t.notify(Event{
		Type:   EventRegistered,
		Handle: handle,
		Name:   name,
		Ptr:    ptr,
		Target: target,
	})

	return handle
}

// Live reports whether the registration may still be invoked.
func (t *Table) Live(handle Handle) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e := t.at(handle)
	return e != nil && !e.dead
}

// Target returns the managed target of a live registration.
func (t *Table) Target(handle Handle) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e := t.at(handle)
	if e == nil || e.dead {
		return nil, false
	}
	return e.target, true
}

// Info returns a snapshot of a registration, dead or alive. The second
// return is false only for handles this table never issued.
func (t *Table) Info(handle Handle) (Registration, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e := t.at(handle)
	if e == nil {
		return Registration{}, false
	}
	return Registration{Name: e.name, Ptr: e.ptr, Live: !e.dead}, true
}

// Invalidate marks a registration dead and drops its target reference.
// The native pointer stays callable; what ends is the table's promise
// that invoking it is sound. Reports whether the handle was live.
func (t *Table) Invalidate(handle Handle) bool {
	t.mu.Lock()
	e := t.at(handle)
	if e == nil || e.dead {
		t.mu.Unlock()
		return false
	}
	e.dead = true
	e.target = nil
	t.live--
	name, ptr := e.name, e.ptr
	t.mu.Unlock()

	t.notify(Event{
		Type:   EventInvalidated,
		Handle: handle,
		Name:   name,
		Ptr:    ptr,
	})

	return true
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Len returns the number of live registrations.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.live
}

// Each calls fn for every live registration until fn returns false.
func (t *Table) Each(fn func(Handle, Registration) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for i := range t.entries {
		e := &t.entries[i]
		if e.dead {
			continue
		}
		if !fn(Handle(i+1), Registration{Name: e.name, Ptr: e.ptr, Live: true}) {
			break
		}
	}
}

// InvalidateAll marks every live registration dead.
func (t *Table) InvalidateAll() {
	// Collect handles first to avoid holding the lock during Invalidate
	var handles []Handle
	t.Each(func(h Handle, _ Registration) bool {
		handles = append(handles, h)
		return true
	})
	for _, h := range handles {
		t.Invalidate(h)
	}
}

// Close invalidates all registrations and stops accepting new ones.
// Existing handles stay resolvable through Info.
func (t *Table) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	t.InvalidateAll()
	return nil
}

// at returns the entry for handle, or nil. Caller holds t.mu.
func (t *Table) at(handle Handle) *entry {
	if handle == 0 || int(handle) > len(t.entries) {
		return nil
	}
	return &t.entries[handle-1]
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnCallbackEvent(e)
	}
}
