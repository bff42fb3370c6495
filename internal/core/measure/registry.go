package measure

import (
	"fmt"
	"iter"
	"sync"
	"weak"
)

// Handle identifies a registry slot. A handle goes stale once its measurer is
// removed, even if the slot is later reused.
type Handle struct {
	index uint32
	gen   uint32
}

// Valid reports whether h was ever issued by a registry.
func (h Handle) Valid() bool { return h.gen != 0 }

func (h Handle) String() string {
	return fmt.Sprintf("#%d.%d", h.index, h.gen)
}

type slot struct {
	// key is the identity used for deduplication: the Measurer itself for
	// strong members, a weak.Pointer for weak ones.
	key     any
	strong  Measurer
	resolve func() Measurer
	gen     uint32
	live    bool
}

func (s *slot) measurer() Measurer {
	if s.resolve != nil {
		return s.resolve()
	}
	return s.strong
}

// Registry is the set of measurers notified by a Broadcaster.
//
// Membership is identity based and never duplicated. All methods are safe for
// concurrent use and may be called from inside a measurer callback. Removing a
// measurer during a pass never causes another member to be skipped or visited
// twice; measurers added during a pass are first visited by the next pass.
type Registry struct {
	mu    sync.Mutex
	slots []slot
	index map[any]uint32
	free  []uint32
	// slots released while a pass is running; recycled when the last pass ends
	pending   []uint32
	passes    int
	count     int
	weakCount int
}

func NewRegistry() *Registry {
	return &Registry{
		index: make(map[any]uint32),
	}
}

// Add registers m and returns its handle. Adding a measurer that is already
// registered returns the existing handle and changes nothing. A nil measurer
// is ignored and yields the zero Handle.
func (r *Registry) Add(m Measurer) Handle {
	if m == nil {
		return Handle{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx, ok := r.findLocked(m); ok {
		return r.handleLocked(idx)
	}
	return r.insertLocked(slot{key: m, strong: m})
}

// AddWeak registers p without keeping it alive. Once p is garbage collected
// its slot is dropped by the next pass or Prune.
//
// Adding a measurer that is already registered, strongly or weakly, returns
// the existing handle.
func AddWeak[T any, P interface {
	*T
	Measurer
}](r *Registry, p P) Handle {
	if p == nil {
		return Handle{}
	}
	wp := weak.Make((*T)(p))
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx, ok := r.index[wp]; ok {
		return r.handleLocked(idx)
	}
	if idx, ok := r.index[Measurer(p)]; ok {
		return r.handleLocked(idx)
	}
	return r.insertLocked(slot{
		key: wp,
		resolve: func() Measurer {
			if v := wp.Value(); v != nil {
				return P(v)
			}
			return nil
		},
	})
}

// RemoveWeak unregisters a measurer added with AddWeak. Absent measurers are ignored.
func RemoveWeak[T any, P interface {
	*T
	Measurer
}](r *Registry, p P) {
	if p == nil {
		return
	}
	r.removeKey(weak.Make((*T)(p)))
}

// Remove unregisters m whether it was added with Add or AddWeak. Removing a
// measurer that is not registered is a no-op.
func (r *Registry) Remove(m Measurer) {
	if m == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx, ok := r.findLocked(m); ok {
		r.releaseLocked(idx)
	}
}

// RemoveHandle unregisters the measurer behind h. It returns false for stale
// or unknown handles.
func (r *Registry) RemoveHandle(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !h.Valid() || int(h.index) >= len(r.slots) {
		return false
	}
	s := &r.slots[h.index]
	if !s.live || s.gen != h.gen {
		return false
	}
	r.releaseLocked(h.index)
	return true
}

// Contains reports whether m is registered.
func (r *Registry) Contains(m Measurer) bool {
	if m == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.findLocked(m)
	return ok
}

// Lookup returns the handle m was registered under.
func (r *Registry) Lookup(m Measurer) (Handle, bool) {
	if m == nil {
		return Handle{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, ok := r.findLocked(m)
	if !ok {
		return Handle{}, false
	}
	return r.handleLocked(idx), true
}

// Len returns the number of registered measurers. Weak members that were
// collected but not yet pruned are still counted.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Prune drops weak members whose measurer has been collected and returns how
// many were dropped.
func (r *Registry) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	pruned := 0
	for i := range r.slots {
		s := &r.slots[i]
		if s.live && s.resolve != nil && s.resolve() == nil {
			r.releaseLocked(uint32(i))
			pruned++
		}
	}
	return pruned
}

// All iterates over the measurers registered when iteration starts. The lock
// is not held while the loop body runs, so the body may add or remove
// measurers freely.
func (r *Registry) All() iter.Seq2[Handle, Measurer] {
	return func(yield func(Handle, Measurer) bool) {
		n := r.beginPass()
		defer r.endPass()
		for i := 0; i < n; i++ {
			h, m, ok := r.at(uint32(i))
			if !ok {
				continue
			}
			if !yield(h, m) {
				return
			}
		}
	}
}

func (r *Registry) beginPass() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.passes++
	return len(r.slots)
}

func (r *Registry) endPass() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.passes--
	if r.passes == 0 && len(r.pending) > 0 {
		r.free = append(r.free, r.pending...)
		r.pending = r.pending[:0]
	}
}

func (r *Registry) at(idx uint32) (Handle, Measurer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := &r.slots[idx]
	if !s.live {
		return Handle{}, nil, false
	}
	m := s.measurer()
	if m == nil {
		r.releaseLocked(idx)
		return Handle{}, nil, false
	}
	return Handle{index: idx, gen: s.gen}, m, true
}

func (r *Registry) removeKey(key any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx, ok := r.index[key]; ok {
		r.releaseLocked(idx)
	}
}

// findLocked locates m by its strong key, then among live weak slots.
func (r *Registry) findLocked(m Measurer) (uint32, bool) {
	if idx, ok := r.index[m]; ok {
		return idx, true
	}
	if r.weakCount == 0 {
		return 0, false
	}
	for i := range r.slots {
		s := &r.slots[i]
		if s.live && s.resolve != nil && s.resolve() == m {
			return uint32(i), true
		}
	}
	return 0, false
}

func (r *Registry) handleLocked(idx uint32) Handle {
	return Handle{index: idx, gen: r.slots[idx].gen}
}

func (r *Registry) insertLocked(s slot) Handle {
	var idx uint32
	// a running pass may still have to visit any slot below its snapshot
	// length, so inserts during a pass always append
	if n := len(r.free); n > 0 && r.passes == 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
		s.gen = r.slots[idx].gen
	} else {
		idx = uint32(len(r.slots))
		r.slots = append(r.slots, slot{gen: 1})
		s.gen = 1
	}
	s.live = true
	r.slots[idx] = s
	r.index[s.key] = idx
	r.count++
	if s.resolve != nil {
		r.weakCount++
	}
	return Handle{index: idx, gen: s.gen}
}

func (r *Registry) releaseLocked(idx uint32) {
	s := &r.slots[idx]
	delete(r.index, s.key)
	if s.resolve != nil {
		r.weakCount--
	}
	gen := s.gen + 1
	if gen == 0 {
		gen = 1
	}
	*s = slot{gen: gen}
	r.count--
	if r.passes > 0 {
		r.pending = append(r.pending, idx)
	} else {
		r.free = append(r.free, idx)
	}
}
