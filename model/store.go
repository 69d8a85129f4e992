package model

import (
	"sort"
	"strings"
	"sync"
)

// Store is the node-resident metric store: a slash-delimited path-keyed
// mapping from a scope (e.g. "stat/cpu/cpu0", "node/bm/cpu") to a
// DictOfRingBuffers holding that scope's attributes. The store has no
// notion of the raw-input/assurance split itself — callers partition paths
// by convention ("stat/...", "meminfo/...", "net/..." for raw input;
// "node/..." for assurance) exactly as spec.md §4.D describes.
//
// A Store is safe for concurrent use: producers and the health engine may
// run their collection/refresh passes from separate goroutines within a
// tick (see spec.md §5).
type Store struct {
	mu       sync.RWMutex
	dicts    map[string]DictOfRingBuffers
	capacity int
}

// NewStore creates an empty store. capacity is the default ring-buffer
// capacity new scopes are created with.
func NewStore(capacity int) *Store {
	if capacity < 1 {
		capacity = 1
	}
	return &Store{
		dicts:    make(map[string]DictOfRingBuffers),
		capacity: capacity,
	}
}

// Capacity returns the store's default ring-buffer capacity.
func (s *Store) Capacity() int {
	return s.capacity
}

// Ensure returns the DictOfRingBuffers at path, creating it (and any
// attribute ring buffers named in names but not yet present) if necessary.
// descriptors supplies the per-attribute Metric used to size/type new ring
// buffers; an attribute absent from descriptors gets the universal default
// (int, non-counter, unitless) per spec.md §4.B.
func (s *Store) Ensure(path string, names []string, descriptors map[string]Metric) DictOfRingBuffers {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.dicts[path]
	if !ok {
		d = NewDictOfRingBuffers(names, s.capacity, descriptors)
		s.dicts[path] = d
		return d
	}
	for _, name := range names {
		if _, present := d[name]; present {
			continue
		}
		if m, hasDesc := descriptors[name]; hasDesc {
			d[name] = NewRingBuffer(name, s.capacity, m.Type, m.Unit, m.IsCounter, m.Thresholds)
		} else {
			d[name] = NewRingBuffer(name, s.capacity, TypeInt, "", false, Thresholds{})
		}
	}
	return d
}

// Get returns the dict at path. ok is false when the scope has never been
// ensured — this is spec.md's MissingScope, a non-error zero value, never
// a panic or an error return.
func (s *Store) Get(path string) (DictOfRingBuffers, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.dicts[path]
	return d, ok
}

// AppendTo appends value to the named attribute's ring buffer at path. ok
// is false if path or attr don't exist (MissingScope); err is non-nil only
// for a type coercion failure on an existing buffer.
func (s *Store) AppendTo(path, attr string, value interface{}) (ok bool, err error) {
	s.mu.RLock()
	d, present := s.dicts[path]
	s.mu.RUnlock()
	if !present {
		return false, nil
	}
	rb, present := d[attr]
	if !present {
		return false, nil
	}
	return true, rb.Append(value)
}

// DropSubtree removes path and every scope nested under it
// ("path/<anything>"). It returns the number of scopes removed. Used when a
// VM or kernel-bypass-net instance is reconciled away.
func (s *Store) DropSubtree(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	prefix := path + "/"
	for k := range s.dicts {
		if k == path || strings.HasPrefix(k, prefix) {
			delete(s.dicts, k)
			n++
		}
	}
	return n
}

// KeysUnder returns the immediate child path segments directly under
// prefix, e.g. KeysUnder("net/dev") might return []string{"eth0", "lo"} for
// scopes "net/dev/eth0" and "net/dev/lo". Order is sorted for determinism.
func (s *Store) KeysUnder(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := prefix + "/"
	seen := make(map[string]struct{})
	for k := range s.dicts {
		if !strings.HasPrefix(k, want) {
			continue
		}
		rest := k[len(want):]
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			rest = rest[:i]
		}
		if rest == "" {
			continue
		}
		seen[rest] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Paths returns every scope path currently in the store, sorted.
func (s *Store) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.dicts))
	for k := range s.dicts {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
