// Package orderedmap implements a generic map that iterates in insertion
// order. The Globals registry (prelude symbols, instance-method dispatch
// tables, struct fields) uses it for deterministic iteration, for
// byte-identical IR on repeated compilation (spec.md §8 property 4), without
// paying for a name sort on every access.
package orderedmap

// Pair is a key-value pair stored in the map, in the position it was first
// inserted.
type Pair[K comparable, V any] struct {
	Key   K
	Value V
}

// Map is an insertion-ordered map. The field layout keeps Pairs exported and
// the lookup index unexported so that gob-encoding a Map (see
// globals/cache.go) only ever serializes the ordered pairs; Rehydrate rebuilds
// the index after such a decode.
type Map[K comparable, V any] struct {
	// Pairs holds entries in insertion order. Treat as read-only outside of
	// Store; exported so callers can range over it directly and so gob can
	// serialize it without a custom codec.
	Pairs []*Pair[K, V]
	index map[K]*Pair[K, V]
}

// New creates an empty ordered map.
func New[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{index: make(map[K]*Pair[K, V])}
}

// Get returns the value for key and whether it was present.
func (m *Map[K, V]) Get(key K) (V, bool) {
	m.Rehydrate()
	if p, ok := m.index[key]; ok {
		return p.Value, true
	}
	var zero V
	return zero, false
}

// Store inserts or overwrites the value for key, preserving its original
// position if it already existed.
func (m *Map[K, V]) Store(key K, value V) {
	m.Rehydrate()
	if p, ok := m.index[key]; ok {
		p.Value = value
		return
	}
	p := &Pair[K, V]{Key: key, Value: value}
	m.Pairs = append(m.Pairs, p)
	m.index[key] = p
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int { return len(m.Pairs) }

// Rehydrate rebuilds the lookup index from Pairs. Required after a gob decode
// since the index field is unexported and therefore not serialized.
func (m *Map[K, V]) Rehydrate() {
	if m.index != nil && len(m.Pairs) == len(m.index) {
		return
	}
	m.index = make(map[K]*Pair[K, V], len(m.Pairs))
	for _, p := range m.Pairs {
		m.index[p.Key] = p
	}
}
