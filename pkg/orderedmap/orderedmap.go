// Package orderedmap provides a map that remembers the order its keys were first inserted in.
//
// The key index and the order sequence are only ever changed together, so Keys always
// returns exactly the key set of the map with no duplicates.
package orderedmap

// Map is an insertion ordered mapping. The zero value is not usable, use New.
type Map[K comparable, V any] struct {
	values map[K]V
	keys   []K
}

func New[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{
		values: make(map[K]V),
	}
}

// Set inserts or replaces the value for key. A new key is appended to the order, an existing
// key keeps its position.
func (m *Map[K, V]) Set(key K, val V) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = val
}

// Upsert inserts val when key is unseen, otherwise stores merge(existing, val). It returns
// true when the key was new.
func (m *Map[K, V]) Upsert(key K, val V, merge func(existing, newer V) V) bool {
	existing, ok := m.values[key]
	if !ok {
		m.keys = append(m.keys, key)
		m.values[key] = val
		return true
	}

	m.values[key] = merge(existing, val)
	return false
}

func (m *Map[K, V]) Get(key K) (V, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *Map[K, V]) Has(key K) bool {
	_, ok := m.values[key]
	return ok
}

// Delete removes key from both the index and the order. Deleting an absent key is a no-op.
// It returns true when something was removed.
func (m *Map[K, V]) Delete(key K) bool {
	if _, ok := m.values[key]; !ok {
		return false
	}

	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i:i], m.keys[i+1:]...)
			break
		}
	}

	return true
}

func (m *Map[K, V]) Len() int {
	return len(m.keys)
}

// Keys returns a copy of the keys in insertion order.
func (m *Map[K, V]) Keys() []K {
	keys := make([]K, len(m.keys))
	copy(keys, m.keys)
	return keys
}

// Values returns the values in insertion order.
func (m *Map[K, V]) Values() []V {
	vals := make([]V, 0, len(m.keys))
	for _, k := range m.keys {
		vals = append(vals, m.values[k])
	}
	return vals
}

// Range calls fn for every entry in insertion order until fn returns false.
func (m *Map[K, V]) Range(fn func(key K, val V) bool) {
	for _, k := range m.keys {
		if !fn(k, m.values[k]) {
			return
		}
	}
}

// Clone returns a shallow copy.
func (m *Map[K, V]) Clone() *Map[K, V] {
	c := &Map[K, V]{
		values: make(map[K]V, len(m.values)),
		keys:   m.Keys(),
	}
	for k, v := range m.values {
		c.values[k] = v
	}
	return c
}

// Reset removes every entry.
func (m *Map[K, V]) Reset() {
	m.values = make(map[K]V)
	m.keys = nil
}
