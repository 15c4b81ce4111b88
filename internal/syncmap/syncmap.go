// Package syncmap provides a small generic thread-safe map, used by the
// discovery service to hold the peer table under concurrent access from
// the UDP receive loop and readers.
package syncmap

import "sync"

type Map[K comparable, V any] struct {
	mu   sync.RWMutex
	data map[K]V
}

func New[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{data: make(map[K]V)}
}

func (m *Map[K, V]) Put(key K, val V) {
	m.mu.Lock()
	m.data[key] = val
	m.mu.Unlock()
}

func (m *Map[K, V]) Get(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	val, ok := m.data[key]
	return val, ok
}

func (m *Map[K, V]) Delete(keys ...K) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		delete(m.data, key)
	}
}

func (m *Map[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.data)
}

// Range calls fn for every entry present at the time of the call. fn
// must not call back into m.
func (m *Map[K, V]) Range(fn func(key K, val V)) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for k, v := range m.data {
		fn(k, v)
	}
}

// Keys returns a snapshot of the current keys.
func (m *Map[K, V]) Keys() []K {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]K, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys
}

// DeleteFunc removes every entry for which pred returns true, returning
// the deleted keys.
func (m *Map[K, V]) DeleteFunc(pred func(key K, val V) bool) []K {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed []K
	for k, v := range m.data {
		if pred(k, v) {
			delete(m.data, k)
			removed = append(removed, k)
		}
	}
	return removed
}
