// Package safemap provides a type-safe concurrent map. The servers use it as
// their registry of live connections, keyed by connection ID.
package safemap

import "github.com/puzpuzpuz/xsync/v3"

// SafeMap is a concurrent map that is safe for use by multiple goroutines.
// It is backed by xsync.MapOf, so Len is O(1) and reads never block writers.
type SafeMap[K comparable, V any] struct {
	m *xsync.MapOf[K, V]
}

// NewSafeMap returns an empty SafeMap ready for use.
func NewSafeMap[K comparable, V any]() *SafeMap[K, V] {
	return &SafeMap[K, V]{m: xsync.NewMapOf[K, V]()}
}

// Store sets the value for key k, overwriting any existing value.
func (m *SafeMap[K, V]) Store(k K, v V) {
	m.m.Store(k, v)
}

// Load returns the value for key k and whether it was present.
//
// Parameters:
//   - k: The key to look up
//
// Returns:
//   - The value associated with k, or the zero value of V if not found
//   - true if the key was present, false otherwise
func (m *SafeMap[K, V]) Load(k K) (V, bool) {
	return m.m.Load(k)
}

// LoadAndDelete removes k and returns the value it held, if any.
func (m *SafeMap[K, V]) LoadAndDelete(k K) (V, bool) {
	return m.m.LoadAndDelete(k)
}

// Delete removes the entry for key k. Deleting a missing key is a no-op.
func (m *SafeMap[K, V]) Delete(k K) {
	m.m.Delete(k)
}

// Range calls f for each entry until f returns false. Entries stored or
// deleted concurrently may or may not be visited.
func (m *SafeMap[K, V]) Range(f func(k K, v V) bool) {
	m.m.Range(f)
}

// Len returns the number of entries in the map.
func (m *SafeMap[K, V]) Len() int {
	return m.m.Size()
}

// Has reports whether key k is present in the map.
func (m *SafeMap[K, V]) Has(k K) bool {
	_, found := m.m.Load(k)
	return found
}
