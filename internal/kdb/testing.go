package kdb

import "context"

// MemoryBridge is an in-process Bridge double for tests: it never
// shells out, holding principal kvnos and pushed keys in memory.
type MemoryBridge struct {
	kvnos map[string]int
	keys  map[string][]KeyEntry
}

// NewMemoryBridge returns a MemoryBridge seeded with principal ->
// kvno entries.
func NewMemoryBridge(seed map[string]int) *MemoryBridge {
	kvnos := make(map[string]int, len(seed))
	for k, v := range seed {
		kvnos[k] = v
	}
	return &MemoryBridge{kvnos: kvnos, keys: make(map[string][]KeyEntry)}
}

func (m *MemoryBridge) Lookup(_ context.Context, principal string) (int, error) {
	kvno, ok := m.kvnos[principal]
	if !ok {
		return 0, ErrPrincipalNotFound
	}
	return kvno, nil
}

func (m *MemoryBridge) PushKeys(_ context.Context, principal string, newKvno int, keys []KeyEntry) error {
	m.kvnos[principal] = newKvno
	m.keys[principal] = keys
	return nil
}

// Forget simulates the principal disappearing from KDB between
// NEWREQ and the final COMMITKEY push (spec §4.7 step 6).
func (m *MemoryBridge) Forget(principal string) {
	delete(m.kvnos, principal)
}

// Bump simulates an out-of-band kvno change on the KDC (spec §4.7
// step 6).
func (m *MemoryBridge) Bump(principal string, kvno int) {
	m.kvnos[principal] = kvno
}

var _ Bridge = (*MemoryBridge)(nil)
