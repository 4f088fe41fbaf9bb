package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/hupe1980/encounter/core"
)

// Options configure an InMemoryStore.
type Options struct {
	// Cap is the number of records kept per pair.
	Cap int
}

// InMemoryStore is a process-local MemoryStore. Records are kept per pair
// key in insertion order and trimmed to the cap on Append.
//
// Concurrency: protected by RWMutex. Returned slices are copies.
type InMemoryStore struct {
	mu      sync.RWMutex
	cap     int
	records map[core.PairKey][]core.ConversationRecord
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore(optFns ...func(o *Options)) *InMemoryStore {
	opts := Options{Cap: core.DefaultMemoryCap}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Cap <= 0 {
		opts.Cap = core.DefaultMemoryCap
	}
	return &InMemoryStore{cap: opts.Cap, records: make(map[core.PairKey][]core.ConversationRecord)}
}

// Cap returns the per-pair record limit.
func (m *InMemoryStore) Cap() int { return m.cap }

// Recent returns the pair's records, oldest first.
func (m *InMemoryStore) Recent(_ context.Context, key core.PairKey) ([]core.ConversationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	recs := m.records[key]
	out := make([]core.ConversationRecord, len(recs))
	for i, r := range recs {
		out[i] = cloneRecord(r)
	}
	return out, nil
}

// Append stores rec under its participants' key, evicting the oldest records
// past the cap.
func (m *InMemoryStore) Append(_ context.Context, rec core.ConversationRecord) error {
	key := rec.Key()
	m.mu.Lock()
	defer m.mu.Unlock()
	recs := append(m.records[key], cloneRecord(rec))
	m.records[key] = slices.Clone(core.TrimRecords(recs, m.cap))
	return nil
}

// Keys returns all pair keys with stored records, sorted.
func (m *InMemoryStore) Keys() []core.PairKey {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]core.PairKey, 0, len(m.records))
	for k := range m.records {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Delete removes every record of key.
func (m *InMemoryStore) Delete(key core.PairKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
}

func cloneRecord(r core.ConversationRecord) core.ConversationRecord {
	r.ParticipantIDs = slices.Clone(r.ParticipantIDs)
	r.Turns = slices.Clone(r.Turns)
	return r
}
