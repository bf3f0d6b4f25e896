package store

import (
	"sync"
	"time"

	"github.com/cryptouniverse/discovery/internal/contracts"
)

// memoryEntry holds one cached value with its own expiry
type memoryEntry struct {
	record    *contracts.ScanRecord
	expiresAt time.Time
}

type lookupEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is the fast in-process cache layer. It is a latency
// optimization only and is never authoritative on its own: the durable
// layer is the source of truth across worker processes.
// ⭐ SSOT: 인프로세스 스캔 캐시는 이 구조체에서만
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]memoryEntry
	lookups map[string]lookupEntry
}

// NewMemoryStore creates an empty fast layer
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]memoryEntry),
		lookups: make(map[string]lookupEntry),
	}
}

// PutRecord stores a record copy under its cache key with a sliding TTL
func (m *MemoryStore) PutRecord(cacheKey string, record *contracts.ScanRecord, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[cacheKey] = memoryEntry{
		record:    record.Clone(),
		expiresAt: time.Now().Add(ttl),
	}
}

// GetRecord returns a copy of the cached record, or false when absent
// or expired
func (m *MemoryStore) GetRecord(cacheKey string) (*contracts.ScanRecord, bool) {
	m.mu.RLock()
	entry, ok := m.records[cacheKey]
	m.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		m.DeleteRecord(cacheKey)
		return nil, false
	}

	return entry.record.Clone(), true
}

// DeleteRecord evicts a record from the fast layer
func (m *MemoryStore) DeleteRecord(cacheKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, cacheKey)
}

// PutLookup stores a lookup value under its full key with a sliding TTL
func (m *MemoryStore) PutLookup(key, value string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lookups[key] = lookupEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
}

// GetLookup returns the lookup value, or false when absent or expired
func (m *MemoryStore) GetLookup(key string) (string, bool) {
	m.mu.RLock()
	entry, ok := m.lookups[key]
	m.mu.RUnlock()

	if !ok {
		return "", false
	}
	if time.Now().After(entry.expiresAt) {
		m.DeleteLookup(key)
		return "", false
	}

	return entry.value, true
}

// DeleteLookup removes a lookup entry from the fast layer
func (m *MemoryStore) DeleteLookup(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.lookups, key)
}

// CleanExpired drops every expired record and lookup, returning how many
// entries were removed
func (m *MemoryStore) CleanExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	removed := 0

	for key, entry := range m.records {
		if now.After(entry.expiresAt) {
			delete(m.records, key)
			removed++
		}
	}
	for key, entry := range m.lookups {
		if now.After(entry.expiresAt) {
			delete(m.lookups, key)
			removed++
		}
	}

	return removed
}

// Size returns the number of live record entries
func (m *MemoryStore) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.records)
}
