package audit

import (
	"sync"

	"github.com/grantd/grantd/internal/core"
)

// DefaultMemoryAuditorSize bounds the in-memory entry buffer.
const DefaultMemoryAuditorSize = 1000

var _ core.AuditReader = (*InMemoryAuditor)(nil)

// InMemoryAuditor is an auditor that keeps a bounded buffer of entries in
// memory. Oldest entries are dropped once the buffer is full.
type InMemoryAuditor struct {
	mu      sync.Mutex
	entries []core.AuditEntry
	max     int
}

func NewInMemoryAuditor(maxEntries int) *InMemoryAuditor {
	if maxEntries <= 0 {
		maxEntries = DefaultMemoryAuditorSize
	}
	return &InMemoryAuditor{
		entries: make([]core.AuditEntry, 0),
		max:     maxEntries,
	}
}

func (i *InMemoryAuditor) Log(entry core.AuditEntry) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.entries = append(i.entries, entry)
	if len(i.entries) > i.max {
		i.entries = i.entries[len(i.entries)-i.max:]
	}
	return nil
}

func (i *InMemoryAuditor) GetRecent(limit int) ([]core.AuditEntry, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if limit > len(i.entries) {
		limit = len(i.entries)
	}
	start := len(i.entries) - limit
	entries := make([]core.AuditEntry, limit)
	copy(entries, i.entries[start:])

	return entries, nil
}

func (i *InMemoryAuditor) Find(filter func(entry core.AuditEntry) bool, limit int) ([]core.AuditEntry, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	var matches []core.AuditEntry
	for _, entry := range i.entries {
		if filter(entry) {
			matches = append(matches, entry)
		}
	}

	if len(matches) > limit {
		matches = matches[len(matches)-limit:]
	}

	return matches, nil
}

func (i *InMemoryAuditor) Close() error {
	return nil // nothing to close :)
}
