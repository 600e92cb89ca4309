package history

import (
	"context"
	"sync"
	"time"
)

// FakeRepository records entries in memory for test assertions.
type FakeRepository struct {
	mu sync.Mutex

	// Entries contains every recorded entry, oldest first.
	Entries []Entry

	// RecordError, if set, is returned by Record.
	RecordError error
}

// Record appends the entry.
func (f *FakeRepository) Record(ctx context.Context, e Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RecordError != nil {
		return f.RecordError
	}
	f.Entries = append(f.Entries, e)
	return nil
}

// Recent returns up to limit entries, newest first.
func (f *FakeRepository) Recent(ctx context.Context, limit int) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit <= 0 || limit > len(f.Entries) {
		limit = len(f.Entries)
	}
	out := make([]Entry, 0, limit)
	for i := len(f.Entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.Entries[i])
	}
	return out, nil
}

// Prune is a no-op.
func (f *FakeRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	return 0, nil
}

// Close is a no-op.
func (f *FakeRepository) Close() error { return nil }

// Recorded returns a copy of the recorded entries.
func (f *FakeRepository) Recorded() []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Entry, len(f.Entries))
	copy(out, f.Entries)
	return out
}
