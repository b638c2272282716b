package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"cart-guard/middleware/ratelimit/domain"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// memWindow reproduz a semântica do sorted set: purga score <= now-window,
// insere, conta.
type memWindow struct {
	mu      sync.Mutex
	buckets map[string][]int64
	keys    []string
}

func newMemWindow() *memWindow { return &memWindow{buckets: make(map[string][]int64)} }

func (w *memWindow) Hit(_ context.Context, key string, now time.Time, window time.Duration) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	start := now.UnixMilli() - window.Milliseconds()
	kept := w.buckets[key][:0]
	for _, ts := range w.buckets[key] {
		if ts > start {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, now.UnixMilli())
	w.buckets[key] = kept
	w.keys = append(w.keys, key)
	return int64(len(kept)), nil
}

type failingWindow struct{ err error }

func (f failingWindow) Hit(context.Context, string, time.Time, time.Duration) (int64, error) {
	return 0, f.err
}

type memCounter struct {
	mu     sync.Mutex
	counts map[domain.Identity]int64
	err    error
}

func newMemCounter() *memCounter { return &memCounter{counts: make(map[domain.Identity]int64)} }

func (c *memCounter) Increment(_ context.Context, id domain.Identity) (int64, error) {
	if c.err != nil {
		return 0, c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[id]++
	return c.counts[id], nil
}

type memLog struct {
	mu      sync.Mutex
	records []domain.ViolationRecord
	err     error
}

func (l *memLog) Log(_ context.Context, rec domain.ViolationRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.records = append(l.records, rec)
	return nil
}

func (l *memLog) Records() []domain.ViolationRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.ViolationRecord(nil), l.records...)
}

var errStoreDown = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")
