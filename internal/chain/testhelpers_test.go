// testhelpers_test.go — Fake scheduler and in-memory record sink for
// deterministic timer-driven tests.
package chain

import (
	"sync"
	"testing"
	"time"

	"github.com/hoptrace/hoptrace/internal/types"
)

// fakeTimer is a scheduled callback owned by fakeScheduler.
type fakeTimer struct {
	sched    *fakeScheduler
	deadline time.Time
	fn       func()
	stopped  bool
	fired    bool
}

func (t *fakeTimer) Stop() bool {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// fakeScheduler drives timers manually via Advance.
type fakeScheduler struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{now: time.Unix(1700000000, 0)}
}

func (s *fakeScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{sched: s, deadline: s.now.Add(d), fn: fn}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Advance moves the clock forward, firing due timers in deadline order.
// Callbacks run outside the scheduler lock so they may schedule new timers
// or stop existing ones.
func (s *fakeScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()

	for {
		s.mu.Lock()
		var next *fakeTimer
		for _, t := range s.timers {
			if t.fired || t.stopped || t.deadline.After(target) {
				continue
			}
			if next == nil || t.deadline.Before(next.deadline) {
				next = t
			}
		}
		if next == nil {
			s.now = target
			s.mu.Unlock()
			return
		}
		next.fired = true
		if next.deadline.After(s.now) {
			s.now = next.deadline
		}
		fn := next.fn
		s.mu.Unlock()
		fn()
	}
}

// memSink collects appended records in memory.
type memSink struct {
	mu   sync.Mutex
	recs []types.RedirectRecord
}

func (m *memSink) Append(rec types.RedirectRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memSink) records() []types.RedirectRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.RedirectRecord, len(m.recs))
	copy(out, m.recs)
	return out
}

// waitForRecords polls until the sink holds at least n records, since
// persistence is asynchronous to finalization.
func waitForRecords(t *testing.T, m *memSink, n int) []types.RedirectRecord {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		recs := m.records()
		if len(recs) >= n {
			return recs
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d persisted records, got %d", n, len(m.records()))
	return nil
}

// newTestTracker builds a tracker with a fake scheduler and memory sink.
func newTestTracker(t *testing.T) (*Tracker, *fakeScheduler, *memSink) {
	t.Helper()
	sched := newFakeScheduler()
	sink := &memSink{}
	tr := NewTracker(DefaultPolicy(), sink, nil, sched, nil)
	t.Cleanup(tr.Close)
	return tr, sched, sink
}
