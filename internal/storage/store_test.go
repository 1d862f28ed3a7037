package storage

import (
	"testing"

	"github.com/hoptrace/hoptrace/internal/types"
)

func newTestStore(t *testing.T, maxRecords int) *Store {
	t.Helper()
	s, err := New(":memory:", maxRecords)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(id string, initiatedAtMs int64) types.RedirectRecord {
	return types.RedirectRecord{
		ID:            id,
		TabID:         1,
		InitiatedAtMs: initiatedAtMs,
		InitialURL:    "http://x.com",
		FinalURL:      "https://z.com/final",
		FinalStatus:   200,
		Events: []types.HopEvent{
			{From: "http://x.com", To: "https://z.com/final", Status: "301", Type: types.ResourceMainFrame},
		},
		Classification: types.ClassificationNormal,
	}
}

func TestStoreAppendAndList(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, 0)

	if err := s.Append(testRecord("a", 100)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append(testRecord("b", 200)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	recs, err := s.List(0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].ID != "b" || recs[1].ID != "a" {
		t.Errorf("expected newest first, got %q then %q", recs[0].ID, recs[1].ID)
	}
	if recs[0].FinalURL != "https://z.com/final" || len(recs[0].Events) != 1 {
		t.Errorf("round-trip lost record fields: %+v", recs[0])
	}
}

func TestStoreAppendIdempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, 0)

	rec := testRecord("a", 100)
	if err := s.Append(rec); err != nil {
		t.Fatalf("Append: %v", err)
	}
	rec.FinalStatus = 301
	if err := s.Append(rec); err != nil {
		t.Fatalf("Append: %v", err)
	}

	n, err := s.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Fatalf("re-appending the same id must replace, got %d rows", n)
	}
	recs, err := s.List(0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if recs[0].FinalStatus != 301 {
		t.Errorf("expected replaced record, got status %d", recs[0].FinalStatus)
	}
}

func TestStoreCapTrimsOldest(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, 3)

	for i, id := range []string{"a", "b", "c", "d", "e"} {
		if err := s.Append(testRecord(id, int64(100*(i+1)))); err != nil {
			t.Fatalf("Append %s: %v", id, err)
		}
	}

	recs, err := s.List(0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected cap of 3, got %d", len(recs))
	}
	if recs[0].ID != "e" || recs[2].ID != "c" {
		t.Errorf("expected newest 3 retained, got %q..%q", recs[0].ID, recs[2].ID)
	}
}

func TestStoreListLimit(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, 0)

	for i, id := range []string{"a", "b", "c"} {
		if err := s.Append(testRecord(id, int64(100*(i+1)))); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	recs, err := s.List(2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 2 || recs[0].ID != "c" {
		t.Errorf("expected 2 newest records, got %+v", recs)
	}
}

func TestStoreClear(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, 0)

	if err := s.Append(testRecord("a", 100)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	n, err := s.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Errorf("expected empty log after clear, got %d", n)
	}
}
