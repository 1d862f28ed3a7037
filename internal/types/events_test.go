package types

import (
	"encoding/json"
	"testing"
)

func TestDecodeWireEvent(t *testing.T) {
	t.Parallel()

	t.Run("redirect fired", func(t *testing.T) {
		t.Parallel()
		ev, err := DecodeWireEvent(WireEvent{
			Kind:        WireKindRedirectFired,
			RequestID:   "r1",
			TabID:       3,
			URL:         "http://x.com",
			RedirectURL: "https://x.com",
			StatusCode:  301,
			Method:      "GET",
			Type:        ResourceMainFrame,
			IP:          "203.0.113.1",
			TimeStampMs: 42,
		})
		if err != nil {
			t.Fatalf("DecodeWireEvent: %v", err)
		}
		rf, ok := ev.(RedirectFired)
		if !ok {
			t.Fatalf("expected RedirectFired, got %T", ev)
		}
		if rf.RequestID != "r1" || rf.RedirectURL != "https://x.com" || rf.StatusCode != 301 || rf.TimestampMs != 42 {
			t.Errorf("fields lost in decode: %+v", rf)
		}
	})

	t.Run("completed lowercases headers", func(t *testing.T) {
		t.Parallel()
		ev, err := DecodeWireEvent(WireEvent{
			Kind:      WireKindRequestCompleted,
			RequestID: "r1",
			ResponseHeaders: []WireHeader{
				{Name: "Content-Type", Value: "text/html"},
				{Name: "CONTENT-LENGTH", Value: "512"},
			},
		})
		if err != nil {
			t.Fatalf("DecodeWireEvent: %v", err)
		}
		rc := ev.(RequestCompleted)
		if rc.ResponseHeaders["content-type"] != "text/html" {
			t.Errorf("expected lowercased content-type, got %v", rc.ResponseHeaders)
		}
		if rc.ResponseHeaders["content-length"] != "512" {
			t.Errorf("expected lowercased content-length, got %v", rc.ResponseHeaders)
		}
	})

	t.Run("tab removed", func(t *testing.T) {
		t.Parallel()
		ev, err := DecodeWireEvent(WireEvent{Kind: WireKindTabRemoved, TabID: 9})
		if err != nil {
			t.Fatalf("DecodeWireEvent: %v", err)
		}
		if tr, ok := ev.(TabRemoved); !ok || tr.TabID != 9 {
			t.Errorf("expected TabRemoved for tab 9, got %#v", ev)
		}
	})

	t.Run("unknown kind errors", func(t *testing.T) {
		t.Parallel()
		if _, err := DecodeWireEvent(WireEvent{Kind: "mystery"}); err == nil {
			t.Fatal("expected error for unknown kind")
		}
	})
}

func TestTransitionKey(t *testing.T) {
	t.Parallel()

	a := HopEvent{From: "http://x.com", To: "http://x.com/y", Status: "301", Method: "GET", Type: ResourceMainFrame}
	b := a
	b.IP = "198.51.100.1"
	b.TimestampMs = 99
	if a.TransitionKey() != b.TransitionKey() {
		t.Error("metadata differences must not change the transition key")
	}

	c := a
	c.Status = "302"
	if a.TransitionKey() == c.TransitionKey() {
		t.Error("different status must produce a different key")
	}
}

func TestRedirectRecordHopCount(t *testing.T) {
	t.Parallel()

	rec := RedirectRecord{Events: []HopEvent{
		{From: "a", To: "b", Status: "301"},
		{From: "b", To: "c", Status: "302"},
	}}
	if got := rec.HopCount(); got != 2 {
		t.Errorf("HopCount() = %d, want 2", got)
	}
	if got := (RedirectRecord{}).HopCount(); got != 0 {
		t.Errorf("HopCount() on empty record = %d, want 0", got)
	}
}

func TestHopEventJSONShape(t *testing.T) {
	t.Parallel()

	blob, err := json.Marshal(HopEvent{From: "a", To: "b", Status: "301", Noise: true, NoiseReason: "analytics"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(blob, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"from", "to", "status", "noise", "noise_reason"} {
		if _, ok := m[key]; !ok {
			t.Errorf("expected snake_case field %q in %s", key, blob)
		}
	}
}
