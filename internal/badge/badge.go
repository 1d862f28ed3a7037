// badge.go — Per-tab badge state board.
// Consumes chain state transitions as a fire-and-forget sink and holds the
// visual indicator state the extension polls for: hop count, the distinct
// awaiting-client-redirect state with its countdown deadline, and a pulse
// timestamp marking a resolved await.
package badge

import (
	"sync"
	"time"
)

// TabBadge is the visual state for one tab.
type TabBadge struct {
	TabID       int       `json:"tab_id"`
	HopCount    int       `json:"hop_count"`
	Awaiting    bool      `json:"awaiting"`
	AwaitingEnd time.Time `json:"awaiting_end,omitempty"`
	LastPulse   time.Time `json:"last_pulse,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Board tracks badge state for all tabs.
type Board struct {
	mu   sync.RWMutex
	tabs map[int]*TabBadge
}

// NewBoard returns an empty board.
func NewBoard() *Board {
	return &Board{tabs: make(map[int]*TabBadge)}
}

func (b *Board) tab(tabID int) *TabBadge {
	t, ok := b.tabs[tabID]
	if !ok {
		t = &TabBadge{TabID: tabID}
		b.tabs[tabID] = t
	}
	return t
}

// SetHopCount updates the tab's hop-count display.
func (b *Board) SetHopCount(tabID, hops int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := b.tab(tabID)
	t.HopCount = hops
	t.UpdatedAt = time.Now()
}

// SetAwaiting puts the tab into the awaiting-client-redirect visual state
// with a countdown deadline.
func (b *Board) SetAwaiting(tabID int, deadline time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := b.tab(tabID)
	t.Awaiting = true
	t.AwaitingEnd = deadline
	t.UpdatedAt = time.Now()
}

// PulseResolved records that an awaited client redirect resolved, and ends
// the awaiting state.
func (b *Board) PulseResolved(tabID int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := b.tab(tabID)
	t.Awaiting = false
	t.AwaitingEnd = time.Time{}
	t.LastPulse = time.Now()
	t.UpdatedAt = t.LastPulse
}

// Clear removes the tab's badge state entirely.
func (b *Board) Clear(tabID int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.tabs, tabID)
}

// ClearAll resets every tab's badge state.
func (b *Board) ClearAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tabs = make(map[int]*TabBadge)
}

// Snapshot returns a copy of the tab's badge state. The awaiting flag is
// reported false once the deadline has passed even if no event landed yet.
func (b *Board) Snapshot(tabID int) (TabBadge, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.tabs[tabID]
	if !ok {
		return TabBadge{TabID: tabID}, false
	}
	out := *t
	if out.Awaiting && !out.AwaitingEnd.IsZero() && time.Now().After(out.AwaitingEnd) {
		out.Awaiting = false
	}
	return out, true
}
