// tracker.go — Chain lifecycle manager.
// The state machine that correlates asynchronous browser events into chain
// records: creates chains on redirect hops, re-attaches continuation requests
// across request-id changes, infers client-side redirects from navigation
// commits, decides finalization timing, and tears down expired chains.
//
// CORRELATION MODEL:
// A logical chain is observed through three independent event streams that
// never share one id end to end:
//  1. Request lifecycle events keyed by a per-hop request id.
//  2. Redirect-target registrations keyed by (tab, destination URL), consumed
//     FIFO by the next matching request.
//  3. Navigation commits carrying only (tab, URL), used to infer script
//     redirects that never surface as network hops.
// Attachment bias is toward same-host continuations so a fresh, unrelated
// user navigation is not stitched onto a stale chain.
//
// All chain mutation happens under Tracker.mu. Timer callbacks re-check that
// their target chain still exists by id before acting: the chain may have
// been torn down by an intervening event, and that race is expected, not an
// error. Teardown stops every timer before removing index entries.
package chain

import (
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hoptrace/hoptrace/internal/classify"
	"github.com/hoptrace/hoptrace/internal/noise"
	"github.com/hoptrace/hoptrace/internal/types"
)

// RecordSink receives finalized redirect records for persistence. Append
// failures are logged and dropped; chain tracking never blocks on storage.
type RecordSink interface {
	Append(rec types.RedirectRecord) error
}

// BadgeSink receives per-tab visual state transitions. Implementations must
// not block; calls are fire-and-forget from the tracker's perspective.
type BadgeSink interface {
	SetHopCount(tabID, hops int)
	SetAwaiting(tabID int, deadline time.Time)
	PulseResolved(tabID int)
	Clear(tabID int)
}

// nopBadgeSink discards all badge updates.
type nopBadgeSink struct{}

func (nopBadgeSink) SetHopCount(int, int)       {}
func (nopBadgeSink) SetAwaiting(int, time.Time) {}
func (nopBadgeSink) PulseResolved(int)          {}
func (nopBadgeSink) Clear(int)                  {}

// NopBadgeSink returns a BadgeSink that discards everything.
func NopBadgeSink() BadgeSink { return nopBadgeSink{} }

// Stats is a point-in-time snapshot of tracker counters.
type Stats struct {
	ActiveChains   int   `json:"active_chains"`
	AwaitingChains int   `json:"awaiting_chains"`
	PersistedTotal int64 `json:"persisted_total"`
	DroppedNoise   int64 `json:"dropped_noise_total"`
	ExpiredTotal   int64 `json:"expired_total"`
}

// Tracker is the chain lifecycle manager.
type Tracker struct {
	mu sync.Mutex

	store  *ChainStore
	sched  Scheduler
	policy Policy
	log    *zap.Logger

	records RecordSink
	badges  BadgeSink

	// tabCommitted is each tab's last committed navigation URL, a final-URL
	// candidate for chains in that tab.
	tabCommitted map[int]string

	persistedTotal int64
	droppedNoise   int64
	expiredTotal   int64
}

// NewTracker builds a Tracker. records is required; badges, sched, and
// logger may be nil for no-op/production defaults.
func NewTracker(policy Policy, records RecordSink, badges BadgeSink, sched Scheduler, logger *zap.Logger) *Tracker {
	if badges == nil {
		badges = nopBadgeSink{}
	}
	if sched == nil {
		sched = NewScheduler()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		store:        NewChainStore(),
		sched:        sched,
		policy:       policy,
		log:          logger,
		records:      records,
		badges:       badges,
		tabCommitted: make(map[int]string),
	}
}

// HandleEvent dispatches a boundary event to its handler.
func (t *Tracker) HandleEvent(ev types.Event) {
	switch ev := ev.(type) {
	case types.RequestBegin:
		t.OnRequestBegin(ev)
	case types.RedirectFired:
		t.OnRedirectFired(ev)
	case types.RequestCompleted:
		t.OnRequestCompleted(ev)
	case types.RequestErrored:
		t.OnRequestErrored(ev)
	case types.NavigationCommitted:
		t.OnNavigationCommitted(ev)
	case types.TabRemoved:
		t.OnTabRemoved(ev)
	}
}

// OnRequestBegin attaches a new network request to a live chain when one of
// the correlation strategies matches. Strategies, in order: existing
// request-id mapping, pending redirect-target registration, same-host
// continuation of a chain awaiting a client redirect. Unmatched requests are
// unrelated to any tracked chain and ignored.
func (t *Tracker) OnRequestBegin(ev types.RequestBegin) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// (a) Request id already mapped.
	if c := t.store.ByRequestID(ev.RequestID); c != nil {
		t.touchLocked(c)
		return
	}

	// (b) Pending redirect-target registration for this URL.
	if c := t.store.ConsumeRedirectTarget(ev.TabID, ev.URL); c != nil {
		t.store.AttachRequestID(c, ev.RequestID)
		t.resumeLocked(c)
		t.touchLocked(c)
		return
	}

	// (c) Tab-scoped awaiting chain whose pending origin shares a host with
	// the new URL: the completed page navigated itself via script.
	if c := t.store.ActiveForTab(ev.TabID); c != nil && c.State == StateAwaiting {
		origin := c.lastURL()
		if c.pendingFinal != nil && c.pendingFinal.URL != "" {
			origin = c.pendingFinal.URL
		}
		if noise.SameHost(origin, ev.URL) && origin != ev.URL {
			hop := noise.TagHop(types.HopEvent{
				From:        origin,
				To:          ev.URL,
				Status:      types.StatusJS,
				Method:      types.MethodClient,
				Type:        types.ResourceClientRedirect,
				TimestampMs: ev.TimestampMs,
			})
			c.appendHop(hop)
			t.store.AttachRequestID(c, ev.RequestID)
			c.awaitResolved = true
			t.badges.PulseResolved(c.TabID)
			t.resumeLocked(c)
			t.badges.SetHopCount(c.TabID, len(c.Events))
			t.touchLocked(c)
			return
		}
	}
}

// OnRedirectFired records a network-visible hop, creating the chain when the
// request id has not been seen before.
func (t *Tracker) OnRedirectFired(ev types.RedirectFired) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c := t.store.ByRequestID(ev.RequestID)
	if c == nil {
		c = &Chain{
			ID:            uuid.NewString(),
			TabID:         ev.TabID,
			Initiator:     ev.Initiator,
			InitiatedAtMs: ev.TimestampMs,
			InitialURL:    ev.URL,
			RequestIDs:    make(map[string]struct{}),
			State:         StateActive,
		}
		t.store.Add(c)
		t.store.AttachRequestID(c, ev.RequestID)
		t.log.Debug("chain created",
			zap.String("chain_id", c.ID),
			zap.Int("tab", ev.TabID),
			zap.String("url", ev.URL))
	}

	hop := noise.TagHop(types.HopEvent{
		From:        ev.URL,
		To:          ev.RedirectURL,
		Status:      hopStatus(ev.StatusCode, ev.URL, ev.RedirectURL),
		Method:      ev.Method,
		Type:        ev.Type,
		IP:          ev.IP,
		TimestampMs: ev.TimestampMs,
	})
	c.appendHop(hop)

	// The next request to the redirect destination carries a fresh request
	// id; register so it re-attaches here.
	t.store.RegisterRedirectTarget(c, ev.TabID, ev.RedirectURL)
	t.store.SetActiveForTab(ev.TabID, c)

	t.resumeLocked(c)
	t.badges.SetHopCount(c.TabID, len(c.Events))
	t.touchLocked(c)
}

// OnRequestCompleted records completion details and decides finalization
// timing: noisy completions finalize on a short fixed delay, navigational
// completions enter the awaiting-client-redirect state, everything else
// finalizes after the grace delay.
func (t *Tracker) OnRequestCompleted(ev types.RequestCompleted) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c := t.store.ByRequestID(ev.RequestID)
	if c == nil {
		return
	}

	// Once a completion is pending (awaiting a client redirect, or already
	// scheduled to finalize), a low-priority completion on the same mapping
	// (an image ping, say) must not overwrite it.
	if c.State != StateActive && ev.Type != types.ResourceMainFrame {
		t.touchLocked(c)
		return
	}

	contentType := ev.ResponseHeaders["content-type"]
	var contentLength int64
	if v := ev.ResponseHeaders["content-length"]; v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			contentLength = n
		}
	}
	c.pendingFinal = &completionDetails{
		URL:           ev.URL,
		Type:          ev.Type,
		StatusCode:    ev.StatusCode,
		ContentType:   contentType,
		ContentLength: contentLength,
		TimestampMs:   ev.TimestampMs,
	}

	switch {
	case noise.IsNoisyURL(ev.URL):
		// A challenge resource must never hold the chain open.
		t.scheduleFinalizeLocked(c, t.policy.NoisyFinalizeDelay)
	case t.policy.awaitsType(ev.Type) || isHTMLPage(ev, contentType):
		window := t.policy.AwaitWindow
		if isHTMLPage(ev, contentType) {
			window = t.policy.AwaitWindowExtended
		}
		t.beginAwaitLocked(c, window)
	default:
		t.scheduleFinalizeLocked(c, t.policy.FinalizeGrace)
	}
	t.touchLocked(c)
}

// OnRequestErrored records the failure as chain data and schedules
// finalization. Errors never await a client redirect.
func (t *Tracker) OnRequestErrored(ev types.RequestErrored) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c := t.store.ByRequestID(ev.RequestID)
	if c == nil {
		return
	}
	if c.State != StateActive && ev.Type != types.ResourceMainFrame {
		t.touchLocked(c)
		return
	}
	c.pendingFinal = &completionDetails{
		URL:         ev.URL,
		Type:        ev.Type,
		Error:       ev.Error,
		TimestampMs: ev.TimestampMs,
	}
	t.scheduleFinalizeLocked(c, t.policy.FinalizeGrace)
	t.touchLocked(c)
}

// OnNavigationCommitted tracks the tab's committed URL and infers a
// client-side redirect when an awaiting chain's tab commits a same-host
// navigation to a new URL.
func (t *Tracker) OnNavigationCommitted(ev types.NavigationCommitted) {
	if ev.FrameID != 0 {
		return // only top-frame commits describe where the user ended up
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.tabCommitted[ev.TabID] = ev.URL

	c := t.store.ActiveForTab(ev.TabID)
	if c == nil {
		t.badges.Clear(ev.TabID)
		return
	}
	c.lastCommittedURL = ev.URL

	if c.State != StateAwaiting {
		t.touchLocked(c)
		return
	}
	origin := c.lastURL()
	if c.pendingFinal != nil && c.pendingFinal.URL != "" {
		origin = c.pendingFinal.URL
	}
	if noise.SameHost(origin, ev.URL) && origin != ev.URL {
		hop := noise.TagHop(types.HopEvent{
			From:        origin,
			To:          ev.URL,
			Status:      types.StatusJS,
			Method:      types.MethodClient,
			Type:        types.ResourceClientRedirect,
			TimestampMs: ev.TimestampMs,
		})
		c.appendHop(hop)
		c.awaitResolved = true
		t.badges.PulseResolved(c.TabID)
		t.badges.SetHopCount(c.TabID, len(c.Events))
		t.scheduleFinalizeLocked(c, t.policy.FinalizeGrace)
	}
	t.touchLocked(c)
}

// OnTabRemoved tears down the tab's active chain: in-flight state has no
// observational value once the tab is gone.
func (t *Tracker) OnTabRemoved(ev types.TabRemoved) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.tabCommitted, ev.TabID)
	if c := t.store.ActiveForTab(ev.TabID); c != nil {
		t.log.Debug("chain torn down on tab close",
			zap.String("chain_id", c.ID),
			zap.Int("tab", ev.TabID))
		t.teardownLocked(c)
	}
	t.badges.Clear(ev.TabID)
}

// resumeLocked cancels a pending await/finalize: the chain extended.
func (t *Tracker) resumeLocked(c *Chain) {
	if c.State == StateActive {
		return
	}
	c.State = StateActive
	c.AwaitingDeadline = time.Time{}
	c.pendingFinal = nil
	c.replacePendingTimer(nil)
}

// scheduleFinalizeLocked moves the chain to FINALIZING with a delayed
// finalize. The callback re-resolves the chain by id; finalization of an
// already-removed chain is a no-op.
func (t *Tracker) scheduleFinalizeLocked(c *Chain, delay time.Duration) {
	c.State = StateFinalizing
	id := c.ID
	c.replacePendingTimer(t.sched.AfterFunc(delay, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		target := t.store.Get(id)
		if target == nil || target.State != StateFinalizing {
			return
		}
		t.finalizeLocked(target)
	}))
}

// beginAwaitLocked enters AWAITING_CLIENT_REDIRECT with a bounded wait. If
// the window expires with no further navigation, the chain finalizes with
// the previously recorded completion details.
func (t *Tracker) beginAwaitLocked(c *Chain, window time.Duration) {
	c.State = StateAwaiting
	c.AwaitingDeadline = t.sched.Now().Add(window)
	t.badges.SetAwaiting(c.TabID, c.AwaitingDeadline)
	id := c.ID
	c.replacePendingTimer(t.sched.AfterFunc(window, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		target := t.store.Get(id)
		if target == nil || target.State != StateAwaiting {
			return
		}
		t.finalizeLocked(target)
	}))
}

// touchLocked resets the rolling idle-cleanup timer.
func (t *Tracker) touchLocked(c *Chain) {
	if c.cleanupTimer != nil {
		c.cleanupTimer.Stop()
	}
	id := c.ID
	c.cleanupTimer = t.sched.AfterFunc(t.policy.IdleTimeout, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		target := t.store.Get(id)
		if target == nil {
			return
		}
		t.expiredTotal++
		t.log.Debug("chain expired idle", zap.String("chain_id", id))
		t.teardownLocked(target)
	})
}

// finalizeLocked converts the chain into a persisted record and removes it.
// A chain is persisted at most once: the chain leaves the store before the
// asynchronous write starts, so a racing timer finds nothing.
func (t *Tracker) finalizeLocked(c *Chain) {
	rec, norm := buildRecord(c, t.sched.Now(), false)

	if len(c.Events) == 0 {
		t.teardownLocked(c)
		return
	}
	if norm.AllNoisy {
		// A chain that is 100% noise end to end is dropped, not stored.
		t.droppedNoise++
		t.log.Debug("chain dropped as all-noise", zap.String("chain_id", c.ID))
		t.teardownLocked(c)
		return
	}

	var meta classify.Meta
	if c.pendingFinal != nil {
		meta = classify.Meta{
			ResourceType:  c.pendingFinal.Type,
			ContentType:   c.pendingFinal.ContentType,
			ContentLength: c.pendingFinal.ContentLength,
		}
	}
	res := classify.Record(rec, meta)
	rec.Classification = res.Classification
	rec.ClassificationReason = res.Reason

	tabID := c.TabID
	hops := rec.HopCount()
	t.teardownLocked(c)
	t.persistedTotal++
	t.badges.SetHopCount(tabID, hops)

	go func() {
		if err := t.records.Append(rec); err != nil {
			t.log.Warn("redirect record persist failed",
				zap.String("chain_id", rec.ID),
				zap.Error(err))
		}
	}()

	t.log.Info("chain finalized",
		zap.String("chain_id", rec.ID),
		zap.Int("tab", rec.TabID),
		zap.Int("hops", hops),
		zap.String("final_url", rec.FinalURL),
		zap.String("classification", rec.Classification))
}

// teardownLocked stops every timer, then removes the chain from every index.
// Timers first: a callback firing between index removal steps must find the
// chain already unreachable by id.
func (t *Tracker) teardownLocked(c *Chain) {
	c.stopTimers()
	t.store.Remove(c)
}

// PendingRecords builds on-demand preview records for all in-flight chains,
// most recently initiated first. Previews are never persisted.
func (t *Tracker) PendingRecords() []types.RedirectRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	chains := t.store.All()
	out := make([]types.RedirectRecord, 0, len(chains))
	for _, c := range chains {
		if len(c.Events) == 0 {
			continue
		}
		rec, _ := buildRecord(c, t.sched.Now(), true)
		out = append(out, rec)
	}
	sortRecordsByInitiatedDesc(out)
	return out
}

// Stats returns a snapshot of tracker counters.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	awaiting := 0
	for _, c := range t.store.All() {
		if c.State == StateAwaiting {
			awaiting++
		}
	}
	return Stats{
		ActiveChains:   t.store.Len(),
		AwaitingChains: awaiting,
		PersistedTotal: t.persistedTotal,
		DroppedNoise:   t.droppedNoise,
		ExpiredTotal:   t.expiredTotal,
	}
}

// Close tears down all in-flight chains without persisting. Safe to call
// multiple times.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range t.store.All() {
		t.teardownLocked(c)
	}
}

// hopStatus renders the hop status, reinterpreting a zero status on an
// http→https upgrade of the same host/path as a synthetic HSTS redirect.
func hopStatus(code int, from, to string) string {
	if code == 0 && isHSTSUpgrade(from, to) {
		return types.StatusHSTS
	}
	return strconv.Itoa(code)
}

func isHSTSUpgrade(from, to string) bool {
	uf, err := url.Parse(from)
	if err != nil {
		return false
	}
	ut, err := url.Parse(to)
	if err != nil {
		return false
	}
	return uf.Scheme == "http" && ut.Scheme == "https" &&
		uf.Host == ut.Host && uf.Path == ut.Path
}

// isHTMLPage reports whether the completion is an HTML document load, the
// case most likely to issue a delayed script redirect.
func isHTMLPage(ev types.RequestCompleted, contentType string) bool {
	if ev.StatusCode != 200 {
		return false
	}
	if ev.Type != types.ResourceMainFrame && ev.Type != types.ResourceSubFrame {
		return false
	}
	return len(contentType) >= 9 && contentType[:9] == "text/html"
}

func sortRecordsByInitiatedDesc(recs []types.RedirectRecord) {
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].InitiatedAtMs > recs[j].InitiatedAtMs
	})
}
