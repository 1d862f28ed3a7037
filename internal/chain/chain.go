// chain.go — In-memory chain state.
// A Chain is a redirect chain still being assembled: its accumulated hops,
// the identifiers it is reachable from, its lifecycle state, and its pending
// timers. Chains are transient; they become RedirectRecords at finalization
// or vanish on cleanup.
package chain

import (
	"time"

	"github.com/hoptrace/hoptrace/internal/types"
)

// State is the per-chain lifecycle state.
type State int

const (
	// StateActive — accumulating hops, no completion seen yet.
	StateActive State = iota
	// StateAwaiting — a network completion was observed but the chain might
	// continue via a client-side redirect.
	StateAwaiting
	// StateFinalizing — scheduled for persistence after a grace delay.
	StateFinalizing
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateAwaiting:
		return "awaiting_client_redirect"
	case StateFinalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

// completionDetails captures a request-completed or request-errored event
// awaiting finalization.
type completionDetails struct {
	URL           string
	Type          string
	StatusCode    int
	Error         string
	ContentType   string
	ContentLength int64
	TimestampMs   int64
}

// Chain is one in-flight redirect chain. All fields are owned by the Tracker
// and mutated only under its lock.
type Chain struct {
	ID            string
	TabID         int
	Initiator     string
	InitiatedAtMs int64
	InitialURL    string

	// RequestIDs holds every network request id ever attached. A chain spans
	// multiple ids when client-side navigation re-enters the network layer.
	RequestIDs map[string]struct{}

	// Events is the ordered hop list, mutated in place. Duplicate transitions
	// are merged on append, never appended twice.
	Events []types.HopEvent

	State            State
	AwaitingDeadline time.Time

	// pendingFinal is the most recent completion/error awaiting finalization.
	pendingFinal *completionDetails

	// lastCommittedURL is the tab's last committed navigation URL observed
	// while this chain was live (final-URL candidate #4).
	lastCommittedURL string

	// redirectTargetKeys are the pending-redirect-target queue keys this
	// chain registered, kept for reverse cleanup on teardown.
	redirectTargetKeys []string

	// pendingTimer is the single finalize/await timer. Replacing it always
	// cancels the previous one; the multi-timer-field bug class is avoided
	// by never having two.
	pendingTimer Timer

	// cleanupTimer is the rolling idle-timeout timer, reset on any activity.
	cleanupTimer Timer

	// awaitResolved marks that an awaited client redirect actually arrived,
	// so the badge can pulse on resolution.
	awaitResolved bool
}

// appendHop merges the hop into the event list. Two hops describing the
// identical transition are one observation: fields from the later arrival
// are merged over the earlier, and no duplicate is stored.
func (c *Chain) appendHop(hop types.HopEvent) {
	key := hop.TransitionKey()
	for i := range c.Events {
		if c.Events[i].TransitionKey() == key {
			c.Events[i] = mergeHop(c.Events[i], hop)
			return
		}
	}
	c.Events = append(c.Events, hop)
	if c.InitialURL == "" {
		c.InitialURL = hop.From
	}
}

// mergeHop overlays the later observation's fields onto the earlier one.
func mergeHop(earlier, later types.HopEvent) types.HopEvent {
	out := earlier
	if later.IP != "" {
		out.IP = later.IP
	}
	if later.TimestampMs != 0 {
		out.TimestampMs = later.TimestampMs
	}
	if later.Timestamp != "" {
		out.Timestamp = later.Timestamp
	}
	out.Noise = later.Noise
	out.NoiseReason = later.NoiseReason
	return out
}

// lastURL returns the chain's most recent known URL: the last hop's
// destination, its source when terminal, or the initial URL.
func (c *Chain) lastURL() string {
	for i := len(c.Events) - 1; i >= 0; i-- {
		if c.Events[i].To != "" {
			return c.Events[i].To
		}
		if c.Events[i].From != "" {
			return c.Events[i].From
		}
	}
	return c.InitialURL
}

// stopTimers cancels both timers. Must run before the chain is removed from
// any index; a timer firing after partial teardown is the principal
// correctness hazard here.
func (c *Chain) stopTimers() {
	if c.pendingTimer != nil {
		c.pendingTimer.Stop()
		c.pendingTimer = nil
	}
	if c.cleanupTimer != nil {
		c.cleanupTimer.Stop()
		c.cleanupTimer = nil
	}
}

// replacePendingTimer cancels any existing finalize/await timer and installs
// the new one.
func (c *Chain) replacePendingTimer(t Timer) {
	if c.pendingTimer != nil {
		c.pendingTimer.Stop()
	}
	c.pendingTimer = t
}
