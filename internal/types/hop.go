// hop.go — Hop event and redirect record types.
// The chain data model shared by the chain, classify, grouping, and storage packages.
package types

import "time"

// Status sentinels for hops that have no real HTTP redirect status.
const (
	// StatusJS marks a client-side redirect inferred from navigation events.
	StatusJS = "JS"
	// StatusHSTS marks a zero-status http→https upgrade reinterpreted as a
	// protocol-upgrade redirect rather than a true 3xx.
	StatusHSTS = "HSTS"
)

// MethodClient is the synthetic method recorded on inferred client-side redirect hops.
const MethodClient = "CLIENT"

// Resource types as reported by the browser's request subsystem, plus the
// synthetic client-redirect type for inferred hops.
const (
	ResourceMainFrame      = "main_frame"
	ResourceSubFrame       = "sub_frame"
	ResourceImage          = "image"
	ResourceMedia          = "media"
	ResourceScript         = "script"
	ResourceXHR            = "xmlhttprequest"
	ResourceOther          = "other"
	ResourceClientRedirect = "client-redirect"
)

// Noise reason codes assigned by the per-hop classifier.
const (
	NoiseReasonChallenge = "cloudflare-challenge"
	NoiseReasonAnalytics = "analytics"
)

// Chain classifications assigned at finalization.
const (
	ClassificationNormal   = "normal"
	ClassificationTracking = "likely-tracking"
	ClassificationMedia    = "likely-media"
)

// HopEvent is one observed or inferred transition in a redirect chain.
// To is empty on the terminal hop. Status holds either the HTTP status code
// rendered as text ("301") or one of the StatusJS/StatusHSTS sentinels.
type HopEvent struct {
	From        string `json:"from"`
	To          string `json:"to,omitempty"`
	Status      string `json:"status"`
	Method      string `json:"method,omitempty"`
	Type        string `json:"type,omitempty"`
	IP          string `json:"ip,omitempty"`
	Timestamp   string `json:"ts,omitempty"`
	TimestampMs int64  `json:"ts_ms,omitempty"`
	Noise       bool   `json:"noise,omitempty"`
	NoiseReason string `json:"noise_reason,omitempty"`
}

// TransitionKey identifies the transition this hop describes. Two hops with
// the same key are the same observation and must be merged, never duplicated.
func (e HopEvent) TransitionKey() string {
	return e.From + "\x00" + e.To + "\x00" + e.Status + "\x00" + e.Method + "\x00" + e.Type
}

// CanonicalTimestamp returns the RFC3339 timestamp for this hop, derived from
// TimestampMs when present, the existing Timestamp string otherwise, falling
// back to now.
func (e HopEvent) CanonicalTimestamp(now time.Time) string {
	if e.TimestampMs > 0 {
		return time.UnixMilli(e.TimestampMs).UTC().Format(time.RFC3339Nano)
	}
	if e.Timestamp != "" {
		return e.Timestamp
	}
	return now.UTC().Format(time.RFC3339Nano)
}

// RedirectRecord is the finalized, immutable representation of a completed
// chain. The same shape doubles as the on-demand pending preview for chains
// still being assembled (Pending true, never persisted).
type RedirectRecord struct {
	ID                   string     `json:"id"`
	TabID                int        `json:"tab_id"`
	Initiator            string     `json:"initiator,omitempty"`
	InitiatedAtMs        int64      `json:"initiated_at_ms"`
	InitialURL           string     `json:"initial_url"`
	FinalURL             string     `json:"final_url,omitempty"`
	FinalStatus          int        `json:"final_status,omitempty"`
	Error                string     `json:"error,omitempty"`
	Events               []HopEvent `json:"events"`
	NoiseEvents          []HopEvent `json:"noise_events,omitempty"`
	Classification       string     `json:"classification,omitempty"`
	ClassificationReason string     `json:"classification_reason,omitempty"`
	ContentType          string     `json:"content_type,omitempty"`
	ContentLength        int64      `json:"content_length,omitempty"`
	Pending              bool       `json:"pending,omitempty"`
}

// HopCount returns the number of non-noise hops, or total hops when the
// record retained only noisy ones.
func (r RedirectRecord) HopCount() int {
	return len(r.Events)
}
