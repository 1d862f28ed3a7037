// wire_events.go — Wire types for browser request/navigation telemetry over HTTP.
// Defines the JSON fields POSTed by the extension for the event stream.
//
// JSON CONVENTION: All fields MUST use snake_case.
package types

// Wire event kinds accepted on the ingestion endpoint.
const (
	WireKindRequestBegin        = "request_begin"
	WireKindRedirectFired       = "redirect_fired"
	WireKindRequestCompleted    = "request_completed"
	WireKindRequestErrored      = "request_errored"
	WireKindNavigationCommitted = "navigation_committed"
	WireKindTabRemoved          = "tab_removed"
)

// WireEvent is the canonical wire format for one observed browser event.
// Kind selects which fields are meaningful; DecodeWireEvent converts to the
// corresponding tagged variant.
type WireEvent struct {
	Kind                 string       `json:"kind"`
	RequestID            string       `json:"request_id,omitempty"`
	TabID                int          `json:"tab_id"`
	FrameID              int          `json:"frame_id,omitempty"`
	URL                  string       `json:"url,omitempty"`
	RedirectURL          string       `json:"redirect_url,omitempty"`
	StatusCode           int          `json:"status_code,omitempty"`
	Method               string       `json:"method,omitempty"`
	Type                 string       `json:"type,omitempty"`
	IP                   string       `json:"ip,omitempty"`
	Initiator            string       `json:"initiator,omitempty"`
	Error                string       `json:"error,omitempty"`
	TimeStampMs          int64        `json:"time_stamp_ms,omitempty"`
	ResponseHeaders      []WireHeader `json:"response_headers,omitempty"`
	TransitionQualifiers []string     `json:"transition_qualifiers,omitempty"`
}

// WireHeader is one response header as reported by the browser.
type WireHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// WireEventBatch is the top-level shape POSTed to /events.
type WireEventBatch struct {
	Events []WireEvent `json:"events"`
}
