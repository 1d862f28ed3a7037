// events.go — Tagged boundary event variants.
// Wire shapes are converted to these variants immediately on ingestion so
// chain-tracking logic never inspects raw extension JSON.
package types

import (
	"fmt"
	"strings"
)

// Event is the closed set of boundary events consumed by the chain tracker.
type Event interface {
	isEvent()
}

// RequestBegin is emitted when the network layer starts a request.
type RequestBegin struct {
	RequestID   string
	TabID       int
	URL         string
	Type        string
	Initiator   string
	TimestampMs int64
}

// RedirectFired is emitted when a request is redirected. A new request id is
// assigned by the network layer at every hop, so RequestID identifies this
// hop, not the whole chain.
type RedirectFired struct {
	RequestID   string
	TabID       int
	URL         string
	RedirectURL string
	StatusCode  int
	Method      string
	Type        string
	IP          string
	Initiator   string
	TimestampMs int64
}

// RequestCompleted is emitted when a request finishes successfully.
type RequestCompleted struct {
	RequestID       string
	TabID           int
	URL             string
	Type            string
	StatusCode      int
	TimestampMs     int64
	ResponseHeaders map[string]string
}

// RequestErrored is emitted when a request fails at the network layer.
// The failure is chain data, not a system fault.
type RequestErrored struct {
	RequestID   string
	TabID       int
	URL         string
	Type        string
	Error       string
	TimestampMs int64
}

// NavigationCommitted is emitted when the browser commits a navigation in a
// tab. Carries no request id; used to infer client-side redirects.
type NavigationCommitted struct {
	TabID                int
	FrameID              int
	URL                  string
	TimestampMs          int64
	TransitionQualifiers []string
}

// TabRemoved is emitted when a tab closes.
type TabRemoved struct {
	TabID int
}

func (RequestBegin) isEvent()        {}
func (RedirectFired) isEvent()       {}
func (RequestCompleted) isEvent()    {}
func (RequestErrored) isEvent()      {}
func (NavigationCommitted) isEvent() {}
func (TabRemoved) isEvent()          {}

// DecodeWireEvent converts a wire event into its tagged variant.
// Returns an error for unknown kinds; callers skip those rather than failing
// the whole batch.
func DecodeWireEvent(w WireEvent) (Event, error) {
	switch w.Kind {
	case WireKindRequestBegin:
		return RequestBegin{
			RequestID:   w.RequestID,
			TabID:       w.TabID,
			URL:         w.URL,
			Type:        w.Type,
			Initiator:   w.Initiator,
			TimestampMs: w.TimeStampMs,
		}, nil
	case WireKindRedirectFired:
		return RedirectFired{
			RequestID:   w.RequestID,
			TabID:       w.TabID,
			URL:         w.URL,
			RedirectURL: w.RedirectURL,
			StatusCode:  w.StatusCode,
			Method:      w.Method,
			Type:        w.Type,
			IP:          w.IP,
			Initiator:   w.Initiator,
			TimestampMs: w.TimeStampMs,
		}, nil
	case WireKindRequestCompleted:
		return RequestCompleted{
			RequestID:       w.RequestID,
			TabID:           w.TabID,
			URL:             w.URL,
			Type:            w.Type,
			StatusCode:      w.StatusCode,
			TimestampMs:     w.TimeStampMs,
			ResponseHeaders: canonicalHeaders(w.ResponseHeaders),
		}, nil
	case WireKindRequestErrored:
		return RequestErrored{
			RequestID:   w.RequestID,
			TabID:       w.TabID,
			URL:         w.URL,
			Type:        w.Type,
			Error:       w.Error,
			TimestampMs: w.TimeStampMs,
		}, nil
	case WireKindNavigationCommitted:
		return NavigationCommitted{
			TabID:                w.TabID,
			FrameID:              w.FrameID,
			URL:                  w.URL,
			TimestampMs:          w.TimeStampMs,
			TransitionQualifiers: w.TransitionQualifiers,
		}, nil
	case WireKindTabRemoved:
		return TabRemoved{TabID: w.TabID}, nil
	default:
		return nil, fmt.Errorf("unknown wire event kind %q", w.Kind)
	}
}

// canonicalHeaders lowercases header names so lookups are case-insensitive.
// Last value wins on duplicates.
func canonicalHeaders(headers []WireHeader) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for _, h := range headers {
		out[strings.ToLower(h.Name)] = h.Value
	}
	return out
}
