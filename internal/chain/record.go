// record.go — Chain record builder.
// Normalizes a chain's raw event list into the persisted record shape and
// resolves the human-visible final URL from the available candidates.
package chain

import (
	"sort"
	"time"

	"github.com/hoptrace/hoptrace/internal/noise"
	"github.com/hoptrace/hoptrace/internal/types"
)

// NormalizedEvents is the output of PrepareEventsForRecord.
type NormalizedEvents struct {
	// Events is the record's hop list: non-noise hops when any exist, the
	// full sorted list when every hop was noisy (a chain must never present
	// as empty when hops occurred).
	Events []types.HopEvent
	// NoiseEvents holds the separated-out noisy hops, empty when Events
	// already retains everything.
	NoiseEvents []types.HopEvent
	// AllNoisy is true exactly when the chain had hops and every one was noise.
	AllNoisy bool
	First    *types.HopEvent
	Last     *types.HopEvent
}

// PrepareEventsForRecord sorts, deduplicates, and partitions a chain's raw
// events into the normalized record shape. Idempotent: running it on its own
// output yields the same result.
func PrepareEventsForRecord(events []types.HopEvent, now time.Time) NormalizedEvents {
	if len(events) == 0 {
		return NormalizedEvents{}
	}

	// Dedup identical transitions, later arrival's fields winning.
	deduped := make([]types.HopEvent, 0, len(events))
	seen := make(map[string]int, len(events))
	for _, ev := range events {
		key := ev.TransitionKey()
		if i, ok := seen[key]; ok {
			deduped[i] = mergeHop(deduped[i], ev)
			continue
		}
		seen[key] = len(deduped)
		deduped = append(deduped, ev)
	}

	// Stable sort by timestamp ascending; events lacking one sort last.
	sort.SliceStable(deduped, func(i, j int) bool {
		ti, tj := deduped[i].TimestampMs, deduped[j].TimestampMs
		if ti == 0 {
			return false
		}
		if tj == 0 {
			return true
		}
		return ti < tj
	})

	// Canonical timestamp string on every event.
	for i := range deduped {
		deduped[i].Timestamp = deduped[i].CanonicalTimestamp(now)
	}

	var clean, noisy []types.HopEvent
	for _, ev := range deduped {
		if ev.Noise {
			noisy = append(noisy, ev)
		} else {
			clean = append(clean, ev)
		}
	}

	out := NormalizedEvents{}
	if len(clean) > 0 {
		out.Events = clean
		out.NoiseEvents = noisy
	} else {
		out.Events = deduped
		out.AllNoisy = true
	}
	out.First = &out.Events[0]
	out.Last = &out.Events[len(out.Events)-1]
	return out
}

// navigationalTypes are hop/resource types that represent an actual
// navigation rather than a background resource load.
func isNavigationalType(t string) bool {
	switch t {
	case types.ResourceMainFrame, types.ResourceSubFrame, types.ResourceClientRedirect:
		return true
	}
	return false
}

// ResolveFinalURL picks the chain's human-visible final destination. The URL
// the network layer reports completing is frequently not it (a background
// pixel can fire after the real navigation), so candidates are ranked and
// the first browser-navigable, non-noise one wins; failing that the first
// navigable one; failing that the first candidate at all.
//
// Candidate order: completion URL when the completing resource is
// navigational, the most recent navigational hop destination, the last
// event's destination, the tab's last committed URL, the raw completion URL,
// the chain's initial URL.
func ResolveFinalURL(events []types.HopEvent, completionURL, completionType, lastCommitted, initialURL string) string {
	var candidates []string

	if completionURL != "" && isNavigationalType(completionType) {
		candidates = append(candidates, completionURL)
	}
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		if ev.To == "" {
			continue
		}
		if isNavigationalType(ev.Type) || ev.Method == types.MethodClient {
			candidates = append(candidates, ev.To)
			break
		}
	}
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].To != "" {
			candidates = append(candidates, events[i].To)
			break
		}
	}
	if lastCommitted != "" {
		candidates = append(candidates, lastCommitted)
	}
	if completionURL != "" {
		candidates = append(candidates, completionURL)
	}
	if initialURL != "" {
		candidates = append(candidates, initialURL)
	}

	// Dedup preserving order.
	uniq := candidates[:0]
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		uniq = append(uniq, c)
	}

	for _, c := range uniq {
		if noise.IsLikelyBrowserURL(c) && !noise.IsNoisyURL(c) {
			return c
		}
	}
	for _, c := range uniq {
		if noise.IsLikelyBrowserURL(c) {
			return c
		}
	}
	if len(uniq) > 0 {
		return uniq[0]
	}
	return ""
}

// buildRecord freezes the chain into a RedirectRecord. The caller decides
// whether it is a pending preview or a finalized record.
func buildRecord(c *Chain, now time.Time, pending bool) (types.RedirectRecord, NormalizedEvents) {
	norm := PrepareEventsForRecord(c.Events, now)

	var completionURL, completionType string
	rec := types.RedirectRecord{
		ID:            c.ID,
		TabID:         c.TabID,
		Initiator:     c.Initiator,
		InitiatedAtMs: c.InitiatedAtMs,
		InitialURL:    c.InitialURL,
		Events:        norm.Events,
		NoiseEvents:   norm.NoiseEvents,
		Pending:       pending,
	}
	if c.pendingFinal != nil {
		completionURL = c.pendingFinal.URL
		completionType = c.pendingFinal.Type
		rec.FinalStatus = c.pendingFinal.StatusCode
		rec.Error = c.pendingFinal.Error
		rec.ContentType = c.pendingFinal.ContentType
		rec.ContentLength = c.pendingFinal.ContentLength
	}
	rec.FinalURL = ResolveFinalURL(norm.Events, completionURL, completionType, c.lastCommittedURL, c.InitialURL)
	return rec, norm
}
