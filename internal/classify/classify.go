// classify.go — Chain classification engine.
// Given a finalized record and its completion metadata, decides whether the
// chain was ordinary navigation, likely tracking traffic, or a media load.
//
// Media signals short-circuit: any one of them classifies the chain as
// likely-media. Tracking heuristics accumulate instead — any single one
// (a one-hop chain, say) has too many false positives among ordinary
// navigations, so likely-tracking requires two or more independent signal
// families to corroborate.
package classify

import (
	"strings"

	"github.com/hoptrace/hoptrace/internal/noise"
	"github.com/hoptrace/hoptrace/internal/types"
)

// trackingContentLengthMax is the response size at or below which a
// completion looks like a tracking pixel payload.
const trackingContentLengthMax = 2048

// Meta is the completion metadata accompanying a finalized record.
type Meta struct {
	ResourceType  string
	ContentType   string
	ContentLength int64
}

// Result is the classification outcome.
type Result struct {
	Classification string
	Reason         string
}

// Record classifies a finalized redirect record.
func Record(rec types.RedirectRecord, meta Meta) Result {
	if reasons := mediaSignals(rec, meta); len(reasons) > 0 {
		return Result{
			Classification: types.ClassificationMedia,
			Reason:         strings.Join(reasons, ", "),
		}
	}
	if reasons := trackingSignals(rec, meta); len(reasons) >= 2 {
		return Result{
			Classification: types.ClassificationTracking,
			Reason:         strings.Join(reasons, ", "),
		}
	}
	return Result{Classification: types.ClassificationNormal}
}

// mediaSignals returns the media heuristics that fired.
func mediaSignals(rec types.RedirectRecord, meta Meta) []string {
	var reasons []string
	for _, ev := range rec.Events {
		if ev.Type == types.ResourceMedia {
			reasons = append(reasons, "media hop resource type")
			break
		}
	}
	if meta.ResourceType == types.ResourceMedia {
		reasons = append(reasons, "media completion type")
	}
	if noise.HasMediaExtension(rec.FinalURL) {
		reasons = append(reasons, "media file extension")
	}
	if noise.IsMediaContentType(meta.ContentType) {
		reasons = append(reasons, "media content-type")
	}
	return reasons
}

// trackingSignals returns the independent tracking heuristics that fired.
func trackingSignals(rec types.RedirectRecord, meta Meta) []string {
	var reasons []string
	if len(rec.Events) <= 1 {
		reasons = append(reasons, "single-hop chain")
	}
	if allImageHops(rec.Events) {
		reasons = append(reasons, "image-only hops")
	}
	if noise.HasPixelExtension(rec.FinalURL) {
		reasons = append(reasons, "pixel file extension")
	}
	if noise.HasTrackingKeyword(rec.FinalURL) {
		reasons = append(reasons, "tracking keyword in final URL")
	}
	if noise.IsNoisyURL(rec.FinalURL) {
		reasons = append(reasons, "known tracking host")
	}
	if meta.ResourceType == types.ResourceImage {
		reasons = append(reasons, "image completion type")
	}
	if strings.Contains(strings.ToLower(meta.ContentType), "image/") {
		reasons = append(reasons, "image content-type")
	}
	if meta.ContentLength > 0 && meta.ContentLength <= trackingContentLengthMax {
		reasons = append(reasons, "tiny response body")
	}
	return reasons
}

// allImageHops reports whether every hop in a non-empty list is image-typed.
func allImageHops(events []types.HopEvent) bool {
	if len(events) == 0 {
		return false
	}
	for _, ev := range events {
		if ev.Type != types.ResourceImage {
			return false
		}
	}
	return true
}
