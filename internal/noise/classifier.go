// classifier.go — Per-hop noise tagging.
// Tags a single hop event as noise/non-noise with a reason code before it is
// appended to a chain.
package noise

import "github.com/hoptrace/hoptrace/internal/types"

// TagHop returns a copy of the hop with its Noise flag and NoiseReason set.
// A hop is judged by its destination when it has one (the transition lands
// there); terminal hops are judged by their source.
func TagHop(hop types.HopEvent) types.HopEvent {
	target := hop.To
	if target == "" {
		target = hop.From
	}
	noisy, reason := Classify(target)
	hop.Noise = noisy
	hop.NoiseReason = reason
	return hop
}
