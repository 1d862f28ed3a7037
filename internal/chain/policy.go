// policy.go — Tunable timing and eligibility policy for chain tracking.
// The await windows and awaited-type set vary across browser behaviors, so
// they are configuration, not contract. DefaultPolicy is the one consistent
// policy shipped: only frame navigations are eligible to await a client
// redirect, with a short default window extended for HTML documents.
package chain

import (
	"time"

	"github.com/hoptrace/hoptrace/internal/types"
)

// Policy holds the tunable knobs of the chain lifecycle state machine.
type Policy struct {
	// FinalizeGrace is the short delay before finalizing a completed chain,
	// allowing a same-tick duplicate or merge to land first.
	FinalizeGrace time.Duration

	// NoisyFinalizeDelay is the finalize delay for chains whose completing
	// URL is itself noise. Noisy completions must never hold a chain open
	// waiting for a client redirect that will never come.
	NoisyFinalizeDelay time.Duration

	// AwaitWindow is the default bounded wait for a client-side redirect
	// after a navigational completion.
	AwaitWindow time.Duration

	// AwaitWindowExtended replaces AwaitWindow for completions more likely
	// to issue a delayed redirect (HTML documents).
	AwaitWindowExtended time.Duration

	// IdleTimeout is the rolling inactivity bound; a chain with no activity
	// for this long is torn down with no record written.
	IdleTimeout time.Duration

	// AwaitedTypes is the set of resource types whose completion is allowed
	// to enter the awaiting-client-redirect state.
	AwaitedTypes []string
}

// DefaultPolicy returns the shipped policy values.
func DefaultPolicy() Policy {
	return Policy{
		FinalizeGrace:       250 * time.Millisecond,
		NoisyFinalizeDelay:  500 * time.Millisecond,
		AwaitWindow:         2 * time.Second,
		AwaitWindowExtended: 5 * time.Second,
		IdleTimeout:         2 * time.Minute,
		AwaitedTypes:        []string{types.ResourceMainFrame, types.ResourceSubFrame},
	}
}

// awaitsType reports whether the resource type is eligible to await a client
// redirect under this policy.
func (p Policy) awaitsType(resourceType string) bool {
	for _, t := range p.AwaitedTypes {
		if t == resourceType {
			return true
		}
	}
	return false
}
