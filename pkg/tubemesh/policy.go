package tubemesh

import (
	"fmt"
)

// DefaultSides is the ring vertex count used when none is configured
const DefaultSides = 30

// RadiusPolicy maps positions along the tree onto tube radii
type RadiusPolicy struct {
	// MaxRadius is the radius at the root's proximal end
	MaxRadius float64

	// MinRadius is the radius at every distal tip
	MinRadius float64

	// Decay scales how fast the radius shrinks toward the tips
	Decay float64
}

// DefaultRadiusPolicy returns the usual vessel rendering settings.
func DefaultRadiusPolicy() RadiusPolicy {
	return RadiusPolicy{MaxRadius: 10, MinRadius: 2, Decay: 1}
}

// InvalidRadiusPolicyError reports a policy that cannot produce radii
type InvalidRadiusPolicyError struct {
	// Policy is the rejected configuration
	Policy RadiusPolicy

	// Reason names the failed constraint
	Reason string
}

func (e *InvalidRadiusPolicyError) Error() string {
	return fmt.Sprintf("invalid radius policy (max %g, min %g, decay %g): %s",
		e.Policy.MaxRadius, e.Policy.MinRadius, e.Policy.Decay, e.Reason)
}

// Validate rejects unusable policies before any mesh work starts.
func (p RadiusPolicy) Validate() error {
	if p.MinRadius <= 0 {
		return &InvalidRadiusPolicyError{Policy: p, Reason: "min radius must be positive"}
	}
	if p.MaxRadius < p.MinRadius {
		return &InvalidRadiusPolicyError{Policy: p, Reason: "max radius below min radius"}
	}
	if p.Decay <= 0 {
		return &InvalidRadiusPolicyError{Policy: p, Reason: "decay must be positive"}
	}
	return nil
}

// radiusAt interpolates between branchMax at the proximal side and MinRadius
// at the tips. The position input is the remaining arc distance toward the
// deepest reachable tip, normalized by the branch's proximal span, so the
// radius shrinks monotonically toward every tip and stays continuous across
// junctions.
func (p RadiusPolicy) radiusAt(branchMax, remaining, span float64) float64 {
	ratio := p.Decay
	if span > 0 {
		ratio = p.Decay * remaining / span
	}
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return p.MinRadius + (branchMax-p.MinRadius)*ratio
}
