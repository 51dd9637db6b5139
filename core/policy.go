package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownVariant is returned for an unrecognised matching variant name.
var ErrUnknownVariant = errors.New("unknown matching variant")

// Scope selects which candidate pools the engine searches, in order.
type Scope int

const (
	// ScopeParentOnly searches the AP-visible parent list.
	ScopeParentOnly Scope = iota
	// ScopeGroupThenParent searches same-group LOS peers first, then parents.
	ScopeGroupThenParent
	// ScopeAugmentingPath runs an alternating-path search over parents.
	ScopeAugmentingPath
)

func (s Scope) String() string {
	switch s {
	case ScopeParentOnly:
		return "parent-only"
	case ScopeGroupThenParent:
		return "group-then-parent"
	case ScopeAugmentingPath:
		return "augmenting-path"
	default:
		return fmt.Sprintf("Scope(%d)", int(s))
	}
}

func (s Scope) pools() []Pool {
	if s == ScopeGroupThenParent {
		return []Pool{PoolPeers, PoolParents}
	}
	return []Pool{PoolParents}
}

// StealPolicy decides how a node that found nothing in its pools may take
// a pair carried over from the previous timestep.
type StealPolicy int

const (
	// StealNone never breaks carried pairs.
	StealNone StealPolicy = iota
	// StealFirst takes the first ranked parent holding a carried pair.
	StealFirst
	// StealLeastStable takes the carried pair whose holder has changed
	// relay the fewest times.
	StealLeastStable
)

// Contender is one side of a contested relay slot.
type Contender struct {
	Node     NodeID
	Distance float64
}

// Comparator reports whether challenger should take a slot from holder.
// A nil Comparator never displaces.
type Comparator func(g *Graph, challenger, holder Contender) bool

// CompareDistance lets the closer node win, then the taller one.
func CompareDistance(g *Graph, challenger, holder Contender) bool {
	if challenger.Distance != holder.Distance {
		return challenger.Distance < holder.Distance
	}
	return g.nodes[challenger.Node].Pos.Height > g.nodes[holder.Node].Pos.Height
}

// CompareReachability lets the more starved node win, then falls back to
// CompareDistance.
func CompareReachability(g *Graph, challenger, holder Contender) bool {
	rc := g.nodes[challenger.Node].Reachability
	rh := g.nodes[holder.Node].Reachability
	if rc != rh {
		return rc > rh
	}
	return CompareDistance(g, challenger, holder)
}

// Variant names a preset matching policy.
type Variant string

const (
	VariantGreedy       Variant = "greedy"
	VariantGroup        Variant = "group"
	VariantGroupFair    Variant = "group-fair"
	VariantStable       Variant = "stable"
	VariantStableFair   Variant = "stable-fair"
	VariantStableSticky Variant = "stable-sticky"
	VariantMaximal      Variant = "maximal"
)

// Variants lists every preset in a stable order.
func Variants() []Variant {
	return []Variant{
		VariantGreedy,
		VariantGroup,
		VariantGroupFair,
		VariantStable,
		VariantStableFair,
		VariantStableSticky,
		VariantMaximal,
	}
}

// Policy is a fully specified matching configuration.
type Policy struct {
	Variant Variant
	Scope   Scope
	Compare Comparator
	Steal   StealPolicy
}

// PolicyFor returns the preset for a variant.
func PolicyFor(v Variant) (Policy, error) {
	switch v {
	case VariantGreedy:
		return Policy{Variant: v, Scope: ScopeParentOnly, Steal: StealFirst}, nil
	case VariantGroup:
		return Policy{Variant: v, Scope: ScopeGroupThenParent, Compare: CompareDistance, Steal: StealLeastStable}, nil
	case VariantGroupFair:
		return Policy{Variant: v, Scope: ScopeGroupThenParent, Compare: CompareReachability, Steal: StealLeastStable}, nil
	case VariantStable:
		return Policy{Variant: v, Scope: ScopeParentOnly, Compare: CompareDistance, Steal: StealFirst}, nil
	case VariantStableFair:
		return Policy{Variant: v, Scope: ScopeParentOnly, Compare: CompareReachability, Steal: StealLeastStable}, nil
	case VariantStableSticky:
		return Policy{Variant: v, Scope: ScopeParentOnly, Compare: CompareDistance, Steal: StealLeastStable}, nil
	case VariantMaximal:
		return Policy{Variant: v, Scope: ScopeAugmentingPath}, nil
	default:
		return Policy{}, fmt.Errorf("PolicyFor: %q: %w", v, ErrUnknownVariant)
	}
}

// ParseVariant maps a configuration name to a Variant.
func ParseVariant(name string) (Variant, error) {
	v := Variant(strings.ToLower(strings.TrimSpace(name)))
	if _, err := PolicyFor(v); err != nil {
		return "", err
	}
	return v, nil
}
