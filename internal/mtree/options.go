package mtree

import (
	"fmt"
	"strings"
)

// Promotion selects the two routing objects of a node split.
type Promotion int

const (
	// MMRad tries every pair and keeps the one minimizing the larger of the
	// two resulting covering radii.
	MMRad Promotion = iota
	// MLBDist keeps the entry closest to the old routing object and pairs it
	// with the farthest one.
	MLBDist
	// FarthestPoints picks an approximate diameter of the entries.
	FarthestPoints
	// Random picks two entries with a seeded generator.
	Random
)

func (p Promotion) String() string {
	switch p {
	case MMRad:
		return "mmrad"
	case MLBDist:
		return "mlbdist"
	case FarthestPoints:
		return "farthest"
	case Random:
		return "random"
	default:
		return fmt.Sprintf("Promotion(%d)", int(p))
	}
}

// ParsePromotion parses the names returned by Promotion.String.
func ParsePromotion(name string) (Promotion, error) {
	switch strings.ToLower(name) {
	case "", "mmrad":
		return MMRad, nil
	case "mlbdist":
		return MLBDist, nil
	case "farthest":
		return FarthestPoints, nil
	case "random":
		return Random, nil
	}
	return 0, fmt.Errorf("mtree: unknown promotion %q", name)
}

// Distribution assigns the entries of a split to the two routing objects.
type Distribution int

const (
	// Balanced lets both routing objects alternately take their nearest
	// unassigned entry, producing halves that differ by at most one.
	Balanced Distribution = iota
	// Hyperplane assigns every entry to its nearer routing object, then moves
	// entries until both halves reach the minimum fill.
	Hyperplane
)

func (d Distribution) String() string {
	switch d {
	case Balanced:
		return "balanced"
	case Hyperplane:
		return "hyperplane"
	default:
		return fmt.Sprintf("Distribution(%d)", int(d))
	}
}

// ParseDistribution parses the names returned by Distribution.String.
func ParseDistribution(name string) (Distribution, error) {
	switch strings.ToLower(name) {
	case "", "balanced":
		return Balanced, nil
	case "hyperplane":
		return Hyperplane, nil
	}
	return 0, fmt.Errorf("mtree: unknown distribution %q", name)
}

// Options configures the split policy.
type Options struct {
	Promotion    Promotion
	Distribution Distribution
	// Seed seeds the Random promotion.
	Seed uint64
}

// DefaultOptions returns MMRad promotion with balanced distribution.
func DefaultOptions() Options {
	return Options{Promotion: MMRad, Distribution: Balanced, Seed: 1}
}
