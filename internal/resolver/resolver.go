// Package resolver displaces point features so that no two end up closer
// than a minimum separation.
//
// Features are placed greedily in input order. A feature that lands too
// close to an already placed one is nudged by half the separation in a
// random direction until it is clear. After a bounded number of nudges the
// resolver switches to a deterministic golden-angle spiral around the
// feature's original position. Only when the spiral is exhausted too is the
// feature left where it stands, and the call reports the result as
// incomplete instead of looping forever.
package resolver

import (
	"math"
	"math/rand/v2"

	"github.com/Zachdehooge/hazard-map/internal/errors"
	"github.com/Zachdehooge/hazard-map/internal/geo"
	"github.com/Zachdehooge/hazard-map/internal/logging"
)

// DefaultMaxAttempts is the number of random nudges tried per feature
// before falling back to the spiral
const DefaultMaxAttempts = 64

// goldenAngle in radians; consecutive spiral candidates never line up
var goldenAngle = math.Pi * (3 - math.Sqrt(5))

type options struct {
	rng         *rand.Rand
	maxAttempts int
	spiralLimit int
}

// Option configures a Resolve call
type Option func(*options)

// WithRand sets the random source used for nudge directions
func WithRand(r *rand.Rand) Option {
	return func(o *options) { o.rng = r }
}

// WithSeed makes the nudge directions reproducible
func WithSeed(seed uint64) Option {
	return WithRand(NewRand(seed))
}

// WithMaxAttempts caps the random nudges per feature. Zero goes straight to
// the spiral.
func WithMaxAttempts(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxAttempts = n
		}
	}
}

// WithSpiralLimit caps the spiral candidates per feature. Zero or less picks
// a limit from the number of features already placed.
func WithSpiralLimit(n int) Option {
	return func(o *options) { o.spiralLimit = n }
}

// NewRand returns a PCG-backed source for the given seed
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Resolve moves point features in place until every pair is at least
// minSeparation apart and returns the same slice. Features without Point
// geometry are ignored. Attribute bags are never touched.
//
// A separation of zero is a no-op. If some features could not be cleared
// the slice is still returned, together with a RESOLUTION_INCOMPLETE error
// whose "unresolved" detail holds the count.
func Resolve(features []*geo.Feature, minSeparation float64, opts ...Option) ([]*geo.Feature, error) {
	if math.IsNaN(minSeparation) || math.IsInf(minSeparation, 0) || minSeparation < 0 {
		return features, errors.Newf(errors.ErrInvalidInput, "minimum separation must be a finite value >= 0, got %v", minSeparation)
	}
	if minSeparation == 0 || len(features) == 0 {
		return features, nil
	}

	o := options{maxAttempts: DefaultMaxAttempts}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	placed := newGrid(minSeparation)
	moved, unresolved := 0, 0

	for _, f := range features {
		origin, ok := f.Point()
		if !ok {
			continue
		}

		pos, ok := place(origin, placed, minSeparation, &o)
		if !ok {
			unresolved++
		}
		if pos != origin {
			f.SetPoint(pos)
			moved++
		}
		placed.insert(pos)
	}

	logger := logging.GetLogger("resolver")
	logger.Debug().
		Int("features", len(features)).
		Int("moved", moved).
		Int("unresolved", unresolved).
		Float64("minSeparation", minSeparation).
		Msg("Overlap resolution finished")

	if unresolved > 0 {
		return features, errors.Newf(errors.ErrResolutionIncomplete,
			"%d of %d features still overlap", unresolved, placed.count).
			WithDetail("unresolved", unresolved)
	}
	return features, nil
}

func place(origin geo.Point, placed *grid, minSeparation float64, o *options) (geo.Point, bool) {
	step := minSeparation / 2
	pos := origin
	for attempt := 0; placed.conflicts(pos); attempt++ {
		if attempt >= o.maxAttempts {
			return spiral(origin, placed, minSeparation, o.spiralLimit)
		}
		theta := o.rng.Float64() * 2 * math.Pi
		pos.X += step * math.Cos(theta)
		pos.Y += step * math.Sin(theta)
	}
	return pos, true
}

// spiral walks a Vogel spiral outward from origin. Candidates are spread at
// roughly one per separation-sized disc, so a limit proportional to the
// placed count is enough to get past any cluster.
func spiral(origin geo.Point, placed *grid, minSeparation float64, limit int) (geo.Point, bool) {
	if limit <= 0 {
		limit = 8*placed.count + 32
	}
	for k := 1; k <= limit; k++ {
		r := minSeparation * math.Sqrt(float64(k)+0.5)
		theta := float64(k) * goldenAngle
		c := geo.Point{X: origin.X + r*math.Cos(theta), Y: origin.Y + r*math.Sin(theta)}
		if !placed.conflicts(c) {
			return c, true
		}
	}
	return origin, false
}
