// Package colorscale maps message counts onto single-hue color ramps for choropleth maps.
package colorscale

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/jengzang/dmarcviz/internal/models"
	"github.com/jengzang/dmarcviz/internal/stats"
)

// Lightness bounds of the generated ramp
const (
	DefaultMinLightness = 0.0
	DefaultMaxLightness = 0.8
	DefaultBucketCount  = 4
)

var (
	// ErrInvalidColor is returned for base colors that cannot be parsed
	ErrInvalidColor = errors.New("invalid color")
	// ErrInvalidBucketCount is returned when fewer than one bucket is requested
	ErrInvalidBucketCount = errors.New("bucket count must be at least 1")
	// ErrInvalidDomain is returned when a non-degenerate domain has min > max or NaN bounds
	ErrInvalidDomain = errors.New("invalid value domain")
	// ErrInvalidLightness is returned for lightness bounds outside 0 <= min < max <= 1
	ErrInvalidLightness = errors.New("invalid lightness bounds")
)

// Option configures a Binner
type Option func(*Binner)

// WithLightness overrides the lightness bounds of the ramp
func WithLightness(minL, maxL float64) Option {
	return func(b *Binner) {
		b.minL, b.maxL = minL, maxL
	}
}

// WithSample sets the observed values that quantile boundaries are computed from.
// Without a sample the domain end points are the only sample, which yields equal-width buckets.
func WithSample(values []float64) Option {
	return func(b *Binner) {
		sample := make([]float64, 0, len(values))
		for _, v := range values {
			if !math.IsNaN(v) {
				sample = append(sample, v)
			}
		}
		sort.Float64s(sample)
		b.sample = sample
	}
}

// Binner assigns values to quantile buckets of a value domain and each bucket to a shade.
// A Binner is immutable after New and safe for concurrent use.
type Binner struct {
	base       colorful.Color
	minL, maxL float64
	shades     []string
	sample     []float64 // sorted
}

// New creates a binner with bucketCount shades of baseColor
func New(baseColor string, bucketCount int, opts ...Option) (*Binner, error) {
	if bucketCount < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBucketCount, bucketCount)
	}

	base, err := ParseColor(baseColor)
	if err != nil {
		return nil, err
	}

	b := &Binner{
		base: base,
		minL: DefaultMinLightness,
		maxL: DefaultMaxLightness,
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.minL < 0 || b.maxL > 1 || b.minL >= b.maxL {
		return nil, fmt.Errorf("%w: [%g, %g]", ErrInvalidLightness, b.minL, b.maxL)
	}

	b.shades = Shades(b.base, bucketCount, b.minL, b.maxL)
	return b, nil
}

// BucketCount returns the number of buckets
func (b *Binner) BucketCount() int {
	return len(b.shades)
}

// Shades returns the bucket shades from lightest to darkest
func (b *Binner) Shades() []string {
	out := make([]string, len(b.shades))
	copy(out, b.shades)
	return out
}

// ColorFor returns the shade of the bucket that contains value. Values below domainMin
// or above domainMax clamp to the first or last bucket. In a degenerate domain
// (domainMax <= 0 or domainMin == domainMax) every value gets the lightest shade.
func (b *Binner) ColorFor(domainMin, domainMax, value float64) (string, error) {
	if math.IsNaN(value) {
		return "", fmt.Errorf("%w: NaN value", ErrInvalidDomain)
	}

	degenerate, err := checkDomain(domainMin, domainMax)
	if err != nil {
		return "", err
	}
	if degenerate {
		return b.shades[0], nil
	}

	return b.shades[b.index(b.edges(domainMin, domainMax), value)], nil
}

// LegendBuckets returns one bucket per shade, lightest first. Adjacent buckets share a
// boundary, the first lower bound is domainMin and the last upper bound is domainMax.
// In a degenerate domain all buckets are zero-width at domainMax.
//
// Edges are quantiles, so a sample with many equal values yields repeated edges and
// zero-width inner buckets, e.g. {1,1,1,1,1,100} over [1, 100] with four shades gives
// [1,1] [1,1] [1,25.75] [25.75,100]. ColorFor never returns the shade of a zero-width
// inner bucket because a value on a shared edge belongs to the upper bucket.
func (b *Binner) LegendBuckets(domainMin, domainMax float64) ([]models.ColorBucket, error) {
	degenerate, err := checkDomain(domainMin, domainMax)
	if err != nil {
		return nil, err
	}

	n := len(b.shades)
	buckets := make([]models.ColorBucket, n)

	if degenerate {
		for i, shade := range b.shades {
			buckets[i] = models.ColorBucket{LowerBound: domainMax, UpperBound: domainMax, Shade: shade}
		}
		return buckets, nil
	}

	edges := b.edges(domainMin, domainMax)
	for i, shade := range b.shades {
		buckets[i] = models.ColorBucket{LowerBound: edges[i], UpperBound: edges[i+1], Shade: shade}
	}
	return buckets, nil
}

// edges returns the n+1 bucket edges for the domain, quantiles of the sample
// restricted to the domain plus its end points
func (b *Binner) edges(domainMin, domainMax float64) []float64 {
	sample := make([]float64, 0, len(b.sample)+2)
	sample = append(sample, domainMin)
	for _, v := range b.sample {
		if v >= domainMin && v <= domainMax {
			sample = append(sample, v)
		}
	}
	sample = append(sample, domainMax)
	sort.Float64s(sample)

	return stats.Boundaries(sample, len(b.shades))
}

// index finds the bucket of value: the number of inner edges <= value, so a value on an
// inner edge belongs to the upper bucket and the domain maximum to the last one
func (b *Binner) index(edges []float64, value float64) int {
	n := len(b.shades)
	i := stats.BisectRight(edges[1:n], value)
	if i >= n {
		return n - 1
	}
	return i
}

func checkDomain(domainMin, domainMax float64) (degenerate bool, err error) {
	if math.IsNaN(domainMin) || math.IsNaN(domainMax) || math.IsInf(domainMin, 0) || math.IsInf(domainMax, 0) {
		return false, fmt.Errorf("%w: [%g, %g]", ErrInvalidDomain, domainMin, domainMax)
	}
	if domainMax <= 0 || domainMin == domainMax {
		return true, nil
	}
	if domainMin > domainMax {
		return false, fmt.Errorf("%w: min %g > max %g", ErrInvalidDomain, domainMin, domainMax)
	}
	return false, nil
}
