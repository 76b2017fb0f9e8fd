// Package smartresize computes bitmap dimensions accepted by vision-language
// models: both sides divisible by a patch factor, total pixels inside a fixed
// budget, aspect ratio kept as close to the source as the two constraints allow.
package smartresize

import (
	"errors"
	"fmt"
	"math"
)

const (
	// DefaultFactor is the patch size every output dimension must be a multiple of
	DefaultFactor = 28
	// DefaultMinPixels is the smallest accepted height*width (56*56)
	DefaultMinPixels = 3136
	// DefaultMaxPixels is the largest accepted height*width
	DefaultMaxPixels = 11289600
	// MaxAspectRatio is the largest long/short side ratio that is accepted
	MaxAspectRatio = 200
)

var (
	// ErrInvalidAspectRatio is returned when max(h,w)/min(h,w) exceeds MaxAspectRatio
	ErrInvalidAspectRatio = errors.New("invalid aspect ratio")
	// ErrInvalidDimensions is returned for non-positive heights or widths
	ErrInvalidDimensions = errors.New("invalid dimensions")
	// ErrInvalidOptions is returned when the factor or pixel budget cannot be satisfied
	ErrInvalidOptions = errors.New("invalid resize options")
)

// Options holds the divisibility factor and the inclusive pixel budget
type Options struct {
	Factor    int `json:"factor"`
	MinPixels int `json:"minPixels"`
	MaxPixels int `json:"maxPixels"`
}

// TargetSize is a normalized (height, width) pair
type TargetSize struct {
	Height int `json:"height"`
	Width  int `json:"width"`
}

// Pixels returns height*width
func (t TargetSize) Pixels() int {
	return t.Height * t.Width
}

// DefaultOptions returns the factor and pixel budget used by the inference backend
func DefaultOptions() Options {
	return Options{
		Factor:    DefaultFactor,
		MinPixels: DefaultMinPixels,
		MaxPixels: DefaultMaxPixels,
	}
}

// Validate checks that at least one factor*factor tile fits the budget
func (o Options) Validate() error {
	switch {
	case o.Factor <= 0:
		return fmt.Errorf("%w: factor must be positive, got %d", ErrInvalidOptions, o.Factor)
	case o.MinPixels <= 0:
		return fmt.Errorf("%w: min pixels must be positive, got %d", ErrInvalidOptions, o.MinPixels)
	case o.MinPixels > o.MaxPixels:
		return fmt.Errorf("%w: min pixels %d greater than max pixels %d", ErrInvalidOptions, o.MinPixels, o.MaxPixels)
	case o.Factor*o.Factor > o.MaxPixels:
		return fmt.Errorf("%w: factor %d too large for max pixels %d", ErrInvalidOptions, o.Factor, o.MaxPixels)
	}
	return nil
}

// RoundByFactor returns the multiple of factor closest to number.
// Ties are resolved half-to-even, so 42 with factor 28 (1.5 units) becomes 56
// and 70 (2.5 units) becomes 56 as well.
func RoundByFactor(number float64, factor int) int {
	return int(math.RoundToEven(number/float64(factor))) * factor
}

// CeilByFactor returns the smallest multiple of factor >= number
func CeilByFactor(number float64, factor int) int {
	return int(math.Ceil(number/float64(factor))) * factor
}

// FloorByFactor returns the largest multiple of factor <= number
func FloorByFactor(number float64, factor int) int {
	return int(math.Floor(number/float64(factor))) * factor
}

// SmartResize rescales (height, width) so that:
//
//  1. both dimensions are divisible by opts.Factor
//  2. height*width lies within [opts.MinPixels, opts.MaxPixels]
//  3. the aspect ratio is kept as closely as possible
//
// When growing to reach MinPixels overshoots MaxPixels, a second shrink pass
// runs on the grown dimensions and the max bound wins.
func SmartResize(height, width int, opts Options) (TargetSize, error) {
	if err := opts.Validate(); err != nil {
		return TargetSize{}, err
	}
	if height <= 0 || width <= 0 {
		return TargetSize{}, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, height, width)
	}

	ratio := float64(max(height, width)) / float64(min(height, width))
	if ratio > MaxAspectRatio {
		return TargetSize{}, fmt.Errorf("%w: absolute aspect ratio must be at most %d, got %.2f",
			ErrInvalidAspectRatio, MaxAspectRatio, ratio)
	}

	factor := opts.Factor
	h, w := float64(height), float64(width)

	hBar := max(factor, RoundByFactor(h, factor))
	wBar := max(factor, RoundByFactor(w, factor))

	switch {
	case hBar*wBar > opts.MaxPixels:
		beta := math.Sqrt(h * w / float64(opts.MaxPixels))
		hBar, wBar = shrink(h, w, beta, factor)

	case hBar*wBar < opts.MinPixels:
		beta := math.Sqrt(float64(opts.MinPixels) / (h * w))
		hBar = CeilByFactor(h*beta, factor)
		wBar = CeilByFactor(w*beta, factor)
		if hBar*wBar > opts.MaxPixels {
			beta = math.Sqrt(float64(hBar*wBar) / float64(opts.MaxPixels))
			hBar, wBar = shrink(float64(hBar), float64(wBar), beta, factor)
		}
	}

	return TargetSize{Height: hBar, Width: wBar}, nil
}

func shrink(h, w, beta float64, factor int) (int, int) {
	return max(factor, FloorByFactor(h/beta, factor)), max(factor, FloorByFactor(w/beta, factor))
}
