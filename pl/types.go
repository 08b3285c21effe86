// Package pl: sentinel errors and shared plot options.
package pl

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"

	"gonum.org/v1/plot/vg"

	"github.com/Oisin-M/cellrank/models"
)

// Rendering defaults.
const (
	// DefaultWidth and DefaultHeight size the canvas.
	DefaultWidth  = 6 * vg.Inch
	DefaultHeight = 4 * vg.Inch

	// DefaultLogOddsEps guards the log-odds ratio against zeros.
	DefaultLogOddsEps = 1e-12

	// bandAlpha is the fill opacity of confidence bands.
	bandAlpha = 60
)

// Sentinel errors.
var (
	// ErrNilInput indicates a nil dataset or lineage.
	ErrNilInput = errors.New("pl: nil input")

	// ErrNoGenes indicates an empty gene list.
	ErrNoGenes = errors.New("pl: no genes given")

	// ErrNilModel indicates a missing model constructor.
	ErrNilModel = errors.New("pl: nil model constructor")

	// ErrBadClusterCount indicates a cluster count outside [1, trends].
	ErrBadClusterCount = errors.New("pl: invalid cluster count")

	// ErrBadColor indicates an unparsable fate color.
	ErrBadColor = errors.New("pl: invalid color")

	// ErrEmptyGroup indicates a categorical annotation with no cells in
	// some group.
	ErrEmptyGroup = errors.New("pl: empty annotation group")
)

// Options configures rendering.
type Options struct {
	// Width and Height size the canvas.
	Width, Height vg.Length

	// Title is the plot title; empty derives one from the inputs.
	Title string

	// PrepareOptions is forwarded to every model preparation.
	PrepareOptions []models.PrepareOption

	// SortByPeak orders heat-map rows by the position of their maximum.
	SortByPeak bool
}

// Option mutates Options.
type Option func(*Options)

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{Width: DefaultWidth, Height: DefaultHeight}
}

// WithSize sets the canvas size in inches (must be positive; panics
// otherwise, programmer error).
func WithSize(width, height float64) Option {
	if width <= 0 || height <= 0 {
		panic("pl: WithSize: dimensions must be positive")
	}

	return func(o *Options) {
		o.Width = vg.Length(width) * vg.Inch
		o.Height = vg.Length(height) * vg.Inch
	}
}

// WithTitle sets the plot title.
func WithTitle(title string) Option {
	return func(o *Options) { o.Title = title }
}

// WithPrepareOptions forwards options to model preparation.
func WithPrepareOptions(opts ...models.PrepareOption) Option {
	return func(o *Options) { o.PrepareOptions = append(o.PrepareOptions, opts...) }
}

// WithSortByPeak orders heat-map rows by peak pseudotime.
func WithSortByPeak() Option {
	return func(o *Options) { o.SortByPeak = true }
}

// hexColor parses "#RRGGBB" into an opaque color.
func hexColor(s string) (color.NRGBA, error) {
	if len(s) != 7 || s[0] != '#' {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrBadColor, s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrBadColor, s)
	}

	return color.NRGBA{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
		A: 255,
	}, nil
}

// withAlpha copies c at the given opacity.
func withAlpha(c color.NRGBA, a uint8) color.NRGBA {
	c.A = a

	return c
}
