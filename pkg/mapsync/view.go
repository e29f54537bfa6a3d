// Package mapsync keeps the map viewport framed on the active dataset.
package mapsync

import (
	"log/slog"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"fraatlas/pkg/annotate"
	"fraatlas/pkg/filter"
)

// Padding is the fit padding in pixels, x then y.
type Padding [2]int

// Viewport is the map widget capability.
type Viewport interface {
	// Render shows fc; nil clears the data layer.
	Render(fc *geojson.FeatureCollection)
	// BoundsOf reports the extent of fc, or false when it has none.
	BoundsOf(fc *geojson.FeatureCollection) (orb.Bound, bool)
	// FlyTo animates the viewport to fit b.
	FlyTo(b orb.Bound, padding Padding, duration time.Duration)
}

// Options configures a View.
type Options struct {
	Padding  Padding
	Duration time.Duration
	Logger   *slog.Logger
}

// View reacts to changes of the active dataset reference. It does not care how
// the dataset was obtained.
type View struct {
	vp       Viewport
	padding  Padding
	duration time.Duration
	logger   *slog.Logger

	last    *geojson.FeatureCollection
	lastRev uint64
}

// NewView creates a view driving vp.
func NewView(vp Viewport, opts Options) *View {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &View{
		vp:       vp,
		padding:  opts.Padding,
		duration: opts.Duration,
		logger:   opts.Logger.With("component", "mapsync"),
	}
}

// OnSnapshot is a filter.Listener. Snapshots that keep the same active dataset
// are ignored.
func (v *View) OnSnapshot(s filter.Snapshot) {
	if s.ActiveRevision == v.lastRev && s.Active == v.last {
		return
	}
	v.lastRev = s.ActiveRevision
	v.Sync(s.Active)
}

// Sync renders fc, annotates its features when the viewport supports it, and
// fits the viewport to it. Empty or absent datasets leave the viewport where it is.
func (v *View) Sync(fc *geojson.FeatureCollection) {
	v.last = fc
	v.vp.Render(fc)

	if fc == nil || len(fc.Features) == 0 {
		return
	}

	if binder, ok := v.vp.(annotate.Binder); ok {
		annotated := 0
		for i, f := range fc.Features {
			if annotate.Annotate(f, annotate.LayerHandle(i), binder) {
				annotated++
			}
		}
		v.logger.Debug("Features annotated", "annotated", annotated, "features", len(fc.Features))
	}

	b, ok := v.vp.BoundsOf(fc)
	if !ok {
		v.logger.Warn("Active dataset has no valid bounds", "features", len(fc.Features))
		return
	}
	v.vp.FlyTo(b, v.padding, v.duration)
}
