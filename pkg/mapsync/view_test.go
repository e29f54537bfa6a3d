package mapsync

import (
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraatlas/pkg/annotate"
	"fraatlas/pkg/filter"
)

type flyTo struct {
	bound    orb.Bound
	padding  Padding
	duration time.Duration
}

type recordingViewport struct {
	rendered    []*geojson.FeatureCollection
	flights     []flyTo
	annotations map[annotate.LayerHandle]annotate.Content
}

func (r *recordingViewport) Render(fc *geojson.FeatureCollection) {
	r.rendered = append(r.rendered, fc)
}

func (r *recordingViewport) BoundsOf(fc *geojson.FeatureCollection) (orb.Bound, bool) {
	return Bounds(fc)
}

func (r *recordingViewport) FlyTo(b orb.Bound, p Padding, d time.Duration) {
	r.flights = append(r.flights, flyTo{b, p, d})
}

func (r *recordingViewport) AttachAnnotation(layer annotate.LayerHandle, c annotate.Content) {
	if r.annotations == nil {
		r.annotations = make(map[annotate.LayerHandle]annotate.Content)
	}
	r.annotations[layer] = c
}

// plainViewport cannot attach annotations.
type plainViewport struct {
	rec *recordingViewport
}

func (p plainViewport) Render(fc *geojson.FeatureCollection) { p.rec.Render(fc) }

func (p plainViewport) BoundsOf(fc *geojson.FeatureCollection) (orb.Bound, bool) {
	return p.rec.BoundsOf(fc)
}

func (p plainViewport) FlyTo(b orb.Bound, pad Padding, d time.Duration) { p.rec.FlyTo(b, pad, d) }

func twoParcels() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	a := geojson.NewFeature(orb.Polygon{{{86.0, 21.5}, {86.5, 21.5}, {86.5, 22.0}, {86.0, 22.0}, {86.0, 21.5}}})
	a.Properties[annotate.PropHolderName] = "Sita Majhi"
	b := geojson.NewFeature(orb.Point{87.0, 21.0})
	fc.Append(a)
	fc.Append(b)
	return fc
}

func newTestView(vp Viewport) *View {
	return NewView(vp, Options{Padding: Padding{50, 50}, Duration: 1500 * time.Millisecond})
}

func TestSync_FitsNonEmptyDataset(t *testing.T) {
	vp := &recordingViewport{}
	v := newTestView(vp)

	fc := twoParcels()
	v.Sync(fc)

	require.Len(t, vp.rendered, 1)
	assert.Same(t, fc, vp.rendered[0])
	require.Len(t, vp.flights, 1)
	assert.Equal(t, orb.Bound{Min: orb.Point{86.0, 21.0}, Max: orb.Point{87.0, 22.0}}, vp.flights[0].bound)
	assert.Equal(t, Padding{50, 50}, vp.flights[0].padding)
	assert.Equal(t, 1500*time.Millisecond, vp.flights[0].duration)

	// only the feature with a holderName is annotated
	require.Len(t, vp.annotations, 1)
	assert.Equal(t, "Sita Majhi", vp.annotations[0].HolderName)
}

func TestSync_Idempotent(t *testing.T) {
	vp := &recordingViewport{}
	v := newTestView(vp)

	fc := twoParcels()
	v.Sync(fc)
	v.Sync(fc)

	require.Len(t, vp.flights, 2)
	assert.Equal(t, vp.flights[0], vp.flights[1])
}

func TestSync_EmptyOrAbsentIssuesNoFlight(t *testing.T) {
	vp := &recordingViewport{}
	v := newTestView(vp)

	v.Sync(nil)
	v.Sync(geojson.NewFeatureCollection())

	assert.Len(t, vp.rendered, 2, "empty datasets are still rendered (as nothing)")
	assert.Empty(t, vp.flights)
}

func TestSync_NoGeometryIssuesNoFlight(t *testing.T) {
	vp := &recordingViewport{}
	v := newTestView(vp)

	fc := geojson.NewFeatureCollection()
	fc.Append(&geojson.Feature{Type: "Feature", Properties: geojson.Properties{}})
	v.Sync(fc)

	assert.Empty(t, vp.flights)
}

func TestSync_ViewportWithoutBinder(t *testing.T) {
	rec := &recordingViewport{}
	v := newTestView(plainViewport{rec: rec})

	v.Sync(twoParcels())
	assert.Len(t, rec.flights, 1)
	assert.Empty(t, rec.annotations)
}

func TestOnSnapshot_ReactsToActiveReferenceOnly(t *testing.T) {
	vp := &recordingViewport{}
	v := newTestView(vp)

	fc := twoParcels()
	// nothing active yet, then an activation, then an unrelated district list update
	v.OnSnapshot(filter.Snapshot{Revision: 1})
	v.OnSnapshot(filter.Snapshot{Revision: 2, Active: fc, ActiveRevision: 1})
	v.OnSnapshot(filter.Snapshot{Revision: 3, Active: fc, ActiveRevision: 1, Districts: []string{"Mayurbhanj"}})
	assert.Len(t, vp.rendered, 1)
	assert.Len(t, vp.flights, 1)

	cleared := geojson.NewFeatureCollection()
	v.OnSnapshot(filter.Snapshot{Revision: 4, Active: cleared, ActiveRevision: 2})
	assert.Len(t, vp.rendered, 2)
	assert.Len(t, vp.flights, 1, "empty dataset keeps the last viewport")
}

func TestBounds(t *testing.T) {
	b, ok := Bounds(twoParcels())
	require.True(t, ok)
	assert.Equal(t, orb.Point{86.0, 21.0}, b.Min)
	assert.Equal(t, orb.Point{87.0, 22.0}, b.Max)

	_, ok = Bounds(nil)
	assert.False(t, ok)

	empty := geojson.NewFeatureCollection()
	empty.Append(geojson.NewFeature(orb.MultiPolygon{}))
	_, ok = Bounds(empty)
	assert.False(t, ok)
}
