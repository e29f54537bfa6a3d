package annotate

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBinder struct {
	attached map[LayerHandle]Content
}

func (r *recordingBinder) AttachAnnotation(layer LayerHandle, content Content) {
	if r.attached == nil {
		r.attached = make(map[LayerHandle]Content)
	}
	r.attached[layer] = content
}

func parcel(props map[string]interface{}) *geojson.Feature {
	f := geojson.NewFeature(orb.Point{86.4, 21.9})
	for k, v := range props {
		f.Properties[k] = v
	}
	return f
}

func TestAnnotate(t *testing.T) {
	tests := []struct {
		name     string
		props    map[string]interface{}
		attached bool
		want     Content
	}{
		{
			name: "FullBundle",
			props: map[string]interface{}{
				PropHolderName:        "Sita Majhi",
				PropTotalAreaAcres:    2.5,
				PropAssetPercentages:  map[string]interface{}{"water": 10.0, "forest": 60.0, "agriculture": 30.0},
				PropDSSRecommendation: "Eligible for PM-KISAN",
			},
			attached: true,
			want: Content{
				HolderName:     "Sita Majhi",
				TotalAreaAcres: "2.5",
				Assets: []AssetShare{
					{Asset: "agriculture", Percent: "30"},
					{Asset: "forest", Percent: "60"},
					{Asset: "water", Percent: "10"},
				},
				DSSRecommendation: "Eligible for PM-KISAN",
			},
		},
		{
			name:     "HolderOnly",
			props:    map[string]interface{}{PropHolderName: "Ramu Hansda"},
			attached: true,
			want:     Content{HolderName: "Ramu Hansda"},
		},
		{
			name:     "NoHolder",
			props:    map[string]interface{}{PropTotalAreaAcres: 4.0, "DISTRICT": "Mayurbhanj"},
			attached: false,
		},
		{
			name:     "EmptyHolder",
			props:    map[string]interface{}{PropHolderName: ""},
			attached: false,
		},
		{
			name:     "AssetsAsText",
			props:    map[string]interface{}{PropHolderName: "Ramu Hansda", PropAssetPercentages: "forest 70%"},
			attached: true,
			want:     Content{HolderName: "Ramu Hansda", AssetsNote: "forest 70%"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &recordingBinder{}
			got := Annotate(parcel(tt.props), 3, b)
			assert.Equal(t, tt.attached, got)
			if !tt.attached {
				assert.Empty(t, b.attached)
				return
			}
			require.Contains(t, b.attached, LayerHandle(3))
			assert.Equal(t, tt.want, b.attached[3])
		})
	}
}

func TestContentFor_Nil(t *testing.T) {
	_, ok := ContentFor(nil)
	assert.False(t, ok)
}

func TestContent_HTML_OmitsAbsentFields(t *testing.T) {
	html := Content{HolderName: "Ramu Hansda"}.HTML()
	assert.Contains(t, html, "<h4>Ramu Hansda</h4>")
	assert.NotContains(t, html, "Total area")
	assert.NotContains(t, html, "DSS recommendation")
	assert.NotContains(t, html, "<ul")
	assert.NotContains(t, html, "N/A")
}

func TestContent_HTML_Full(t *testing.T) {
	html := Content{
		HolderName:        "Sita <Majhi>",
		TotalAreaAcres:    "2.5",
		Assets:            []AssetShare{{Asset: "forest", Percent: "60"}},
		DSSRecommendation: "Eligible",
	}.HTML()

	assert.Contains(t, html, "Sita &lt;Majhi&gt;")
	assert.Contains(t, html, "2.5 acres")
	assert.Contains(t, html, "<li>forest: 60%</li>")
	assert.Contains(t, html, "DSS recommendation:</strong> Eligible")
}
