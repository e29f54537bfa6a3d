// Package annotate decides which parcel features get a popup and what it says.
package annotate

import (
	"bytes"
	"encoding/json"
	"html/template"
	"log/slog"
	"sort"
	"strconv"

	"github.com/paulmach/orb/geojson"
)

// Property keys of the optional parcel attribute bundle.
const (
	PropHolderName        = "holderName"
	PropTotalAreaAcres    = "totalAreaAcres"
	PropAssetPercentages  = "asset_percentages"
	PropDSSRecommendation = "dss_recommendation"
)

// LayerHandle identifies a rendered feature layer: the feature's index in the
// rendered document.
type LayerHandle int

// Binder attaches annotation content to a rendered layer.
type Binder interface {
	AttachAnnotation(layer LayerHandle, content Content)
}

// AssetShare is one entry of asset_percentages.
type AssetShare struct {
	Asset   string `json:"asset"`
	Percent string `json:"percent"`
}

// Content is the popup content of one feature. Empty fields were absent on the
// feature and are left out of the rendering.
type Content struct {
	HolderName        string       `json:"holder_name"`
	TotalAreaAcres    string       `json:"total_area_acres,omitempty"`
	Assets            []AssetShare `json:"assets,omitempty"`
	AssetsNote        string       `json:"assets_note,omitempty"`
	DSSRecommendation string       `json:"dss_recommendation,omitempty"`
}

var popupTemplate = template.Must(template.New("popup").Parse(`<div class="fra-popup">
<h4>{{.HolderName}}</h4>
{{- with .TotalAreaAcres}}
<p><strong>Total area:</strong> {{.}} acres</p>
{{- end}}
{{- if .Assets}}
<ul class="fra-assets">
{{- range .Assets}}
<li>{{.Asset}}: {{.Percent}}%</li>
{{- end}}
</ul>
{{- end}}
{{- with .AssetsNote}}
<p><strong>Assets:</strong> {{.}}</p>
{{- end}}
{{- with .DSSRecommendation}}
<p><strong>DSS recommendation:</strong> {{.}}</p>
{{- end}}
</div>`))

// HTML renders the popup markup. Property values are escaped.
func (c Content) HTML() string {
	var buf bytes.Buffer
	if err := popupTemplate.Execute(&buf, c); err != nil {
		slog.Error("Failed to render popup", "holder", c.HolderName, "error", err)
		return ""
	}
	return buf.String()
}

// ContentFor builds the annotation for a feature. Features without a
// holderName get none.
func ContentFor(f *geojson.Feature) (Content, bool) {
	if f == nil {
		return Content{}, false
	}
	holder := scalar(f.Properties[PropHolderName])
	if holder == "" {
		return Content{}, false
	}

	c := Content{
		HolderName:        holder,
		TotalAreaAcres:    scalar(f.Properties[PropTotalAreaAcres]),
		DSSRecommendation: scalar(f.Properties[PropDSSRecommendation]),
	}
	switch v := f.Properties[PropAssetPercentages].(type) {
	case map[string]interface{}:
		c.Assets = assetShares(v)
	default:
		c.AssetsNote = scalar(v)
	}
	return c, true
}

// Annotate attaches the feature's popup to layer. It reports whether an
// annotation was attached.
func Annotate(f *geojson.Feature, layer LayerHandle, b Binder) bool {
	c, ok := ContentFor(f)
	if !ok {
		return false
	}
	b.AttachAnnotation(layer, c)
	return true
}

func assetShares(m map[string]interface{}) []AssetShare {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	shares := make([]AssetShare, 0, len(keys))
	for _, k := range keys {
		p := scalar(m[k])
		if p == "" {
			continue
		}
		shares = append(shares, AssetShare{Asset: k, Percent: p})
	}
	return shares
}

// scalar formats a JSON scalar; anything else (absent, null, objects) is "".
func scalar(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return string(t)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}
