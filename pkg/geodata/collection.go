package geodata

import (
	"encoding/json"
	"strconv"

	"github.com/paulmach/orb/geojson"
)

// Property keys carrying hierarchy labels.
const (
	PropState    = "STATE"
	PropDistrict = "DISTRICT"
)

// DemoAreaSentinel marks a placeholder district that is not a real administrative unit.
const DemoAreaSentinel = "FRA_DEMO_AREA"

// Label returns the string value of a property, or "" when absent.
func Label(f *geojson.Feature, key string) string {
	if f == nil {
		return ""
	}
	return stringProp(f.Properties, key)
}

// Labels returns the non-empty values of key across the collection, in feature order.
func Labels(fc *geojson.FeatureCollection, key string) []string {
	if fc == nil {
		return nil
	}
	out := make([]string, 0, len(fc.Features))
	for _, f := range fc.Features {
		if v := Label(f, key); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Exclude returns a new collection without the features whose key equals value.
// The input collection is not modified.
func Exclude(fc *geojson.FeatureCollection, key, value string) *geojson.FeatureCollection {
	out := geojson.NewFeatureCollection()
	if fc == nil {
		return out
	}
	for _, f := range fc.Features {
		if Label(f, key) == value {
			continue
		}
		out.Append(f)
	}
	return out
}

// IsEmpty reports whether the collection is absent or has no features.
func IsEmpty(fc *geojson.FeatureCollection) bool {
	return fc == nil || len(fc.Features) == 0
}

// stringProp safely extracts a string property from GeoJSON properties.
func stringProp(props geojson.Properties, key string) string {
	val, ok := props[key]
	if !ok {
		return ""
	}
	switch v := val.(type) {
	case string:
		return v
	case json.Number:
		return string(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}
