package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"fraatlas/pkg/geodata"
)

// Column maps a shapefile attribute to the property it is published under.
type Column struct {
	Source string
	Target string
}

// readShapefile converts every shape of the file to a feature carrying only the
// mapped properties. Shapes missing any mapped value are skipped.
func readShapefile(path string, columns []Column) (*geojson.FeatureCollection, error) {
	shape, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shapefile: %w", err)
	}
	defer shape.Close()

	index := make(map[string]int)
	for i, f := range shape.Fields() {
		index[strings.ToUpper(f.String())] = i
	}
	cols := make([]int, len(columns))
	for i, c := range columns {
		idx, ok := index[strings.ToUpper(c.Source)]
		if !ok {
			return nil, fmt.Errorf("attribute %q not found in %s", c.Source, filepath.Base(path))
		}
		cols[i] = idx
	}

	fc := geojson.NewFeatureCollection()
	skipped := 0

	for shape.Next() {
		n, p := shape.Shape()

		var geometry orb.Geometry
		switch s := p.(type) {
		case *shp.Null:
			skipped++
			continue
		case *shp.Polygon:
			geometry = convertPolygon(s)
		case *shp.PolyLine:
			geometry = convertPolyLine(s)
		case *shp.Point:
			geometry = orb.Point{s.X, s.Y}
		default:
			log.Printf("Skipping unsupported shape type: %T", p)
			skipped++
			continue
		}

		f := geojson.NewFeature(geometry)
		complete := true
		for i, c := range columns {
			val := strings.Trim(shape.ReadAttribute(n, cols[i]), " \t\x00")
			if val == "" {
				complete = false
				break
			}
			f.Properties[c.Target] = val
		}
		if !complete {
			skipped++
			continue
		}
		fc.Append(f)
	}

	if err := shape.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shapes: %w", err)
	}
	if skipped > 0 {
		log.Printf("Skipped %d shapes without geometry or labels", skipped)
	}
	return fc, nil
}

// writeStates writes the root collection served at /states.
func writeStates(fc *geojson.FeatureCollection, dir string) (string, error) {
	path := filepath.Join(dir, geodata.EndpointStates+".geojson")
	return path, writeCollection(path, fc)
}

// writeDistricts splits fc by state into one document per state, as served at
// /districts/<state>. It returns the written state names in order.
func writeDistricts(fc *geojson.FeatureCollection, dir string) ([]string, error) {
	byState := make(map[string]*geojson.FeatureCollection)
	for _, f := range fc.Features {
		state := geodata.Label(f, geodata.PropState)
		if byState[state] == nil {
			byState[state] = geojson.NewFeatureCollection()
		}
		byState[state].Append(f)
	}

	states := make([]string, 0, len(byState))
	for s := range byState {
		states = append(states, s)
	}
	sort.Strings(states)

	out := filepath.Join(dir, geodata.EndpointDistricts)
	if err := os.MkdirAll(out, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	for _, s := range states {
		if err := writeCollection(filepath.Join(out, fileName(s)), byState[s]); err != nil {
			return nil, err
		}
	}
	return states, nil
}

func fileName(label string) string {
	return strings.NewReplacer("/", "_", `\`, "_").Replace(label) + ".geojson"
}

func writeCollection(path string, fc *geojson.FeatureCollection) error {
	data, err := json.Marshal(fc)
	if err != nil {
		return fmt.Errorf("failed to marshal GeoJSON: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

func parts(numParts int32, partIdx []int32, numPoints int32, pts []shp.Point) []orb.Ring {
	rings := make([]orb.Ring, 0, numParts)
	for i := 0; i < int(numParts); i++ {
		start := partIdx[i]
		end := numPoints
		if i < int(numParts)-1 {
			end = partIdx[i+1]
		}

		ring := make(orb.Ring, 0, end-start)
		for j := start; j < end; j++ {
			ring = append(ring, orb.Point{pts[j].X, pts[j].Y})
		}
		rings = append(rings, ring)
	}
	return rings
}

// convertPolygon groups rings into polygons: shapefile outer rings are
// clockwise, holes counter-clockwise and follow their outer ring.
func convertPolygon(s *shp.Polygon) orb.Geometry {
	var mp orb.MultiPolygon
	for _, ring := range parts(s.NumParts, s.Parts, s.NumPoints, s.Points) {
		if ring.Orientation() == orb.CCW && len(mp) > 0 {
			mp[len(mp)-1] = append(mp[len(mp)-1], ring)
			continue
		}
		mp = append(mp, orb.Polygon{ring})
	}
	if len(mp) == 1 {
		return mp[0]
	}
	return mp
}

func convertPolyLine(s *shp.PolyLine) orb.MultiLineString {
	rings := parts(s.NumParts, s.Parts, s.NumPoints, s.Points)
	ml := make(orb.MultiLineString, len(rings))
	for i, r := range rings {
		ml[i] = orb.LineString(r)
	}
	return ml
}
