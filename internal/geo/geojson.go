// Package geo holds the GeoJSON shapes passed between the fetcher, the
// overlap resolver and the page generator.
package geo

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
)

// Point is a planar coordinate. For GeoJSON input X is longitude and Y latitude.
type Point struct {
	X float64
	Y float64
}

// Distance is the Euclidean distance in coordinate units
func (p Point) Distance(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Geometry mirrors a GeoJSON geometry object. Coordinates stay raw so that
// polygons and lines pass through untouched.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates,omitempty"`
}

// Feature is a geometry with an opaque attribute bag
type Feature struct {
	Type       string                 `json:"type"`
	ID         json.RawMessage        `json:"id,omitempty"`
	Geometry   *Geometry              `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

// FeatureCollection is a GeoJSON FeatureCollection
type FeatureCollection struct {
	Type     string     `json:"type"`
	Features []*Feature `json:"features"`
}

// NewPointFeature builds a Point feature with the given properties
func NewPointFeature(p Point, props map[string]interface{}) *Feature {
	f := &Feature{Type: "Feature", Geometry: &Geometry{Type: "Point"}, Properties: props}
	f.SetPoint(p)
	return f
}

// Point returns the position of a Point feature. ok is false for any other
// geometry or malformed coordinates.
func (f *Feature) Point() (Point, bool) {
	coords, ok := f.pointCoords()
	if !ok {
		return Point{}, false
	}
	return Point{X: coords[0], Y: coords[1]}, true
}

// SetPoint moves a Point feature, keeping any altitude component
func (f *Feature) SetPoint(p Point) {
	coords, ok := f.pointCoords()
	if !ok {
		coords = make([]float64, 2)
	}
	coords[0], coords[1] = p.X, p.Y
	raw, _ := json.Marshal(coords)
	if f.Geometry == nil {
		f.Geometry = &Geometry{Type: "Point"}
	}
	f.Geometry.Coordinates = raw
}

func (f *Feature) pointCoords() ([]float64, bool) {
	if f.Geometry == nil || f.Geometry.Type != "Point" || len(f.Geometry.Coordinates) == 0 {
		return nil, false
	}
	var coords []float64
	if err := json.Unmarshal(f.Geometry.Coordinates, &coords); err != nil || len(coords) < 2 {
		return nil, false
	}
	return coords, true
}

// Decode reads a GeoJSON document. A bare Feature is wrapped in a collection.
func Decode(r io.Reader) (*FeatureCollection, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read GeoJSON: %w", err)
	}

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(body, &head); err != nil {
		return nil, fmt.Errorf("failed to parse GeoJSON: %w", err)
	}

	switch head.Type {
	case "FeatureCollection":
		var fc FeatureCollection
		if err := json.Unmarshal(body, &fc); err != nil {
			return nil, fmt.Errorf("failed to parse FeatureCollection: %w", err)
		}
		if fc.Features == nil {
			fc.Features = []*Feature{}
		}
		return &fc, nil
	case "Feature":
		var f Feature
		if err := json.Unmarshal(body, &f); err != nil {
			return nil, fmt.Errorf("failed to parse Feature: %w", err)
		}
		return &FeatureCollection{Type: "FeatureCollection", Features: []*Feature{&f}}, nil
	default:
		return nil, fmt.Errorf("unsupported GeoJSON type %q", head.Type)
	}
}

// PointFeatures returns the subset of features carrying Point geometry
func (fc *FeatureCollection) PointFeatures() []*Feature {
	var out []*Feature
	for _, f := range fc.Features {
		if _, ok := f.Point(); ok {
			out = append(out, f)
		}
	}
	return out
}
