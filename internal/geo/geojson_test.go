package geo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCollection = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": 1, "geometry": {"type": "Point", "coordinates": [-122.3, 47.6, 12.5]}, "properties": {"name": "a"}},
    {"type": "Feature", "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,0]]]}, "properties": {"zone": "X"}},
    {"type": "Feature", "geometry": null, "properties": {}}
  ]
}`

func TestDecodeFeatureCollection(t *testing.T) {
	fc, err := Decode(strings.NewReader(sampleCollection))
	require.NoError(t, err)
	require.Len(t, fc.Features, 3)

	p, ok := fc.Features[0].Point()
	require.True(t, ok)
	assert.Equal(t, Point{X: -122.3, Y: 47.6}, p)
	assert.Equal(t, "a", fc.Features[0].Properties["name"])

	_, ok = fc.Features[1].Point()
	assert.False(t, ok, "polygon is not a point")
	_, ok = fc.Features[2].Point()
	assert.False(t, ok, "null geometry is not a point")

	assert.Len(t, fc.PointFeatures(), 1)
}

func TestDecodeBareFeature(t *testing.T) {
	fc, err := Decode(strings.NewReader(`{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":null}`))
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "FeatureCollection", fc.Type)
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"type":"Topology"}`))
	assert.Error(t, err)

	_, err = Decode(strings.NewReader(`not json`))
	assert.Error(t, err)
}

func TestSetPointKeepsAltitude(t *testing.T) {
	fc, err := Decode(strings.NewReader(sampleCollection))
	require.NoError(t, err)

	f := fc.Features[0]
	f.SetPoint(Point{X: 1.5, Y: -2})
	assert.JSONEq(t, `[1.5,-2,12.5]`, string(f.Geometry.Coordinates))

	p, ok := f.Point()
	require.True(t, ok)
	assert.Equal(t, Point{X: 1.5, Y: -2}, p)
}

func TestNewPointFeature(t *testing.T) {
	props := map[string]interface{}{"k": "v"}
	f := NewPointFeature(Point{X: 3, Y: 4}, props)
	p, ok := f.Point()
	require.True(t, ok)
	assert.Equal(t, Point{X: 3, Y: 4}, p)
	assert.Equal(t, 5.0, p.Distance(Point{}))
}
