package generator

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zachdehooge/hazard-map/internal/compositor"
	"github.com/Zachdehooge/hazard-map/internal/config"
	"github.com/Zachdehooge/hazard-map/internal/fetcher"
	"github.com/Zachdehooge/hazard-map/internal/geo"
	"github.com/Zachdehooge/hazard-map/internal/layer"
	"github.com/Zachdehooge/hazard-map/internal/session"
)

func testSnapshot() *session.Snapshot {
	zones := &layer.Layer{
		Dataset: layer.Dataset{
			Name:     "Evacuation Zones",
			Geometry: "polygon",
			Style:    layer.Style{Kind: layer.StyleSimple, Color: "#3388ff"},
		},
		Features: &geo.FeatureCollection{Type: "FeatureCollection", Features: []*geo.Feature{}},
	}
	impacts := &layer.Layer{
		Dataset: layer.Dataset{
			Name:     "HSZ Impact Points",
			Geometry: "point",
			Style: layer.Style{
				Kind:   layer.StyleUnique,
				Field:  "impact",
				Values: map[string]string{"Low": "#00ff00", "High": "#ff0000"},
			},
			Info: &layer.Info{
				Title: "Scenario impacts",
				HTML:  `<p onclick="steal()">Modelled impacts</p><script>alert(1)</script>`,
			},
		},
		Features: &geo.FeatureCollection{Type: "FeatureCollection", Features: []*geo.Feature{
			geo.NewPointFeature(geo.Point{X: 1, Y: 2}, map[string]interface{}{"impact": "High"}),
		}},
	}

	return &session.Snapshot{
		Map: config.MapConfig{Title: "Scenario Map", Center: []float64{47.6, -122.3}, Zoom: 9, Basemap: "https://tiles.example.org/{z}/{x}/{y}.png"},
		Stack: compositor.Stack{
			Entries: []compositor.Entry{
				{Layer: zones, Visible: true},
				{Layer: impacts, Visible: false},
			},
			Warnings: []compositor.Warning{{Name: "Tsunami Inundation", Reason: compositor.ReasonNotLoaded}},
		},
		Loads: []fetcher.Result{
			{Name: "Evacuation Zones"},
			{Name: "HSZ Impact Points", Features: 1},
			{Name: "Tsunami Inundation", Err: errors.New("HTTP 404")},
		},
		BuiltAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestBuildPayload(t *testing.T) {
	p := BuildPayload(testSnapshot())

	require.Len(t, p.Layers, 2)
	assert.Equal(t, "Evacuation Zones", p.Layers[0].Name)
	assert.True(t, p.Layers[0].Visible)
	assert.Equal(t, "HSZ Impact Points", p.Layers[1].Name)
	assert.False(t, p.Layers[1].Visible)
	assert.Equal(t, 1, p.Layers[1].Count)
	assert.Equal(t, "layer-hsz-impact-points", p.Layers[1].ID)

	require.NotNil(t, p.Layers[1].Info)
	assert.NotContains(t, p.Layers[1].Info.HTML, "<script>")
	assert.NotContains(t, p.Layers[1].Info.HTML, "onclick")
	assert.Contains(t, p.Layers[1].Info.HTML, "Modelled impacts")

	assert.Equal(t, []ProblemJSON{{Name: "Tsunami Inundation", Reason: "HTTP 404"}}, p.Problems)
	assert.Equal(t, int64(1772366400), p.UpdatedAtUTC)
}

func TestWritePayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layers.json")
	require.NoError(t, WritePayload(testSnapshot(), path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded struct {
		Title  string `json:"title"`
		Layers []struct {
			Name    string          `json:"name"`
			Visible bool            `json:"visible"`
			Data    json.RawMessage `json:"data"`
		} `json:"layers"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "Scenario Map", decoded.Title)
	require.Len(t, decoded.Layers, 2)
	assert.Equal(t, "HSZ Impact Points", decoded.Layers[1].Name)
	assert.Contains(t, string(decoded.Layers[1].Data), `"coordinates":[1,2]`)
}

func TestBuildPanel(t *testing.T) {
	p := BuildPanel(testSnapshot().Stack)

	require.Len(t, p.Buttons, 2)
	assert.Equal(t, "HSZ Impact Points", p.Buttons[0].Name, "top layer listed first")
	assert.False(t, p.Buttons[0].Visible)
	assert.Equal(t, "Evacuation Zones", p.Buttons[1].Name)

	require.Len(t, p.Info, 1)
	assert.Equal(t, "Scenario impacts", p.Info[0].Title)
	assert.NotContains(t, string(p.Info[0].Content), "script")

	assert.Equal(t, []LegendItem{
		{Label: "HSZ Impact Points: High", Color: "#ff0000"},
		{Label: "HSZ Impact Points: Low", Color: "#00ff00"},
		{Label: "Evacuation Zones", Color: "#3388ff"},
	}, p.Legend)
}

func TestLayerID(t *testing.T) {
	assert.Equal(t, "layer-hsz-impact-points", layerID("HSZ Impact Points"))
	assert.Equal(t, "layer-a-b", layerID("  A / B!"))
	assert.Equal(t, "layer", layerID(""))
}

func TestLayerIDsStableAcrossStackChanges(t *testing.T) {
	full := testSnapshot()
	partial := testSnapshot()
	partial.Stack.Entries = partial.Stack.Entries[1:]

	page := BuildPanel(partial.Stack)
	require.Len(t, page.Buttons, 1)

	refreshed := BuildPayload(full)
	require.Len(t, refreshed.Layers, 2)
	assert.Equal(t, page.Buttons[0].ID, refreshed.Layers[1].ID)
	assert.Equal(t, BuildPayload(partial).Layers[0].ID, refreshed.Layers[1].ID)
}

func TestGenerateMapHTML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.html")
	require.NoError(t, GenerateMapHTML(testSnapshot(), path, PageOptions{PayloadURL: "layers.json", Refresh: time.Minute}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	page := string(raw)

	assert.Contains(t, page, "<title>Scenario Map</title>")
	assert.Contains(t, page, `data-layer="layer-hsz-impact-points"`)
	assert.Contains(t, page, "Scenario impacts")
	assert.NotContains(t, page, "alert(1)")
	assert.Regexp(t, `const refreshSeconds =\s*60\s*;`, page)

	zones := strings.Index(page, `id="btn-layer-evacuation-zones"`)
	impacts := strings.Index(page, `id="btn-layer-hsz-impact-points"`)
	require.True(t, zones > 0 && impacts > 0)
	assert.Less(t, impacts, zones, "top layer button rendered first")
	assert.Contains(t, page, "renderButtons();")
}

type fakeBuilder struct {
	calls int32
	err   error
}

func (f *fakeBuilder) Build(ctx context.Context) (*session.Snapshot, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return testSnapshot(), nil
}

func TestGenerateWritesBothOutputs(t *testing.T) {
	dir := t.TempDir()
	out := Outputs{HTML: filepath.Join(dir, "map.html"), Payload: filepath.Join(dir, "layers.json")}

	snap, err := Generate(context.Background(), &fakeBuilder{}, out)
	require.NoError(t, err)
	assert.Len(t, snap.Stack.Entries, 2)
	assert.FileExists(t, out.HTML)
	assert.FileExists(t, out.Payload)
}

func TestGeneratePropagatesBuildError(t *testing.T) {
	dir := t.TempDir()
	out := Outputs{HTML: filepath.Join(dir, "map.html")}

	_, err := Generate(context.Background(), &fakeBuilder{err: errors.New("closed")}, out)
	assert.Error(t, err)
	assert.NoFileExists(t, out.HTML)
}

func TestRunPollerStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	b := &fakeBuilder{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		RunPoller(ctx, b, Outputs{Payload: filepath.Join(dir, "layers.json")}, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&b.calls) >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}
}
