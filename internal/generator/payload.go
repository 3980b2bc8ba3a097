package generator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/natefinch/atomic"

	"github.com/Zachdehooge/hazard-map/internal/geo"
	"github.com/Zachdehooge/hazard-map/internal/layer"
	"github.com/Zachdehooge/hazard-map/internal/session"
)

// LayerJSON is one stacked layer as the browser draws it
type LayerJSON struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name"`
	Visible  bool                   `json:"visible"`
	Geometry string                 `json:"geometry"`
	Style    layer.Style            `json:"style"`
	Info     *InfoJSON              `json:"info,omitempty"`
	Count    int                    `json:"count"`
	Data     *geo.FeatureCollection `json:"data"`
}

// InfoJSON carries sanitized info panel content
type InfoJSON struct {
	Title string `json:"title"`
	HTML  string `json:"html"`
}

// ProblemJSON reports a layer that is missing from the stack
type ProblemJSON struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Payload is the full structure written to the payload file on every build
type Payload struct {
	Title        string        `json:"title"`
	Center       []float64     `json:"center"`
	Zoom         int           `json:"zoom"`
	Basemap      string        `json:"basemap"`
	Attribution  string        `json:"attribution"`
	Layers       []LayerJSON   `json:"layers"`
	Problems     []ProblemJSON `json:"problems"`
	LastUpdated  string        `json:"lastUpdated"`
	UpdatedAtUTC int64         `json:"updatedAtUTC"`
}

// BuildPayload converts a snapshot into its JSON shape, bottom layer first
func BuildPayload(snap *session.Snapshot) Payload {
	p := Payload{
		Title:        snap.Map.Title,
		Center:       snap.Map.Center,
		Zoom:         snap.Map.Zoom,
		Basemap:      snap.Map.Basemap,
		Attribution:  snap.Map.Attribution,
		Layers:       make([]LayerJSON, 0, len(snap.Stack.Entries)),
		Problems:     []ProblemJSON{},
		LastUpdated:  snap.BuiltAt.UTC().Format("Jan 2, 2006 at 15:04:05 UTC"),
		UpdatedAtUTC: snap.BuiltAt.UTC().Unix(),
	}

	for _, e := range snap.Stack.Entries {
		ds := e.Layer.Dataset
		lj := LayerJSON{
			ID:       layerID(ds.Name),
			Name:     ds.Name,
			Visible:  e.Visible,
			Geometry: ds.Geometry,
			Style:    ds.Style,
			Count:    e.Layer.Len(),
			Data:     e.Layer.Features,
		}
		if lj.Data == nil {
			lj.Data = &geo.FeatureCollection{Type: "FeatureCollection", Features: []*geo.Feature{}}
		}
		if ds.Info != nil {
			lj.Info = &InfoJSON{Title: ds.Info.Title, HTML: string(SanitizeInfo(ds.Info.HTML))}
		}
		p.Layers = append(p.Layers, lj)
	}

	failed := make(map[string]error)
	for _, r := range snap.FailedLoads() {
		failed[r.Name] = r.Err
	}
	for _, w := range snap.Stack.Warnings {
		reason := w.Reason
		if err, ok := failed[w.Name]; ok {
			reason = err.Error()
		}
		p.Problems = append(p.Problems, ProblemJSON{Name: w.Name, Reason: reason})
	}
	return p
}

// WritePayload writes the snapshot's payload atomically so the browser
// never reads a partial file
func WritePayload(snap *session.Snapshot, outputPath string) error {
	data, err := json.Marshal(BuildPayload(snap))
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	if err := atomic.WriteFile(outputPath, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %s failed: %w", outputPath, err)
	}
	return nil
}

func formatBuiltAt(t time.Time) string {
	return t.Local().Format("Jan 2, 2006 at 3:04 PM MST")
}
