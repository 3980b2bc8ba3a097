// Package layer defines the datasets a map is built from and the loaded
// layer handles that the compositor stacks.
package layer

import (
	"time"

	"github.com/Zachdehooge/hazard-map/internal/geo"
)

// Style kinds, mirroring the simple, unique-value and picture-marker
// renderers of the map widget
const (
	StyleSimple  = "simple"
	StyleUnique  = "unique"
	StylePicture = "picture"
)

// Style is the style descriptor handed to the map widget
type Style struct {
	Kind        string            `koanf:"kind" json:"kind" yaml:"kind"`
	Color       string            `koanf:"color" json:"color,omitempty" yaml:"color,omitempty"`
	FillOpacity float64           `koanf:"fill_opacity" json:"fillOpacity,omitempty" yaml:"fill_opacity,omitempty"`
	Weight      float64           `koanf:"weight" json:"weight,omitempty" yaml:"weight,omitempty"`
	Radius      float64           `koanf:"radius" json:"radius,omitempty" yaml:"radius,omitempty"`
	Field       string            `koanf:"field" json:"field,omitempty" yaml:"field,omitempty"`
	Values      map[string]string `koanf:"values" json:"values,omitempty" yaml:"values,omitempty"`
	IconURL     string            `koanf:"icon_url" json:"iconUrl,omitempty" yaml:"icon_url,omitempty"`
}

// Info is the popup and info panel content of a layer
type Info struct {
	Title string `koanf:"title" json:"title" yaml:"title"`
	HTML  string `koanf:"html" json:"html" yaml:"html"`
}

// Dataset declares one remote GeoJSON source
type Dataset struct {
	Name     string `koanf:"name" json:"name" yaml:"name"`
	URL      string `koanf:"url" json:"url" yaml:"url"`
	Geometry string `koanf:"geometry" json:"geometry" yaml:"geometry"`
	// Displace runs the overlap resolver over the layer's point features
	Displace bool  `koanf:"displace" json:"displace" yaml:"displace"`
	Style    Style `koanf:"style" json:"style" yaml:"style"`
	Info     *Info `koanf:"info" json:"info,omitempty" yaml:"info,omitempty"`
}

// Layer is a loaded dataset. Its identity is its name.
type Layer struct {
	Dataset  Dataset
	Features *geo.FeatureCollection
	LoadedAt time.Time
}

// Name returns the layer's unique name
func (l *Layer) Name() string {
	return l.Dataset.Name
}

// Len returns the number of features in the layer
func (l *Layer) Len() int {
	if l.Features == nil {
		return 0
	}
	return len(l.Features.Features)
}

// Registry maps layer names to loaded layers
type Registry map[string]*Layer

// Add stores l under its name, replacing any previous layer of that name
func (r Registry) Add(l *Layer) {
	r[l.Name()] = l
}
