package generator

import (
	"html/template"
	"sort"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"

	"github.com/Zachdehooge/hazard-map/internal/compositor"
	"github.com/Zachdehooge/hazard-map/internal/layer"
)

// Button is one layer toggle in the UI panel
type Button struct {
	ID      string
	Name    string
	Visible bool
	Color   string
}

// InfoItem is one entry of the info panel
type InfoItem struct {
	ID      string
	Title   string
	Content template.HTML
}

// LegendItem maps a colour to a label
type LegendItem struct {
	Label string
	Color string
}

// Panel is everything the UI panel renders beside the map
type Panel struct {
	Buttons []Button
	Info    []InfoItem
	Legend  []LegendItem
}

var infoPolicy = bluemonday.UGCPolicy()

// SanitizeInfo strips anything from configured info HTML that could run
// script in the page
func SanitizeInfo(html string) template.HTML {
	return template.HTML(infoPolicy.Sanitize(html))
}

// BuildPanel derives the toggle buttons, info panel and legend from a
// stack, top layer first as map layer controls usually list them
func BuildPanel(stack compositor.Stack) Panel {
	var p Panel
	for i := len(stack.Entries) - 1; i >= 0; i-- {
		e := stack.Entries[i]
		ds := e.Layer.Dataset
		id := layerID(ds.Name)

		p.Buttons = append(p.Buttons, Button{
			ID:      id,
			Name:    ds.Name,
			Visible: e.Visible,
			Color:   ds.Style.Color,
		})
		if ds.Info != nil {
			title := ds.Info.Title
			if title == "" {
				title = ds.Name
			}
			p.Info = append(p.Info, InfoItem{ID: id, Title: title, Content: SanitizeInfo(ds.Info.HTML)})
		}
		p.Legend = append(p.Legend, legendFor(ds)...)
	}
	return p
}

func legendFor(ds layer.Dataset) []LegendItem {
	if ds.Style.Kind != layer.StyleUnique || len(ds.Style.Values) == 0 {
		if ds.Style.Color == "" {
			return nil
		}
		return []LegendItem{{Label: ds.Name, Color: ds.Style.Color}}
	}
	values := make([]string, 0, len(ds.Style.Values))
	for v := range ds.Style.Values {
		values = append(values, v)
	}
	sort.Strings(values)

	items := make([]LegendItem, 0, len(values))
	for _, v := range values {
		items = append(items, LegendItem{Label: ds.Name + ": " + v, Color: ds.Style.Values[v]})
	}
	return items
}

// layerID turns a layer name into a DOM-safe identifier. It depends on the
// name alone so a layer keeps its id when other layers come and go between
// builds.
func layerID(name string) string {
	var b strings.Builder
	b.WriteString("layer-")
	dash := true
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
