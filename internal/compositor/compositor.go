// Package compositor turns a registry of loaded layers into the ordered,
// visibility-flagged stack the map widget draws.
package compositor

import (
	maperrors "github.com/Zachdehooge/hazard-map/internal/errors"
	"github.com/Zachdehooge/hazard-map/internal/layer"
	"github.com/Zachdehooge/hazard-map/internal/logging"
)

// Entry is one layer in the stack with its initial visibility
type Entry struct {
	Layer   *layer.Layer
	Visible bool
}

// Warning reports a declared layer that did not make it into the stack
type Warning struct {
	Name   string
	Reason string
}

const (
	ReasonNotLoaded = "not loaded"
	ReasonDuplicate = "duplicate in order"
)

// Err returns the warning as a coded error: LAYER_MISSING for a layer that
// never loaded, INVALID_INPUT for a repeated name
func (w Warning) Err() error {
	code := maperrors.ErrInvalidInput
	if w.Reason == ReasonNotLoaded {
		code = maperrors.ErrLayerMissing
	}
	return maperrors.Newf(code, "layer %q %s", w.Name, w.Reason).WithDetail("layer", w.Name)
}

// Stack is the composed layer stack, bottom to top
type Stack struct {
	Entries  []Entry
	Warnings []Warning
}

// Widget is the map collaborator that draws layers
type Widget interface {
	Add(l *layer.Layer)
	SetVisible(name string, visible bool)
}

// Compose emits every name present in both order and registry, once, in
// order's sequence. A name is hidden iff it is in hidden. Names missing
// from the registry produce a warning; registry entries absent from order
// are left out.
func Compose(registry layer.Registry, order []string, hidden []string) Stack {
	logger := logging.GetLogger("compositor")

	hiddenSet := make(map[string]struct{}, len(hidden))
	for _, name := range hidden {
		hiddenSet[name] = struct{}{}
	}

	stack := Stack{Entries: make([]Entry, 0, len(order))}
	seen := make(map[string]struct{}, len(order))

	for _, name := range order {
		if _, dup := seen[name]; dup {
			warn := Warning{Name: name, Reason: ReasonDuplicate}
			stack.Warnings = append(stack.Warnings, warn)
			logger.Warn().Err(warn.Err()).Msg("Layer listed more than once in order, keeping first position")
			continue
		}
		seen[name] = struct{}{}

		l, ok := registry[name]
		if !ok || l == nil {
			warn := Warning{Name: name, Reason: ReasonNotLoaded}
			stack.Warnings = append(stack.Warnings, warn)
			logger.Warn().Err(warn.Err()).Msg("Layer not loaded, skipping")
			continue
		}

		_, isHidden := hiddenSet[name]
		stack.Entries = append(stack.Entries, Entry{Layer: l, Visible: !isHidden})
	}

	for name := range registry {
		if _, ok := seen[name]; !ok {
			logger.Debug().Str("layer", name).Msg("Loaded layer not in order, excluded")
		}
	}

	logger.Debug().
		Int("layers", len(stack.Entries)).
		Int("warnings", len(stack.Warnings)).
		Msg("Stack composed")

	return stack
}

// Names returns the layer names in stack order
func (s Stack) Names() []string {
	names := make([]string, len(s.Entries))
	for i, e := range s.Entries {
		names[i] = e.Layer.Name()
	}
	return names
}

// Visible returns the layers that start out visible, in stack order
func (s Stack) Visible() []*layer.Layer {
	var out []*layer.Layer
	for _, e := range s.Entries {
		if e.Visible {
			out = append(out, e.Layer)
		}
	}
	return out
}

// Apply adds every layer to w bottom to top and sets its visibility
func (s Stack) Apply(w Widget) {
	for _, e := range s.Entries {
		w.Add(e.Layer)
		w.SetVisible(e.Layer.Name(), e.Visible)
	}
}
