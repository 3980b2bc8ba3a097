package compositor

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	maperrors "github.com/Zachdehooge/hazard-map/internal/errors"
	"github.com/Zachdehooge/hazard-map/internal/layer"
)

func handle(name string) *layer.Layer {
	return &layer.Layer{Dataset: layer.Dataset{Name: name}}
}

type pair struct {
	layer   *layer.Layer
	visible bool
}

func pairs(s Stack) []pair {
	out := make([]pair, len(s.Entries))
	for i, e := range s.Entries {
		out[i] = pair{e.Layer, e.Visible}
	}
	return out
}

func TestComposeSkipsMissingWithWarning(t *testing.T) {
	h1, h3 := handle("A"), handle("C")
	registry := layer.Registry{"A": h1, "C": h3}

	stack := Compose(registry, []string{"A", "B", "C"}, nil)

	assert.Equal(t, []pair{{h1, true}, {h3, true}}, pairs(stack))
	assert.Equal(t, []Warning{{Name: "B", Reason: ReasonNotLoaded}}, stack.Warnings)
}

func TestWarningErr(t *testing.T) {
	missing := Warning{Name: "B", Reason: ReasonNotLoaded}.Err()
	assert.True(t, maperrors.IsErrorCode(missing, maperrors.ErrLayerMissing))
	assert.Equal(t, "B", maperrors.GetErrorDetails(missing)["layer"])
	assert.Contains(t, missing.Error(), `"B" not loaded`)

	dup := Warning{Name: "A", Reason: ReasonDuplicate}.Err()
	assert.True(t, maperrors.IsErrorCode(dup, maperrors.ErrInvalidInput))
}

func TestComposeHiddenByDefault(t *testing.T) {
	h1, h2, h3 := handle("A"), handle("B"), handle("C")
	registry := layer.Registry{"A": h1, "B": h2, "C": h3}

	stack := Compose(registry, []string{"A", "B", "C"}, []string{"C"})

	assert.Equal(t, []pair{{h1, true}, {h2, true}, {h3, false}}, pairs(stack))
	assert.Empty(t, stack.Warnings)
	assert.Equal(t, []*layer.Layer{h1, h2}, stack.Visible())
}

func TestComposeExcludesUnorderedLayersSilently(t *testing.T) {
	registry := layer.Registry{"A": handle("A"), "Extra": handle("Extra")}

	stack := Compose(registry, []string{"A"}, nil)

	assert.Equal(t, []string{"A"}, stack.Names())
	assert.Empty(t, stack.Warnings)
}

func TestComposeDuplicateOrderEmitsOnce(t *testing.T) {
	registry := layer.Registry{"A": handle("A"), "B": handle("B")}

	stack := Compose(registry, []string{"A", "B", "A"}, nil)

	assert.Equal(t, []string{"A", "B"}, stack.Names())
	assert.Equal(t, []Warning{{Name: "A", Reason: ReasonDuplicate}}, stack.Warnings)
}

func TestComposeIsIdempotent(t *testing.T) {
	registry := layer.Registry{"A": handle("A"), "B": handle("B"), "C": handle("C")}
	order := []string{"C", "A", "B"}
	hidden := []string{"A"}

	first := Compose(registry, order, hidden)
	second := Compose(registry, order, hidden)

	assert.Equal(t, pairs(first), pairs(second))
	assert.Equal(t, first.Warnings, second.Warnings)
}

func TestComposeIgnoresRegistryInsertionOrder(t *testing.T) {
	order := []string{"A", "B", "C"}
	h := map[string]*layer.Layer{"A": handle("A"), "B": handle("B"), "C": handle("C")}

	for i, arrival := range [][]string{{"C", "B", "A"}, {"B", "C", "A"}, {"A", "C", "B"}} {
		t.Run(fmt.Sprintf("arrival %d", i), func(t *testing.T) {
			registry := layer.Registry{}
			for _, name := range arrival {
				registry.Add(h[name])
			}
			assert.Equal(t, order, Compose(registry, order, nil).Names())
		})
	}
}

func TestComposeEmptyInputs(t *testing.T) {
	stack := Compose(nil, nil, nil)
	assert.Empty(t, stack.Entries)
	assert.Empty(t, stack.Warnings)

	stack = Compose(layer.Registry{}, []string{"A"}, []string{"A"})
	assert.Empty(t, stack.Entries)
	require.Len(t, stack.Warnings, 1)
}

type recordingWidget struct {
	calls []string
}

func (w *recordingWidget) Add(l *layer.Layer) { w.calls = append(w.calls, "add "+l.Name()) }
func (w *recordingWidget) SetVisible(name string, visible bool) {
	w.calls = append(w.calls, fmt.Sprintf("visible %s %t", name, visible))
}

func TestStackApply(t *testing.T) {
	registry := layer.Registry{"A": handle("A"), "B": handle("B")}
	stack := Compose(registry, []string{"B", "A"}, []string{"A"})

	w := &recordingWidget{}
	stack.Apply(w)

	assert.Equal(t, []string{"add B", "visible B true", "add A", "visible A false"}, w.calls)
}
