package config

import (
	"fmt"
	"math"
	"net/url"
	"strings"

	maperrors "github.com/Zachdehooge/hazard-map/internal/errors"
	"github.com/Zachdehooge/hazard-map/internal/layer"
)

// Validate checks the configuration. Layer names are exact identifiers: a
// name in order or hidden that does not match a declared dataset
// byte-for-byte is an error, never a silent drop.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if len(c.Map.Center) != 2 {
		add("map.center must be [lat, lon], got %d values", len(c.Map.Center))
	}
	if c.Map.Zoom < 0 {
		add("map.zoom must be >= 0")
	}

	declared := make(map[string]struct{}, len(c.Datasets))
	for i, ds := range c.Datasets {
		if ds.Name == "" {
			add("datasets[%d] has no name", i)
			continue
		}
		if _, dup := declared[ds.Name]; dup {
			add("dataset %q declared more than once", ds.Name)
		}
		declared[ds.Name] = struct{}{}

		if u, err := url.Parse(ds.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			add("dataset %q: url must be an http(s) URL, got %q", ds.Name, ds.URL)
		}
		if msg := validateStyle(ds.Style); msg != "" {
			add("dataset %q: %s", ds.Name, msg)
		}
	}

	inOrder := make(map[string]struct{}, len(c.Order))
	for _, name := range c.Order {
		if _, dup := inOrder[name]; dup {
			add("order lists %q more than once", name)
		}
		inOrder[name] = struct{}{}
		if _, ok := declared[name]; !ok {
			add("order names unknown dataset %q%s", name, suggest(name, declared))
		}
	}
	for _, name := range c.Hidden {
		if _, ok := inOrder[name]; !ok {
			add("hidden names %q which is not in order%s", name, suggest(name, inOrder))
		}
	}

	r := c.Resolver
	if math.IsNaN(r.MinSeparation) || math.IsInf(r.MinSeparation, 0) || r.MinSeparation < 0 {
		add("resolver.min_separation must be a finite value >= 0")
	}
	if r.MaxAttempts < 0 {
		add("resolver.max_attempts must be >= 0")
	}

	if c.Fetch.Timeout <= 0 {
		add("fetch.timeout must be positive")
	}
	if c.Fetch.Retries < 0 {
		add("fetch.retries must be >= 0")
	}
	if c.Fetch.Concurrency < 1 {
		add("fetch.concurrency must be >= 1")
	}

	if c.Output.HTML == "" {
		add("output.html must be set")
	}

	if len(problems) > 0 {
		return maperrors.New(maperrors.ErrConfigInvalid, strings.Join(problems, "; ")).
			WithDetail("problems", problems)
	}
	return nil
}

func validateStyle(s layer.Style) string {
	switch s.Kind {
	case "", layer.StyleSimple:
	case layer.StyleUnique:
		if s.Field == "" {
			return "unique style needs a field"
		}
	case layer.StylePicture:
		if s.IconURL == "" {
			return "picture style needs an icon_url"
		}
	default:
		return fmt.Sprintf("unknown style kind %q", s.Kind)
	}
	if s.FillOpacity < 0 || s.FillOpacity > 1 {
		return "fill_opacity must be within [0, 1]"
	}
	return ""
}

// suggest hints at a case-insensitive match
func suggest(name string, known map[string]struct{}) string {
	for k := range known {
		if strings.EqualFold(k, name) {
			return fmt.Sprintf(" (did you mean %q?)", k)
		}
	}
	return ""
}
