// Package config loads the hazard-map configuration: embedded defaults,
// then an optional YAML file, then HAZARDMAP_ environment variables.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	maperrors "github.com/Zachdehooge/hazard-map/internal/errors"
	"github.com/Zachdehooge/hazard-map/internal/layer"
)

// DefaultFile is looked up in the working directory when no path is given
const DefaultFile = "hazard-map.yaml"

// EnvPrefix is the prefix of environment overrides
const EnvPrefix = "HAZARDMAP_"

//go:embed embedded/defaults.yaml
var defaultConfig []byte

type rawBytesProvider struct{ bytes []byte }

func (r *rawBytesProvider) ReadBytes() ([]byte, error) { return r.bytes, nil }
func (r *rawBytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New("not implemented")
}

// Config is the full application configuration
type Config struct {
	Map      MapConfig       `koanf:"map" yaml:"map"`
	Datasets []layer.Dataset `koanf:"datasets" yaml:"datasets"`
	Order    []string        `koanf:"order" yaml:"order"`
	Hidden   []string        `koanf:"hidden" yaml:"hidden"`
	Resolver ResolverConfig  `koanf:"resolver" yaml:"resolver"`
	Fetch    FetchConfig     `koanf:"fetch" yaml:"fetch"`
	Output   OutputConfig    `koanf:"output" yaml:"output"`
	Watch    WatchConfig     `koanf:"watch" yaml:"watch"`

	// Path is the file loaded over the defaults, empty if none
	Path string `koanf:"-" yaml:"-"`
}

// MapConfig sets up the initial viewport and basemap
type MapConfig struct {
	Title       string    `koanf:"title" yaml:"title"`
	Center      []float64 `koanf:"center" yaml:"center"`
	Zoom        int       `koanf:"zoom" yaml:"zoom"`
	Basemap     string    `koanf:"basemap" yaml:"basemap"`
	Attribution string    `koanf:"attribution" yaml:"attribution"`
}

type ResolverConfig struct {
	MinSeparation float64 `koanf:"min_separation" yaml:"min_separation"`
	MaxAttempts   int     `koanf:"max_attempts" yaml:"max_attempts"`
	SpiralLimit   int     `koanf:"spiral_limit" yaml:"spiral_limit"`
	// Seed fixes the displacement directions; 0 means random per run
	Seed uint64 `koanf:"seed" yaml:"seed"`
}

type FetchConfig struct {
	Timeout     time.Duration `koanf:"timeout" yaml:"timeout"`
	Retries     int           `koanf:"retries" yaml:"retries"`
	Concurrency int           `koanf:"concurrency" yaml:"concurrency"`
	UserAgent   string        `koanf:"user_agent" yaml:"user_agent"`
}

type OutputConfig struct {
	HTML    string `koanf:"html" yaml:"html"`
	Payload string `koanf:"payload" yaml:"payload"`
}

type WatchConfig struct {
	Interval time.Duration `koanf:"interval" yaml:"interval"`
}

// Dataset returns the declared dataset with the given name
func (c *Config) Dataset(name string) (layer.Dataset, bool) {
	for _, ds := range c.Datasets {
		if ds.Name == name {
			return ds, true
		}
	}
	return layer.Dataset{}, false
}

// Load builds the configuration. An empty path falls back to DefaultFile
// in the working directory when it exists; an explicit path must exist.
// The result is validated.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, yaml.Parser()); err != nil {
		return nil, maperrors.Wrap(err, maperrors.ErrConfigLoad, "failed to load defaults")
	}

	resolved, err := resolvePath(path)
	if err != nil {
		return nil, err
	}
	if resolved != "" {
		if err := k.Load(file.Provider(resolved), yaml.Parser()); err != nil {
			return nil, maperrors.Wrapf(err, maperrors.ErrConfigLoad, "failed to load config from %s", resolved)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, maperrors.Wrap(err, maperrors.ErrConfigLoad, "failed to load env vars")
	}

	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, maperrors.Wrap(err, maperrors.ErrConfigLoad, "failed to decode config")
	}
	cfg.Path = resolved

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func resolvePath(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", maperrors.Wrapf(err, maperrors.ErrConfigLoad, "config file %s", path)
		}
		return path, nil
	}
	if _, err := os.Stat(DefaultFile); err == nil {
		return DefaultFile, nil
	}
	return "", nil
}

// envKey maps HAZARDMAP_RESOLVER_MIN_SEPARATION to resolver.min_separation.
// Only the first underscore separates the section from the key.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, key, found := strings.Cut(s, "_")
	if !found {
		return section
	}
	return fmt.Sprintf("%s.%s", section, key)
}
