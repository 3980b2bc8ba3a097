// Package session ties one run of the map together: it owns the config
// and the HTTP client, and turns them into a composed layer stack. A Session replaces any process-wide map state; it
// is created per run and closed when the caller is done with it.
package session

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Zachdehooge/hazard-map/internal/compositor"
	"github.com/Zachdehooge/hazard-map/internal/config"
	maperrors "github.com/Zachdehooge/hazard-map/internal/errors"
	"github.com/Zachdehooge/hazard-map/internal/fetcher"
	"github.com/Zachdehooge/hazard-map/internal/layer"
	"github.com/Zachdehooge/hazard-map/internal/logging"
	"github.com/Zachdehooge/hazard-map/internal/resolver"
)

// Resolution records the overlap resolution of one displaced layer
type Resolution struct {
	Layer      string
	Features   int
	Unresolved int
	Err        error
}

// Snapshot is the outcome of one Build
type Snapshot struct {
	Map         config.MapConfig
	Stack       compositor.Stack
	Loads       []fetcher.Result
	Resolutions []Resolution
	BuiltAt     time.Time
}

// FailedLoads returns the loads that did not succeed
func (s *Snapshot) FailedLoads() []fetcher.Result {
	var out []fetcher.Result
	for _, r := range s.Loads {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// Session is the per-run context object
type Session struct {
	mu     sync.Mutex
	cfg    *config.Config
	client *fetcher.Client
	logger zerolog.Logger
	closed bool
}

// Option configures a Session
type Option func(*Session)

// WithClient replaces the fetcher built from the config
func WithClient(c *fetcher.Client) Option {
	return func(s *Session) { s.client = c }
}

// New creates a session for cfg
func New(cfg *config.Config, opts ...Option) *Session {
	s := &Session{
		cfg:    cfg,
		logger: logging.GetLogger("session"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = fetcher.NewClient(fetcher.Options{
			Timeout:     cfg.Fetch.Timeout,
			Retries:     cfg.Fetch.Retries,
			Concurrency: cfg.Fetch.Concurrency,
			UserAgent:   cfg.Fetch.UserAgent,
		})
	}
	return s
}

func newRand(seed uint64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return resolver.NewRand(seed)
}

// Config returns the session's current configuration
func (s *Session) Config() *config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Reconfigure swaps in a new configuration for subsequent builds
func (s *Session) Reconfigure(cfg *config.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.client.Close()
	s.client = fetcher.NewClient(fetcher.Options{
		Timeout:     cfg.Fetch.Timeout,
		Retries:     cfg.Fetch.Retries,
		Concurrency: cfg.Fetch.Concurrency,
		UserAgent:   cfg.Fetch.UserAgent,
	})
}

// Build loads every declared dataset, waits for all loads to settle,
// de-overlaps the displaced layers and composes the stack. Load failures
// and incomplete resolutions are recorded in the snapshot, not returned;
// only cancellation of ctx or a closed session is an error.
func (s *Session) Build(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, maperrors.New(maperrors.ErrSessionClosed, "session is closed")
	}
	done := logging.LogOperationStart(s.logger, "build")
	defer done()

	registry, loads := s.client.LoadAll(ctx, s.cfg.Datasets)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resolutions := s.resolve(registry)
	stack := compositor.Compose(registry, s.cfg.Order, s.cfg.Hidden)

	snap := &Snapshot{
		Map:         s.cfg.Map,
		Stack:       stack,
		Loads:       loads,
		Resolutions: resolutions,
		BuiltAt:     time.Now(),
	}
	s.logger.Info().
		Int("layers", len(stack.Entries)).
		Int("failed", len(snap.FailedLoads())).
		Int("warnings", len(stack.Warnings)).
		Msg("Map built")
	return snap, nil
}

// resolve walks datasets in declaration order so the random source is
// consumed the same way whatever order the loads finished in. The source
// is seeded afresh on every build, so a fixed seed places the same input
// identically on every rebuild.
func (s *Session) resolve(registry layer.Registry) []Resolution {
	var out []Resolution
	r := s.cfg.Resolver
	rng := newRand(r.Seed)
	for _, ds := range s.cfg.Datasets {
		l, ok := registry[ds.Name]
		if !ok || !ds.Displace || l.Features == nil {
			continue
		}

		points := l.Features.PointFeatures()
		_, err := resolver.Resolve(points, r.MinSeparation,
			resolver.WithRand(rng),
			resolver.WithMaxAttempts(r.MaxAttempts),
			resolver.WithSpiralLimit(r.SpiralLimit),
		)

		res := Resolution{Layer: ds.Name, Features: len(points), Err: err}
		if err != nil {
			if n, ok := maperrors.GetErrorDetails(err)["unresolved"].(int); ok {
				res.Unresolved = n
			}
			s.logger.Warn().Err(err).Str("layer", ds.Name).Msg("Overlap resolution incomplete")
		}
		out = append(out, res)
	}
	return out
}

// Close releases the session's resources. Builds after Close fail.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.client.Close()
}
