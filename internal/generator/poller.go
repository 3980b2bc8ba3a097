package generator

import (
	"context"
	"time"

	"github.com/Zachdehooge/hazard-map/internal/logging"
	"github.com/Zachdehooge/hazard-map/internal/session"
)

// Builder produces a fresh snapshot; *session.Session satisfies it
type Builder interface {
	Build(ctx context.Context) (*session.Snapshot, error)
}

// Outputs names the files a poll cycle rewrites
type Outputs struct {
	HTML    string
	Payload string
	Page    PageOptions
}

// Generate builds once and writes the payload (if configured) and the page
func Generate(ctx context.Context, b Builder, out Outputs) (*session.Snapshot, error) {
	snap, err := b.Build(ctx)
	if err != nil {
		return nil, err
	}
	if out.Payload != "" {
		if err := WritePayload(snap, out.Payload); err != nil {
			return snap, err
		}
	}
	if out.HTML != "" {
		if err := GenerateMapHTML(snap, out.HTML, out.Page); err != nil {
			return snap, err
		}
	}
	return snap, nil
}

// RunPoller rebuilds on every interval until ctx is done. Failed cycles
// are logged and the previous output is left in place.
func RunPoller(ctx context.Context, b Builder, out Outputs, interval time.Duration) {
	logger := logging.GetLogger("poller")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info().Dur("interval", interval).Str("payload", out.Payload).Msg("Poller started")
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Poller stopped")
			return
		case <-ticker.C:
			snap, err := Generate(ctx, b, out)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Error().Err(err).Msg("Poll cycle failed")
				continue
			}
			logger.Info().Int("layers", len(snap.Stack.Entries)).Msg("Poll cycle written")
		}
	}
}
