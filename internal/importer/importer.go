package importer

import (
	"context"

	"github.com/pkg/errors"

	"dailybrief/internal/config"
)

// Payload is raw calendar text as returned by a source.
type Payload struct {
	Body []byte
	// ETag is the revalidation token reported by the origin, if any.
	ETag string
}

// CalImporter fetches raw calendar text. Implementations never cache and
// return transport errors unchanged.
type CalImporter interface {
	// Source is the cache partition tag for events produced from this importer.
	Source() string
	Get(ctx context.Context) (Payload, error)
}

// New builds the importer for the configured calendar source. An unconfigured
// source yields a Noop importer.
func New(cfg config.Calendar) (CalImporter, error) {
	if !cfg.Configured() {
		return &Noop{}, nil
	}
	switch cfg.Source {
	case config.SourceICSURL:
		return NewURL(cfg), nil
	case config.SourceICSFile:
		return NewFile(cfg.Path), nil
	case config.SourceCalDAV:
		return NewCalDAV(cfg)
	default:
		return nil, errors.Errorf("unknown calendar source %q", cfg.Source)
	}
}
