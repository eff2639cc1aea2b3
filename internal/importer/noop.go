package importer

import (
	"context"

	"github.com/rs/zerolog/log"

	"dailybrief/internal/config"
	"dailybrief/internal/model"
)

var _ CalImporter = (*Noop)(nil)

// Noop stands in for an unconfigured calendar.
type Noop struct {
}

func (i *Noop) Source() string {
	return config.SourceNone
}

func (i *Noop) Get(_ context.Context) (Payload, error) {
	log.Debug().Msg("noop importer get events call")
	return Payload{}, model.ErrNotConfigured
}
