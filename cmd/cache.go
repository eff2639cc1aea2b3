package cmd

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

func parseCmd(ctx context.Context, a *app) error {
	if a.cfg.Calendar.Path == "" {
		return errors.New("parse needs --calendar.path")
	}
	events, err := a.useCase.Parse(ctx, a.cfg.Calendar.Path)
	if err != nil {
		return err
	}
	return printJSON(events)
}

func statusCmd(ctx context.Context, a *app) error {
	status, err := a.useCase.Status(ctx)
	if err != nil {
		return err
	}
	return printJSON(status)
}

func clearCmd(ctx context.Context, a *app) error {
	if err := a.useCase.Clear(ctx); err != nil {
		return err
	}
	log.Info().Str("path", a.cfg.CachePath).Msg("cache cleared")
	return nil
}
