package cmd

import (
	"context"

	"dailybrief/internal/domain"
	"dailybrief/internal/importer"
)

// noopCmd composes a brief with no sources configured, against the real cache.
func noopCmd(ctx context.Context, a *app) error {
	useCase := domain.New(ctx, &importer.Noop{}, nil, a.store)
	brief, err := useCase.RefreshBrief(ctx)
	if err != nil {
		return err
	}
	return printJSON(brief)
}
