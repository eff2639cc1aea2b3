package cmd

import (
	"context"
)

func briefCmd(ctx context.Context, a *app) error {
	brief, err := a.useCase.RefreshBrief(ctx)
	if err != nil {
		return err
	}
	return printJSON(brief)
}

func cachedCmd(ctx context.Context, a *app) error {
	brief, err := a.useCase.CachedBrief(ctx)
	if err != nil {
		return err
	}
	return printJSON(brief)
}

func calendarCmd(ctx context.Context, a *app) error {
	events, err := a.useCase.RefreshCalendar(ctx)
	if err != nil {
		return err
	}
	return printJSON(events)
}

func githubCmd(ctx context.Context, a *app) error {
	brief, err := a.useCase.RefreshGitHub(ctx)
	if err != nil {
		return err
	}
	return printJSON(brief)
}
