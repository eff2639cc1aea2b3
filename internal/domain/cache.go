package domain

import (
	"context"

	"dailybrief/internal/aggregator"
	"dailybrief/internal/model"
)

const githubSource = "github"

var (
	_ aggregator.Cache[[]model.Event]      = (*calendarCache)(nil)
	_ aggregator.Cache[model.GitHubBrief] = (*githubCache)(nil)
)

// calendarCache reads the partition of the configured calendar source as the
// today view and replaces it wholesale on save.
type calendarCache struct {
	uc *UseCase
}

func (c *calendarCache) source() string {
	return c.uc.calImporter.Source()
}

func (c *calendarCache) Load(ctx context.Context) ([]model.Event, bool, error) {
	_, found, err := c.uc.store.Meta(ctx, c.source())
	if err != nil || !found {
		return nil, false, err
	}
	events, err := c.uc.store.EventsForToday(ctx, c.uc.now(), c.source())
	if err != nil {
		return nil, false, err
	}
	return events, true, nil
}

func (c *calendarCache) Save(ctx context.Context, fetched aggregator.Fetched[[]model.Event]) error {
	return c.uc.store.ReplaceEvents(ctx, c.source(), fetched.Value, fetched.ETag)
}

type githubCache struct {
	uc *UseCase
}

func (c *githubCache) Load(ctx context.Context) (model.GitHubBrief, bool, error) {
	brief := model.EmptyGitHubBrief()
	meta, found, err := c.uc.store.LoadSnapshot(ctx, githubSource, &brief)
	if err != nil || !found {
		return model.GitHubBrief{}, false, err
	}
	if brief.LastUpdated == nil {
		lastFetch := meta.LastFetch
		brief.LastUpdated = &lastFetch
	}
	return brief, true, nil
}

func (c *githubCache) Save(ctx context.Context, fetched aggregator.Fetched[model.GitHubBrief]) error {
	return c.uc.store.SaveSnapshot(ctx, githubSource, fetched.Value, fetched.ETag)
}
