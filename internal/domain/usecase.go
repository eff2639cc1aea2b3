package domain

import (
	"context"
	"time"

	"github.com/adhocore/gronx/pkg/tasker"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"dailybrief/internal/aggregator"
	"dailybrief/internal/config"
	"dailybrief/internal/ics"
	"dailybrief/internal/importer"
	"dailybrief/internal/metrics"
	"dailybrief/internal/model"
	"dailybrief/internal/store"
	"dailybrief/internal/timewindow"
)

// Store is the cache the brief is composed from.
type Store interface {
	ReplaceEvents(ctx context.Context, source string, events []model.Event, etag string) error
	EventsForToday(ctx context.Context, now time.Time, sources ...string) ([]model.Event, error)
	SaveSnapshot(ctx context.Context, source string, payload any, etag string) error
	LoadSnapshot(ctx context.Context, source string, out any) (store.Meta, bool, error)
	Meta(ctx context.Context, source string) (store.Meta, bool, error)
	Status(ctx context.Context) ([]store.Meta, error)
	Prune(ctx context.Context, now time.Time) (int, error)
	Clear(ctx context.Context) error
}

// GitHubFetcher returns the live code-review signals.
type GitHubFetcher interface {
	Fetch(ctx context.Context) (model.GitHubBrief, error)
}

type Option func(uc *UseCase)

// WithClock replaces time.Now; used by tests.
func WithClock(now func() time.Time) Option {
	return func(uc *UseCase) { uc.now = now }
}

// WithLocation sets the zone used for floating calendar times.
func WithLocation(loc *time.Location) Option {
	return func(uc *UseCase) { uc.location = loc }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(uc *UseCase) { uc.metrics = m }
}

// UseCase composes the daily brief from the calendar and GitHub sources.
type UseCase struct {
	calImporter importer.CalImporter
	github      GitHubFetcher
	store       Store
	calendar    *aggregator.Aggregator[[]model.Event]
	reviews     *aggregator.Aggregator[model.GitHubBrief]
	metrics     *metrics.Metrics
	now         func() time.Time
	location    *time.Location
	pool        *pool.ContextPool
	ctx         context.Context
}

// New wires the use case. A nil github fetcher means GitHub is not configured.
func New(ctx context.Context, calImporter importer.CalImporter, github GitHubFetcher, st Store, opts ...Option) *UseCase {
	uc := &UseCase{
		calImporter: calImporter,
		github:      github,
		store:       st,
		now:         time.Now,
		location:    time.Local,
		pool:        pool.New().WithContext(ctx).WithMaxGoroutines(10),
		ctx:         ctx,
	}
	for _, opt := range opts {
		opt(uc)
	}

	uc.calendar = aggregator.New[[]model.Event](calImporter.Source(), uc.fetchCalendar, &calendarCache{uc: uc}).
		WithEmpty(func() []model.Event { return []model.Event{} }).
		WithEscalation(func(err error) bool { return errors.Is(err, ics.ErrParse) }).
		WithMetrics(uc.metrics)
	uc.reviews = aggregator.New[model.GitHubBrief](githubSource, uc.fetchGitHub, &githubCache{uc: uc}).
		WithEmpty(model.EmptyGitHubBrief).
		WithMetrics(uc.metrics)
	return uc
}

// RefreshBrief refreshes every source concurrently and composes the brief.
// The brief is always populated; the error is non-nil only for storage faults
// or a malformed calendar document.
func (uc *UseCase) RefreshBrief(ctx context.Context) (model.Brief, error) {
	var (
		events []model.Event
		review *model.GitHubBrief
	)
	p := pool.New().WithErrors().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		var err error
		events, err = uc.RefreshCalendar(ctx)
		return err
	})
	p.Go(func(ctx context.Context) error {
		res, err := uc.reviews.Refresh(ctx)
		if err != nil {
			empty := model.EmptyGitHubBrief()
			review = &empty
			return err
		}
		if res.Outcome != aggregator.OutcomeUnconfigured {
			review = &res.Value
		}
		return nil
	})
	err := p.Wait()
	return uc.compose(events, review), err
}

// CachedBrief composes the brief from the cache only.
func (uc *UseCase) CachedBrief(ctx context.Context) (model.Brief, error) {
	var (
		events []model.Event
		review *model.GitHubBrief
	)
	p := pool.New().WithErrors().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		var err error
		events, err = uc.CachedCalendar(ctx)
		return err
	})
	p.Go(func(ctx context.Context) error {
		if uc.github == nil {
			return nil
		}
		value, err := uc.reviews.Cached(ctx)
		review = &value
		return err
	})
	err := p.Wait()
	return uc.compose(events, review), err
}

func (uc *UseCase) compose(events []model.Event, review *model.GitHubBrief) model.Brief {
	if events == nil {
		events = []model.Event{}
	}
	return model.Brief{
		GitHub:      review,
		Calendar:    events,
		Email:       []model.EmailHeader{},
		GeneratedAt: uc.now().Unix(),
	}
}

// RefreshCalendar fetches the calendar and returns today's events.
func (uc *UseCase) RefreshCalendar(ctx context.Context) ([]model.Event, error) {
	res, err := uc.calendar.Refresh(ctx)
	if err != nil {
		return []model.Event{}, err
	}
	return timewindow.At(uc.now()).Filter(res.Value), nil
}

func (uc *UseCase) CachedCalendar(ctx context.Context) ([]model.Event, error) {
	return uc.calendar.Cached(ctx)
}

// RefreshGitHub fetches the code-review signals. Unconfigured GitHub yields an
// empty brief.
func (uc *UseCase) RefreshGitHub(ctx context.Context) (model.GitHubBrief, error) {
	res, err := uc.reviews.Refresh(ctx)
	if err != nil {
		return model.EmptyGitHubBrief(), err
	}
	return res.Value, nil
}

func (uc *UseCase) CachedGitHub(ctx context.Context) (model.GitHubBrief, error) {
	return uc.reviews.Cached(ctx)
}

func (uc *UseCase) Status(ctx context.Context) ([]store.Meta, error) {
	return uc.store.Status(ctx)
}

func (uc *UseCase) Clear(ctx context.Context) error {
	return uc.store.Clear(ctx)
}

func (uc *UseCase) Prune(ctx context.Context) (int, error) {
	return uc.store.Prune(ctx, uc.now())
}

// Parse normalizes a local ICS file without touching the cache.
func (uc *UseCase) Parse(ctx context.Context, path string) ([]model.Event, error) {
	payload, err := importer.NewFile(path).Get(ctx)
	if err != nil {
		return nil, err
	}
	return ics.Normalize(payload.Body, uc.icsOptions(config.SourceICSFile))
}

// TaskRefresh refreshes the brief on every cronExpr tick until the use case
// context is done.
func (uc *UseCase) TaskRefresh(cronExpr string) {
	uc.schedule(cronExpr, "brief-refresh", func(ctx context.Context) error {
		brief, err := uc.RefreshBrief(ctx)
		if err != nil {
			return err
		}
		log.Info().
			Str("task", "brief-refresh").
			Int("events", len(brief.Calendar)).
			Bool("github", brief.GitHub != nil).
			Msg("brief refreshed")
		return nil
	})
}

// TaskPrune drops stale cached events on every cronExpr tick.
func (uc *UseCase) TaskPrune(cronExpr string) {
	uc.schedule(cronExpr, "cache-prune", func(ctx context.Context) error {
		_, err := uc.Prune(ctx)
		return err
	})
}

func (uc *UseCase) schedule(cronExpr, name string, fn func(ctx context.Context) error) {
	taskr := tasker.New(tasker.Option{}).WithContext(uc.ctx)
	taskr.Task(cronExpr, func(ctx context.Context) (int, error) {
		if err := fn(ctx); err != nil {
			log.Err(err).Str("task", name).Msg("task failed")
			return 1, err
		}
		return 0, nil
	})
	uc.pool.Go(func(ctx context.Context) error {
		taskr.Run()
		return nil
	})
}

// Stop waits for scheduled tasks to finish.
func (uc *UseCase) Stop() {
	_ = uc.pool.Wait()
}

func (uc *UseCase) icsOptions(source string) ics.Options {
	return ics.Options{Source: source, Location: uc.location, Now: uc.now}
}

func (uc *UseCase) fetchCalendar(ctx context.Context) (aggregator.Fetched[[]model.Event], error) {
	payload, err := uc.calImporter.Get(ctx)
	if err != nil {
		return aggregator.Fetched[[]model.Event]{}, err
	}
	events, err := ics.Normalize(payload.Body, uc.icsOptions(uc.calImporter.Source()))
	if err != nil {
		return aggregator.Fetched[[]model.Event]{}, err
	}
	return aggregator.Fetched[[]model.Event]{Value: events, ETag: payload.ETag}, nil
}

func (uc *UseCase) fetchGitHub(ctx context.Context) (aggregator.Fetched[model.GitHubBrief], error) {
	if uc.github == nil {
		return aggregator.Fetched[model.GitHubBrief]{}, model.ErrNotConfigured
	}
	brief, err := uc.github.Fetch(ctx)
	if err != nil {
		return aggregator.Fetched[model.GitHubBrief]{}, err
	}
	return aggregator.Fetched[model.GitHubBrief]{Value: brief}, nil
}
