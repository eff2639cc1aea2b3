// Package aggregator implements the cache-fallback policy shared by every
// brief source: trust a successful live fetch, otherwise serve the last
// persisted snapshot, otherwise serve an empty value. Transport failures never
// reach the caller; storage faults always do.
package aggregator

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"dailybrief/internal/metrics"
	"dailybrief/internal/model"
)

type Outcome string

const (
	// OutcomeFresh means the live fetch succeeded and was persisted.
	OutcomeFresh Outcome = "fresh"
	// OutcomeStale means the fetch failed and the cached snapshot was served.
	OutcomeStale Outcome = "stale"
	// OutcomeEmpty means the fetch failed and nothing was cached.
	OutcomeEmpty Outcome = "empty"
	// OutcomeUnconfigured means the source is not set up.
	OutcomeUnconfigured Outcome = "unconfigured"
)

// Fetched is a live fetch result with its optional revalidation token.
type Fetched[T any] struct {
	Value T
	ETag  string
}

type FetchFunc[T any] func(ctx context.Context) (Fetched[T], error)

// Cache is the persisted side of one source partition.
type Cache[T any] interface {
	// Load returns the cached value; found is false when nothing was ever saved.
	Load(ctx context.Context) (value T, found bool, err error)
	// Save replaces the partition atomically.
	Save(ctx context.Context, fetched Fetched[T]) error
}

// CacheState is what the cache held when a decision was made.
type CacheState[T any] struct {
	Value T
	Found bool
}

// Plan is the outcome of Resolve: what to return and whether to persist.
type Plan[T any] struct {
	Output  T
	Outcome Outcome
	Persist bool
	// Escalate is set when the fetch error must reach the caller.
	Escalate error
}

// Resolve is the fallback policy as a pure function of the fetch result and
// the cache state. empty is returned when neither side has data.
func Resolve[T any](fetched Fetched[T], fetchErr error, cache CacheState[T], empty T, hard func(error) bool) Plan[T] {
	switch {
	case fetchErr == nil:
		return Plan[T]{Output: fetched.Value, Outcome: OutcomeFresh, Persist: true}
	case errors.Is(fetchErr, model.ErrNotConfigured):
		return Plan[T]{Output: empty, Outcome: OutcomeUnconfigured}
	case hard != nil && hard(fetchErr):
		return Plan[T]{Output: empty, Escalate: fetchErr}
	case cache.Found:
		return Plan[T]{Output: cache.Value, Outcome: OutcomeStale}
	default:
		return Plan[T]{Output: empty, Outcome: OutcomeEmpty}
	}
}

// Result is what Refresh hands back to the caller.
type Result[T any] struct {
	Value   T
	Outcome Outcome
	// FetchErr is the swallowed transport error for stale and empty outcomes.
	FetchErr error
}

type Aggregator[T any] struct {
	name    string
	fetch   FetchFunc[T]
	cache   Cache[T]
	empty   func() T
	hard    func(error) bool
	metrics *metrics.Metrics
}

func New[T any](name string, fetch FetchFunc[T], cache Cache[T]) *Aggregator[T] {
	return &Aggregator[T]{
		name:  name,
		fetch: fetch,
		cache: cache,
		empty: func() T {
			var zero T
			return zero
		},
	}
}

// WithEmpty sets the constructor of the default value.
func (a *Aggregator[T]) WithEmpty(fn func() T) *Aggregator[T] {
	a.empty = fn
	return a
}

// WithEscalation marks fetch errors the policy must not mask.
func (a *Aggregator[T]) WithEscalation(fn func(error) bool) *Aggregator[T] {
	a.hard = fn
	return a
}

func (a *Aggregator[T]) WithMetrics(m *metrics.Metrics) *Aggregator[T] {
	a.metrics = m
	return a
}

func (a *Aggregator[T]) Name() string {
	return a.name
}

// Refresh runs a live fetch and applies the fallback policy. The cache write
// of a fresh result completes before Refresh returns it.
func (a *Aggregator[T]) Refresh(ctx context.Context) (Result[T], error) {
	started := time.Now()
	fetched, fetchErr := a.fetch(ctx)
	took := time.Since(started)

	var state CacheState[T]
	if fetchErr != nil && !errors.Is(fetchErr, model.ErrNotConfigured) {
		value, found, err := a.cache.Load(ctx)
		if err != nil {
			a.metrics.ObserveRefresh(a.name, "error", took)
			return Result[T]{}, errors.Wrapf(err, "%s: error reading cache after failed fetch", a.name)
		}
		state = CacheState[T]{Value: value, Found: found}
	}

	plan := Resolve(fetched, fetchErr, state, a.empty(), a.hard)
	if plan.Escalate != nil {
		a.metrics.ObserveRefresh(a.name, "error", took)
		return Result[T]{}, errors.Wrapf(plan.Escalate, "%s", a.name)
	}
	if plan.Persist {
		if err := a.cache.Save(ctx, fetched); err != nil {
			a.metrics.ObserveRefresh(a.name, "error", took)
			return Result[T]{}, errors.Wrapf(err, "%s: error saving cache", a.name)
		}
	}

	switch plan.Outcome {
	case OutcomeStale:
		log.Warn().Err(fetchErr).Str("source", a.name).Msg("fetch failed, serving cached data")
	case OutcomeEmpty:
		log.Warn().Err(fetchErr).Str("source", a.name).Msg("fetch failed and nothing is cached")
	case OutcomeUnconfigured:
		log.Debug().Str("source", a.name).Msg("source not configured")
	default:
		log.Debug().Str("source", a.name).Dur("took", took).Msg("fetch succeeded")
	}
	a.metrics.ObserveRefresh(a.name, string(plan.Outcome), took)

	res := Result[T]{Value: plan.Output, Outcome: plan.Outcome}
	if plan.Outcome == OutcomeStale || plan.Outcome == OutcomeEmpty {
		res.FetchErr = fetchErr
	}
	return res, nil
}

// Cached returns the cached value without fetching. A missing cache yields the
// default value; only storage faults are errors.
func (a *Aggregator[T]) Cached(ctx context.Context) (T, error) {
	value, found, err := a.cache.Load(ctx)
	if err != nil {
		return a.empty(), errors.Wrapf(err, "%s: error reading cache", a.name)
	}
	if !found {
		return a.empty(), nil
	}
	return value, nil
}
