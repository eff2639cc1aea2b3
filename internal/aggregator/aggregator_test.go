package aggregator

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailybrief/internal/metrics"
	"dailybrief/internal/model"
)

var (
	errTransport = errors.New("connection refused")
	errParse     = errors.New("malformed")
	errDisk      = errors.New("disk on fire")
)

type memCache struct {
	value   []string
	found   bool
	saves   int
	loadErr error
	saveErr error
}

func (c *memCache) Load(_ context.Context) ([]string, bool, error) {
	if c.loadErr != nil {
		return nil, false, c.loadErr
	}
	return c.value, c.found, nil
}

func (c *memCache) Save(_ context.Context, fetched Fetched[[]string]) error {
	if c.saveErr != nil {
		return c.saveErr
	}
	c.saves++
	c.value = fetched.Value
	c.found = true
	return nil
}

func fetchOK(values ...string) FetchFunc[[]string] {
	return func(context.Context) (Fetched[[]string], error) {
		return Fetched[[]string]{Value: values}, nil
	}
}

func fetchErr(err error) FetchFunc[[]string] {
	return func(context.Context) (Fetched[[]string], error) {
		return Fetched[[]string]{}, err
	}
}

func emptyList() []string { return []string{} }

func TestResolve(t *testing.T) {
	hard := func(err error) bool { return errors.Is(err, errParse) }
	cached := CacheState[[]string]{Value: []string{"old"}, Found: true}
	fresh := Fetched[[]string]{Value: []string{"new"}}

	tests := []struct {
		name     string
		fetchErr error
		cache    CacheState[[]string]
		output   []string
		outcome  Outcome
		persist  bool
		escalate bool
	}{
		{"fresh wins over cache", nil, cached, []string{"new"}, OutcomeFresh, true, false},
		{"fallback to cache", errTransport, cached, []string{"old"}, OutcomeStale, false, false},
		{"fallback to empty", errTransport, CacheState[[]string]{}, []string{}, OutcomeEmpty, false, false},
		{"unconfigured ignores cache", model.ErrNotConfigured, cached, []string{}, OutcomeUnconfigured, false, false},
		{"hard error escalates", errParse, cached, []string{}, "", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := Resolve(fresh, tt.fetchErr, tt.cache, emptyList(), hard)
			assert.Equal(t, tt.output, plan.Output)
			assert.Equal(t, tt.outcome, plan.Outcome)
			assert.Equal(t, tt.persist, plan.Persist)
			assert.Equal(t, tt.escalate, plan.Escalate != nil)
		})
	}
}

func TestRefreshPersistsFreshResult(t *testing.T) {
	cache := &memCache{}
	agg := New("calendar", fetchOK("a", "b"), cache).WithEmpty(emptyList)

	res, err := agg.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeFresh, res.Outcome)
	assert.Equal(t, []string{"a", "b"}, res.Value)
	assert.Equal(t, 1, cache.saves)
	assert.Equal(t, []string{"a", "b"}, cache.value)
}

func TestRefreshFallsBackToCache(t *testing.T) {
	cache := &memCache{}
	_, err := New("calendar", fetchOK("a"), cache).Refresh(context.Background())
	require.NoError(t, err)

	res, err := New("calendar", fetchErr(errTransport), cache).WithEmpty(emptyList).Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeStale, res.Outcome)
	assert.Equal(t, []string{"a"}, res.Value)
	assert.ErrorIs(t, res.FetchErr, errTransport)
	assert.Equal(t, 1, cache.saves)
}

func TestRefreshFallsBackToEmpty(t *testing.T) {
	res, err := New("calendar", fetchErr(errTransport), &memCache{}).WithEmpty(emptyList).Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeEmpty, res.Outcome)
	assert.NotNil(t, res.Value)
	assert.Empty(t, res.Value)
}

func TestRefreshUnconfigured(t *testing.T) {
	cache := &memCache{value: []string{"old"}, found: true}
	res, err := New("calendar", fetchErr(model.ErrNotConfigured), cache).WithEmpty(emptyList).Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnconfigured, res.Outcome)
	assert.Empty(t, res.Value)
}

func TestRefreshEscalatesHardErrors(t *testing.T) {
	agg := New("calendar", fetchErr(errors.Wrap(errParse, "block 0")), &memCache{}).
		WithEscalation(func(err error) bool { return errors.Is(err, errParse) })

	_, err := agg.Refresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errParse)
}

func TestRefreshSurfacesStorageFaults(t *testing.T) {
	_, err := New("calendar", fetchOK("a"), &memCache{saveErr: errDisk}).Refresh(context.Background())
	assert.ErrorIs(t, err, errDisk)

	_, err = New("calendar", fetchErr(errTransport), &memCache{loadErr: errDisk}).Refresh(context.Background())
	assert.ErrorIs(t, err, errDisk)
}

func TestCached(t *testing.T) {
	calls := 0
	fetch := func(context.Context) (Fetched[[]string], error) {
		calls++
		return Fetched[[]string]{}, nil
	}

	value, err := New("calendar", fetch, &memCache{}).WithEmpty(emptyList).Cached(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{}, value)

	value, err = New("calendar", fetch, &memCache{value: []string{"x"}, found: true}).Cached(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, value)

	_, err = New("calendar", fetch, &memCache{loadErr: errDisk}).Cached(context.Background())
	assert.ErrorIs(t, err, errDisk)
	assert.Zero(t, calls)
}

func TestRefreshRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	agg := New("calendar", fetchErr(errTransport), &memCache{}).WithMetrics(metrics.MustNewMetrics(reg))

	_, err := agg.Refresh(context.Background())
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(reg, "dailybrief_source_refresh_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
