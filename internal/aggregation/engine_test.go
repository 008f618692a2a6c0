package aggregation

import (
	"context"
	"errors"
	"testing"

	"github.com/spacesedan/callsignal/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	buckets  map[string]models.CategorySummary
	queryErr error
	upserts  map[models.SummaryKey]models.CompanyQuarterSummary
	filters  []Filter
}

func newFakeStore(buckets map[string]models.CategorySummary) *fakeStore {
	return &fakeStore{buckets: buckets, upserts: map[models.SummaryKey]models.CompanyQuarterSummary{}}
}

func (f *fakeStore) QueryAggregates(_ context.Context, filter Filter) (models.CategorySummary, error) {
	f.filters = append(f.filters, filter)
	if f.queryErr != nil {
		return models.CategorySummary{}, f.queryErr
	}
	b := f.buckets[filter.Category]
	b.Category = filter.Category
	return b, nil
}

func (f *fakeStore) UpsertSummary(_ context.Context, key models.SummaryKey, s models.CompanyQuarterSummary) error {
	f.upserts[key] = s
	return nil
}

func TestTotalsAreCountWeighted(t *testing.T) {
	total, weighted := Totals([]models.CategorySummary{
		{Count: 3, Average: 0.5, WeightedAverage: 1},
		{Count: 0},
		{Count: 2, Average: -0.2, WeightedAverage: -1},
	})
	require.NotNil(t, total)
	require.NotNil(t, weighted)
	assert.InDelta(t, 0.22, *total, 1e-12)
	assert.InDelta(t, 0.2, *weighted, 1e-12)
}

func TestTotalsEmptyAreNil(t *testing.T) {
	total, weighted := Totals([]models.CategorySummary{{Count: 0}, {Count: 0}})
	assert.Nil(t, total)
	assert.Nil(t, weighted)

	total, weighted = Totals(nil)
	assert.Nil(t, total)
	assert.Nil(t, weighted)
}

func TestReproject(t *testing.T) {
	assert.Equal(t, -1.0, Reproject(0))
	assert.Equal(t, 0.0, Reproject(0.5))
	assert.Equal(t, 1.0, Reproject(1))
}

func TestSummarizeReprojectsAndGuardsEmptyBuckets(t *testing.T) {
	store := newFakeStore(map[string]models.CategorySummary{
		"Macro":                  {Count: 2, WeightedCount: 2, Average: 0.3, WeightedAverage: 0.75},
		"Financial metric - All": {Count: 1, WeightedCount: 1, Average: 0.4, WeightedAverage: 0},
		"Regulation":             {Count: 1, WeightedCount: 0, Average: -0.6},
	})
	engine := NewEngine(store)
	key := models.SummaryKey{Company: "JPM", Period: "Q3 2023"}

	summary, err := engine.SummarizeAndStore(context.Background(), key)
	require.NoError(t, err)
	require.Len(t, summary.Categories, len(models.Categories))
	assert.Len(t, store.filters, len(models.Categories))
	assert.Equal(t, "JPM", store.filters[0].Company)
	assert.Equal(t, "Q3 2023", store.filters[0].Period)

	byName := map[string]models.CategorySummary{}
	for _, c := range summary.Categories {
		byName[c.Category] = c
	}
	assert.InDelta(t, 0.5, byName["Macro"].WeightedAverage, 1e-12)
	assert.InDelta(t, -1.0, byName["Financial metric - All"].WeightedAverage, 1e-12)
	assert.Equal(t, 0.0, byName["Regulation"].WeightedAverage, "no weighted rows")
	assert.Equal(t, models.CategorySummary{Category: "Sector trend"}, byName["Sector trend"])

	require.NotNil(t, summary.TotalAverage)
	assert.InDelta(t, (2*0.3+0.4-0.6)/4, *summary.TotalAverage, 1e-12)
	require.NotNil(t, summary.WeightedAverage)
	assert.InDelta(t, (2*0.5-1.0+0)/4, *summary.WeightedAverage, 1e-12)

	assert.Equal(t, summary, store.upserts[key])
}

func TestSummarizeEmptyQuarter(t *testing.T) {
	store := newFakeStore(nil)
	summary, err := NewEngine(store).Summarize(context.Background(), models.SummaryKey{Company: "WFC", Period: "Q1 2024"})
	require.NoError(t, err)
	assert.Nil(t, summary.TotalAverage)
	assert.Nil(t, summary.WeightedAverage)
	assert.Empty(t, store.upserts)
}

func TestSummarizeUpsertOverwrites(t *testing.T) {
	store := newFakeStore(map[string]models.CategorySummary{"Macro": {Count: 1, WeightedCount: 1, Average: 0.1, WeightedAverage: 1}})
	engine := NewEngine(store)
	key := models.SummaryKey{Company: "JPM", Period: "Q3 2023"}

	_, err := engine.SummarizeAndStore(context.Background(), key)
	require.NoError(t, err)

	store.buckets["Macro"] = models.CategorySummary{Count: 1, WeightedCount: 1, Average: -0.1, WeightedAverage: 0}
	_, err = engine.SummarizeAndStore(context.Background(), key)
	require.NoError(t, err)

	require.Len(t, store.upserts, 1)
	assert.InDelta(t, -0.1, *store.upserts[key].TotalAverage, 1e-12)
}

func TestSummarizePropagatesQueryErrors(t *testing.T) {
	store := newFakeStore(nil)
	store.queryErr = errors.New("throttled")

	_, err := NewEngine(store).SummarizeAndStore(context.Background(), models.SummaryKey{Company: "JPM", Period: "Q3 2023"})
	assert.ErrorIs(t, err, store.queryErr)
	assert.Empty(t, store.upserts)
}
