package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/cryptorun/internal/domain"
	"github.com/sawpanic/cryptorun/internal/httpfetch"
)

func newTestParadex(baseURL string) *Paradex {
	return &Paradex{http: httpfetch.New(IDParadex), baseURL: baseURL}
}

func TestParadex_FormatSymbol_AppendsPerpSuffix(t *testing.T) {
	p := newTestParadex("")
	assert.Equal(t, "BTC-USD-PERP", p.FormatSymbol(domain.Contract{AssetName: "BTC", QuoteName: "USD"}))
}

func TestHourBucketEnd_TruncatesThenAddsHour(t *testing.T) {
	ts := time.Date(2024, 1, 1, 10, 37, 12, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC), hourBucketEnd(ts))
}

func TestParadex_GetContracts_FiltersToPerpAssets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[
			{"asset_kind":"PERP","base_currency":"BTC","quote_currency":"USD"},
			{"asset_kind":"SPOT","base_currency":"ETH","quote_currency":"USD"}
		]}`))
	}))
	defer srv.Close()

	p := newTestParadex(srv.URL)
	contracts, err := p.GetContracts(context.Background())

	require.NoError(t, err)
	require.Len(t, contracts, 1)
	assert.Equal(t, "BTC", contracts[0].AssetName)
}

func TestBucketRaw_AveragesWithinHourAndDividesByEight(t *testing.T) {
	c := domain.Contract{ID: uuid.New()}
	raw := []struct {
		ts   time.Time
		rate float64
	}{
		{time.Date(2024, 1, 1, 10, 10, 0, 0, time.UTC), 0.008},
		{time.Date(2024, 1, 1, 10, 40, 0, 0, time.UTC), 0.016},
		{time.Date(2024, 1, 1, 11, 10, 0, 0, time.UTC), 0.008},
	}

	points := bucketRaw(raw, c)

	require.Len(t, points, 2)
	assert.Equal(t, time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC), points[0].Timestamp)
	assert.InDelta(t, 0.0015, points[0].FundingRate, 1e-9, "avg(0.008,0.016)/8")
	assert.Equal(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), points[1].Timestamp)
	assert.InDelta(t, 0.001, points[1].FundingRate, 1e-9)
}

func TestParadex_FetchHistoryBefore_FiltersToStrictlyBeforeCutoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[
			{"created_at": 1704103200000, "funding_rate": "0.008"},
			{"created_at": 1704106800000, "funding_rate": "0.008"}
		]}`))
	}))
	defer srv.Close()

	p := newTestParadex(srv.URL)
	before := time.Date(2024, 1, 1, 11, 30, 0, 0, time.UTC)
	points, err := p.FetchHistoryBefore(context.Background(), domain.Contract{ID: uuid.New()}, &before)

	require.NoError(t, err)
	for _, pt := range points {
		assert.True(t, pt.Timestamp.Before(before))
	}
}

func TestParadex_FetchHistoryAfter_NoCacheFallsBackToAPIForEachHour(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"results":[{"created_at": 1704106800000, "funding_rate": "0.008"}]}`))
	}))
	defer srv.Close()

	p := newTestParadex(srv.URL)
	after := time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC)
	points, err := p.FetchHistoryAfter(context.Background(), domain.Contract{ID: uuid.New()}, after)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, calls, 1)
	for _, pt := range points {
		assert.True(t, pt.Timestamp.After(after))
	}
}

func TestParadex_FetchLive_ReturnsLatestSampleDividedByEightWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[
			{"created_at": 1704106700000, "funding_rate": "0.008"},
			{"created_at": 1704106790000, "funding_rate": "0.016"}
		]}`))
	}))
	defer srv.Close()

	p := newTestParadex(srv.URL)
	c := domain.Contract{ID: uuid.New(), AssetName: "BTC", QuoteName: "USD"}
	live, err := p.FetchLive(context.Background(), []domain.Contract{c})

	require.NoError(t, err)
	require.Contains(t, live, c.ID)
	assert.InDelta(t, 0.002, live[c.ID].FundingRate, 1e-9, "latest sample 0.016/8")
}

func TestParadex_FetchLive_NoSamplesReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	p := newTestParadex(srv.URL)
	c := domain.Contract{ID: uuid.New(), AssetName: "BTC", QuoteName: "USD"}
	live, err := p.FetchLive(context.Background(), []domain.Contract{c})

	require.NoError(t, err, "fetchLiveParallel swallows per-contract errors")
	assert.NotContains(t, live, c.ID)
}
