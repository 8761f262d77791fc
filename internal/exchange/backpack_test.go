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

func newTestBackpack(baseURL string) *Backpack {
	return &Backpack{http: httpfetch.New(IDBackpack), baseURL: baseURL}
}

func TestBackpack_FormatSymbol_IncludesFundingInterval(t *testing.T) {
	b := newTestBackpack("")
	sym := b.FormatSymbol(domain.Contract{AssetName: "BTC", QuoteName: "USDC", FundingInterval: 8})
	assert.Equal(t, "BTC_USDC_PERP_8", sym)
}

func TestBackpack_GetContracts_FiltersNonPerpAndClosedMarkets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"marketType":"PERP","orderBookState":"Open","baseSymbol":"BTC","quoteSymbol":"USDC","fundingIntervalHours":8},
			{"marketType":"SPOT","orderBookState":"Open","baseSymbol":"ETH","quoteSymbol":"USDC"},
			{"marketType":"PERP","orderBookState":"Closed","baseSymbol":"SOL","quoteSymbol":"USDC"}
		]`))
	}))
	defer srv.Close()

	b := newTestBackpack(srv.URL)
	contracts, err := b.GetContracts(context.Background())

	require.NoError(t, err)
	require.Len(t, contracts, 1)
	assert.Equal(t, "BTC", contracts[0].AssetName)
	assert.Equal(t, 8, contracts[0].FundingInterval)
}

func TestBackpack_GetContracts_DefaultsIntervalWhenMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"marketType":"PERP","orderBookState":"Open","baseSymbol":"BTC","quoteSymbol":"USDC"}]`))
	}))
	defer srv.Close()

	b := newTestBackpack(srv.URL)
	contracts, err := b.GetContracts(context.Background())

	require.NoError(t, err)
	require.Len(t, contracts, 1)
	assert.Equal(t, 1, contracts[0].FundingInterval)
}

func TestBackpack_FetchHistoryBefore_StopsAtBoundaryAndShortPage(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`[
			{"intervalEndTimestamp":"2024-01-02T00:00:00Z","fundingRate":"0.0001"},
			{"intervalEndTimestamp":"2024-01-01T00:00:00Z","fundingRate":"0.0002"}
		]`))
	}))
	defer srv.Close()

	b := newTestBackpack(srv.URL)
	before := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	points, err := b.FetchHistoryBefore(context.Background(), domain.Contract{ID: uuid.New()}, &before)

	require.NoError(t, err)
	require.Len(t, points, 1, "only the record strictly older than `before` survives")
	assert.Equal(t, 1, calls, "short page (< page size) stops pagination after one call")
}

func TestBackpack_FetchHistoryBefore_NilBeforeKeepsEverything(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"intervalEndTimestamp":"2024-01-02T00:00:00Z","fundingRate":"0.0001"}]`))
	}))
	defer srv.Close()

	b := newTestBackpack(srv.URL)
	points, err := b.FetchHistoryBefore(context.Background(), domain.Contract{ID: uuid.New()}, nil)

	require.NoError(t, err)
	assert.Len(t, points, 1)
}

func TestBackpack_FetchHistoryAfter_StopsAtBoundary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"intervalEndTimestamp":"2024-01-03T00:00:00Z","fundingRate":"0.0001"},
			{"intervalEndTimestamp":"2024-01-01T00:00:00Z","fundingRate":"0.0002"}
		]`))
	}))
	defer srv.Close()

	b := newTestBackpack(srv.URL)
	after := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	points, err := b.FetchHistoryAfter(context.Background(), domain.Contract{ID: uuid.New()}, after)

	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 0.0001, points[0].FundingRate)
}

func TestBackpack_FetchLive_ReturnsMostRecentPoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"intervalEndTimestamp":"2024-01-02T00:00:00Z","fundingRate":"0.0005"}]`))
	}))
	defer srv.Close()

	b := newTestBackpack(srv.URL)
	c := domain.Contract{ID: uuid.New(), AssetName: "BTC", QuoteName: "USDC", FundingInterval: 8}
	live, err := b.FetchLive(context.Background(), []domain.Contract{c})

	require.NoError(t, err)
	require.Contains(t, live, c.ID)
	assert.Equal(t, 0.0005, live[c.ID].FundingRate)
}
