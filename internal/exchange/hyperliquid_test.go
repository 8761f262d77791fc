package exchange

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/cryptorun/internal/domain"
)

func newTestHyperliquid(baseURL string) *Hyperliquid {
	return newHyperliquid(IDHyperliquid, baseURL, "")
}

func TestHyperliquid_FormatSymbol_IsBareAssetName(t *testing.T) {
	h := newTestHyperliquid("")
	assert.Equal(t, "BTC", h.FormatSymbol(domain.Contract{AssetName: "BTC"}))
}

func TestHyperliquid_GetContracts_SkipsDelisted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"universe":[
			{"name":"BTC"},
			{"name":"OLD","isDelisted":true}
		]}]`))
	}))
	defer srv.Close()

	h := newTestHyperliquid(srv.URL)
	contracts, err := h.GetContracts(context.Background())

	require.NoError(t, err)
	require.Len(t, contracts, 1)
	assert.Equal(t, "BTC", contracts[0].AssetName)
}

func TestHyperliquid_GetContracts_MainDexOmitsDexField(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		w.Write([]byte(`[{"universe":[]}]`))
	}))
	defer srv.Close()

	h := newTestHyperliquid(srv.URL)
	_, err := h.GetContracts(context.Background())

	require.NoError(t, err)
	_, hasDex := body["dex"]
	assert.False(t, hasDex, "main dex must not send a dex selector")
}

func TestHyperliquid_GetContracts_SubDexIncludesDexField(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		w.Write([]byte(`[{"universe":[]}]`))
	}))
	defer srv.Close()

	h := newHyperliquid(IDHyperliquidXYZ, srv.URL, "xyz")
	_, err := h.GetContracts(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "xyz", body["dex"])
}

func TestHyperliquid_FetchWindow_ParsesFundingHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"time": 1700000000000, "fundingRate": "0.0001"}]`))
	}))
	defer srv.Close()

	h := newTestHyperliquid(srv.URL)
	points, err := h.fetchWindow(context.Background(), domain.Contract{ID: uuid.New(), AssetName: "BTC"}, 0, 1)

	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 0.0001, points[0].FundingRate)
}

func TestHyperliquid_FetchLive_ZipsUniverseWithContexts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"universe":[{"name":"BTC"},{"name":"ETH"}]},
			[{"funding":"0.0001"},{"funding":"0.0002"}]
		]`))
	}))
	defer srv.Close()

	h := newTestHyperliquid(srv.URL)
	btc := domain.Contract{ID: uuid.New(), AssetName: "BTC"}
	eth := domain.Contract{ID: uuid.New(), AssetName: "ETH"}
	live, err := h.FetchLive(context.Background(), []domain.Contract{btc, eth})

	require.NoError(t, err)
	assert.Equal(t, 0.0001, live[btc.ID].FundingRate)
	assert.Equal(t, 0.0002, live[eth.ID].FundingRate)
}
