package exchange

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/sawpanic/cryptorun/internal/domain"
	"github.com/sawpanic/cryptorun/internal/httpfetch"
)

const (
	asterBaseURL         = "https://fapi.asterdex.com"
	asterIntervalProbes  = 10
	asterProbeRatePerSec = 20
)

// Aster does not publish funding interval on its exchangeInfo endpoint, so
// GetContracts derives it per-symbol: fetch premiumIndex (next funding time)
// plus the single most recent fundingRate record (last funding time), then
// round the gap to the nearest hour. Probes are bounded to 10 inflight and
// rate-limited so discovery of a large symbol universe doesn't itself look
// like abuse to the venue.
type Aster struct {
	historyByWindow
	http    *httpfetch.Client
	baseURL string
}

func NewAster() *Aster {
	a := &Aster{http: httpfetch.New(IDAster), baseURL: asterBaseURL}
	a.historyByWindow = newHistoryByWindow(8000, a.fetchWindow)
	return a
}

func (a *Aster) ID() string        { return IDAster }
func (a *Aster) FetchStep() int    { return 8000 }
func (a *Aster) FormatSymbol(c domain.Contract) string { return c.AssetName + c.QuoteName }

func (a *Aster) GetContracts(ctx context.Context) ([]domain.ContractInfo, error) {
	resp, err := a.http.Get(ctx, a.baseURL+"/fapi/v1/exchangeInfo", nil, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("aster exchangeInfo: %w", err)
	}
	root, _ := resp.(map[string]any)
	symbols, _ := root["symbols"].([]any)

	type candidate struct {
		symbol, base, quote string
	}
	var candidates []candidate
	for _, s := range symbols {
		entry, _ := s.(map[string]any)
		if entry == nil {
			continue
		}
		contractType, _ := entry["contractType"].(string)
		if contractType != "PERPETUAL" {
			continue
		}
		status, _ := entry["status"].(string)
		if status != "TRADING" {
			continue
		}
		symbol, _ := entry["symbol"].(string)
		base, _ := entry["baseAsset"].(string)
		quote, _ := entry["quoteAsset"].(string)
		if symbol == "" || base == "" {
			continue
		}
		candidates = append(candidates, candidate{symbol, base, quote})
	}

	sem := make(chan struct{}, asterIntervalProbes)
	limiter := rate.NewLimiter(rate.Limit(asterProbeRatePerSec), asterIntervalProbes)

	var mu sync.Mutex
	var out []domain.ContractInfo
	var wg sync.WaitGroup
	for _, cand := range candidates {
		cand := cand
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			interval, err := a.probeInterval(ctx, cand.symbol)
			if err != nil {
				interval = 8
			}
			mu.Lock()
			out = append(out, domain.ContractInfo{
				AssetName:       cand.base,
				QuoteName:       cand.quote,
				SectionName:     IDAster,
				FundingInterval: interval,
			})
			mu.Unlock()
		}()
	}
	wg.Wait()
	return out, nil
}

func (a *Aster) probeInterval(ctx context.Context, symbol string) (int, error) {
	premium, err := a.http.Get(ctx, a.baseURL+"/fapi/v1/premiumIndex", url.Values{"symbol": {symbol}}, nil, 0)
	if err != nil {
		return 0, fmt.Errorf("aster premiumIndex %s: %w", symbol, err)
	}
	premiumEntry, _ := premium.(map[string]any)
	nextFundingMS, _ := asFloat(premiumEntry["nextFundingTime"])

	q := url.Values{"symbol": {symbol}, "limit": {"1"}}
	history, err := a.http.Get(ctx, a.baseURL+"/fapi/v1/fundingRate", q, nil, 0)
	if err != nil {
		return 0, fmt.Errorf("aster fundingRate %s: %w", symbol, err)
	}
	rows, _ := history.([]any)
	if len(rows) == 0 {
		return 8, nil
	}
	last, _ := rows[0].(map[string]any)
	lastFundingMS, _ := asFloat(last["fundingTime"])

	gapHours := (nextFundingMS - lastFundingMS) / float64(time.Hour/time.Millisecond)
	rounded := int(gapHours + 0.5)
	if rounded <= 0 {
		rounded = 8
	}
	return rounded, nil
}

func (a *Aster) fetchWindow(ctx context.Context, c domain.Contract, startMS, endMS int64) ([]domain.FundingPoint, error) {
	q := url.Values{}
	q.Set("symbol", a.FormatSymbol(c))
	q.Set("startTime", strconv.FormatInt(startMS, 10))
	q.Set("endTime", strconv.FormatInt(endMS, 10))
	q.Set("limit", "1000")

	resp, err := a.http.Get(ctx, a.baseURL+"/fapi/v1/fundingRate", q, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("aster fundingRate: %w", err)
	}
	rows, _ := resp.([]any)
	points := make([]domain.FundingPoint, 0, len(rows))
	for _, r := range rows {
		entry, _ := r.(map[string]any)
		if entry == nil {
			continue
		}
		tsMS, _ := asFloat(entry["fundingTime"])
		rate, _ := asFloat(entry["fundingRate"])
		points = append(points, domain.FundingPoint{
			ContractID:  c.ID,
			Timestamp:   time.UnixMilli(int64(tsMS)).UTC(),
			FundingRate: rate,
		})
	}
	return points, nil
}

func (a *Aster) FetchLive(ctx context.Context, contracts []domain.Contract) (map[uuid.UUID]domain.FundingPoint, error) {
	resp, err := a.http.Get(ctx, a.baseURL+"/fapi/v1/premiumIndex", nil, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("aster live: %w", err)
	}
	rows, _ := resp.([]any)
	bySymbol := make(map[string]domain.FundingPoint, len(rows))
	for _, r := range rows {
		entry, _ := r.(map[string]any)
		if entry == nil {
			continue
		}
		symbol, _ := entry["symbol"].(string)
		rate, _ := asFloat(entry["lastFundingRate"])
		tsMS, _ := asFloat(entry["time"])
		bySymbol[symbol] = domain.FundingPoint{Timestamp: time.UnixMilli(int64(tsMS)).UTC(), FundingRate: rate}
	}

	out := make(map[uuid.UUID]domain.FundingPoint)
	for _, c := range contracts {
		point, ok := bySymbol[a.FormatSymbol(c)]
		if !ok {
			continue
		}
		point.ContractID = c.ID
		out[c.ID] = point
	}
	return out, nil
}
