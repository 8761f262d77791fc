package exchange

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/sawpanic/cryptorun/internal/domain"
	"github.com/sawpanic/cryptorun/internal/httpfetch"
)

const extendedBaseURL = "https://api.extended.exchange"

// Extended is a StarkEx-based perpetual venue; symbols are "ASSET-USD".
type Extended struct {
	historyByWindow
	http    *httpfetch.Client
	baseURL string
}

func NewExtended() *Extended {
	e := &Extended{http: httpfetch.New(IDExtended), baseURL: extendedBaseURL}
	e.historyByWindow = newHistoryByWindow(2160, e.fetchWindow)
	return e
}

func (e *Extended) ID() string        { return IDExtended }
func (e *Extended) FetchStep() int    { return 2160 }
func (e *Extended) FormatSymbol(c domain.Contract) string { return c.AssetName + "-" + c.QuoteName }

func (e *Extended) GetContracts(ctx context.Context) ([]domain.ContractInfo, error) {
	resp, err := e.http.Get(ctx, e.baseURL+"/api/v1/info/markets", nil, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("extended markets: %w", err)
	}
	root, _ := resp.(map[string]any)
	data, _ := root["data"].([]any)

	var out []domain.ContractInfo
	for _, d := range data {
		entry, _ := d.(map[string]any)
		if entry == nil {
			continue
		}
		status, _ := entry["status"].(string)
		if status != "ACTIVE" {
			continue
		}
		asset, _ := entry["assetName"].(string)
		interval, ok := asFloat(entry["fundingRateIntervalHours"])
		intervalHours := 1
		if ok && interval > 0 {
			intervalHours = int(interval)
		}
		out = append(out, domain.ContractInfo{
			AssetName:       asset,
			QuoteName:       "USD",
			SectionName:     IDExtended,
			FundingInterval: intervalHours,
		})
	}
	return out, nil
}

func (e *Extended) fetchWindow(ctx context.Context, c domain.Contract, startMS, endMS int64) ([]domain.FundingPoint, error) {
	q := url.Values{}
	q.Set("market", e.FormatSymbol(c))
	q.Set("startTime", strconv.FormatInt(startMS, 10))
	q.Set("endTime", strconv.FormatInt(endMS, 10))

	resp, err := e.http.Get(ctx, e.baseURL+"/api/v1/info/funding-rates", q, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("extended funding-rates: %w", err)
	}
	root, _ := resp.(map[string]any)
	data, _ := root["data"].([]any)

	points := make([]domain.FundingPoint, 0, len(data))
	for _, d := range data {
		entry, _ := d.(map[string]any)
		if entry == nil {
			continue
		}
		tsMS, _ := asFloat(entry["timestamp"])
		rate, _ := asFloat(entry["fundingRate"])
		points = append(points, domain.FundingPoint{
			ContractID:  c.ID,
			Timestamp:   time.UnixMilli(int64(tsMS)).UTC(),
			FundingRate: rate,
		})
	}
	return points, nil
}

func (e *Extended) FetchLive(ctx context.Context, contracts []domain.Contract) (map[uuid.UUID]domain.FundingPoint, error) {
	resp, err := e.http.Get(ctx, e.baseURL+"/api/v1/info/markets", nil, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("extended live: %w", err)
	}
	root, _ := resp.(map[string]any)
	data, _ := root["data"].([]any)

	bySymbol := make(map[string]float64, len(data))
	for _, d := range data {
		entry, _ := d.(map[string]any)
		if entry == nil {
			continue
		}
		name, _ := entry["name"].(string)
		stats, _ := entry["marketStats"].(map[string]any)
		if stats == nil {
			continue
		}
		rate, _ := asFloat(stats["fundingRate"])
		bySymbol[name] = rate
	}

	now := time.Now().UTC()
	out := make(map[uuid.UUID]domain.FundingPoint)
	for _, c := range contracts {
		rate, ok := bySymbol[e.FormatSymbol(c)]
		if !ok {
			continue
		}
		out[c.ID] = domain.FundingPoint{ContractID: c.ID, Timestamp: now, FundingRate: rate}
	}
	return out, nil
}
