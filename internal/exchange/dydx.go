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

const dydxBaseURL = "https://indexer.dydx.trade"

// Dydx perpetuals are USD-quoted and symbol is simply "ASSET-USD".
type Dydx struct {
	historyByWindow
	http    *httpfetch.Client
	baseURL string
}

func NewDydx() *Dydx {
	d := &Dydx{http: httpfetch.New(IDDydx), baseURL: dydxBaseURL}
	d.historyByWindow = newHistoryByWindow(1000, d.fetchWindow)
	return d
}

func (d *Dydx) ID() string        { return IDDydx }
func (d *Dydx) FetchStep() int    { return 1000 }
func (d *Dydx) FormatSymbol(c domain.Contract) string { return c.AssetName + "-" + c.QuoteName }

func (d *Dydx) GetContracts(ctx context.Context) ([]domain.ContractInfo, error) {
	resp, err := d.http.Get(ctx, d.baseURL+"/v4/perpetualMarkets", nil, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("dydx perpetualMarkets: %w", err)
	}
	root, _ := resp.(map[string]any)
	markets, _ := root["markets"].(map[string]any)

	var out []domain.ContractInfo
	for ticker, m := range markets {
		entry, _ := m.(map[string]any)
		if entry == nil {
			continue
		}
		status, _ := entry["status"].(string)
		if status != "ACTIVE" {
			continue
		}
		asset := beforeDash(ticker)
		out = append(out, domain.ContractInfo{
			AssetName:       asset,
			QuoteName:       "USD",
			SectionName:     IDDydx,
			FundingInterval: 1,
		})
	}
	return out, nil
}

func (d *Dydx) fetchWindow(ctx context.Context, c domain.Contract, startMS, endMS int64) ([]domain.FundingPoint, error) {
	q := url.Values{}
	q.Set("ticker", d.FormatSymbol(c))
	q.Set("effectiveBeforeOrAtMillis", strconv.FormatInt(endMS, 10))
	q.Set("limit", "100")

	resp, err := d.http.Get(ctx, d.baseURL+"/v4/historicalFunding", q, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("dydx historicalFunding: %w", err)
	}
	root, _ := resp.(map[string]any)
	list, _ := root["historicalFunding"].([]any)

	points := make([]domain.FundingPoint, 0, len(list))
	for _, item := range list {
		entry, _ := item.(map[string]any)
		if entry == nil {
			continue
		}
		effAt, _ := entry["effectiveAt"].(string)
		ts, err := time.Parse(time.RFC3339, effAt)
		if err != nil {
			continue
		}
		if ts.UnixMilli() < startMS {
			continue
		}
		rateStr, _ := entry["rate"].(string)
		rate, _ := strconv.ParseFloat(rateStr, 64)
		points = append(points, domain.FundingPoint{ContractID: c.ID, Timestamp: ts.UTC(), FundingRate: rate})
	}
	return points, nil
}

func (d *Dydx) FetchLive(ctx context.Context, contracts []domain.Contract) (map[uuid.UUID]domain.FundingPoint, error) {
	resp, err := d.http.Get(ctx, d.baseURL+"/v4/perpetualMarkets", nil, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("dydx live: %w", err)
	}
	root, _ := resp.(map[string]any)
	markets, _ := root["markets"].(map[string]any)

	bySymbol := make(map[string]float64, len(markets))
	for ticker, m := range markets {
		entry, _ := m.(map[string]any)
		if entry == nil {
			continue
		}
		rateStr, _ := entry["nextFundingRate"].(string)
		rate, _ := strconv.ParseFloat(rateStr, 64)
		bySymbol[ticker] = rate
	}

	now := time.Now().UTC()
	out := make(map[uuid.UUID]domain.FundingPoint)
	for _, c := range contracts {
		rate, ok := bySymbol[d.FormatSymbol(c)]
		if !ok {
			continue
		}
		out[c.ID] = domain.FundingPoint{ContractID: c.ID, Timestamp: now, FundingRate: rate}
	}
	return out, nil
}
