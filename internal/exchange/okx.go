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

const okxBaseURL = "https://www.okx.com"

// OKX symbols are "asset-quote-SWAP"; live rates have no all-markets
// endpoint that carries funding rate, so OKX falls back to the bounded
// per-contract fanout.
type OKX struct {
	historyByWindow
	http    *httpfetch.Client
	baseURL string
}

func NewOKX() *OKX {
	o := &OKX{http: httpfetch.New(IDOkx), baseURL: okxBaseURL}
	o.historyByWindow = newHistoryByWindow(398, o.fetchWindow)
	return o
}

func (o *OKX) ID() string     { return IDOkx }
func (o *OKX) FetchStep() int { return 398 }

func (o *OKX) FormatSymbol(c domain.Contract) string {
	return c.AssetName + "-" + c.QuoteName + "-SWAP"
}

func (o *OKX) GetContracts(ctx context.Context) ([]domain.ContractInfo, error) {
	resp, err := o.http.Get(ctx, o.baseURL+"/api/v5/public/instruments", url.Values{"instType": {"SWAP"}}, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("okx instruments: %w", err)
	}
	root, _ := resp.(map[string]any)
	data, _ := root["data"].([]any)

	var out []domain.ContractInfo
	for _, d := range data {
		entry, _ := d.(map[string]any)
		if entry == nil {
			continue
		}
		state, _ := entry["state"].(string)
		if state != "live" {
			continue
		}
		ctype, _ := entry["ctType"].(string)
		if ctype != "linear" && ctype != "inverse" {
			continue
		}
		baseCcy, _ := entry["ctValCcy"].(string)
		settleCcy, _ := entry["settleCcy"].(string)
		if baseCcy == "" {
			underlying, _ := entry["uly"].(string)
			baseCcy = beforeDash(underlying)
		}
		interval := 8
		out = append(out, domain.ContractInfo{
			AssetName:       baseCcy,
			QuoteName:       settleCcy,
			SectionName:     IDOkx,
			FundingInterval: interval,
		})
	}
	return out, nil
}

func beforeDash(s string) string {
	for i, r := range s {
		if r == '-' {
			return s[:i]
		}
	}
	return s
}

func (o *OKX) fetchWindow(ctx context.Context, c domain.Contract, startMS, endMS int64) ([]domain.FundingPoint, error) {
	q := url.Values{}
	q.Set("instId", o.FormatSymbol(c))
	q.Set("before", strconv.FormatInt(startMS, 10))
	q.Set("after", strconv.FormatInt(endMS, 10))
	q.Set("limit", "100")

	resp, err := o.http.Get(ctx, o.baseURL+"/api/v5/public/funding-rate-history", q, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("okx funding-rate-history: %w", err)
	}
	root, _ := resp.(map[string]any)
	data, _ := root["data"].([]any)

	points := make([]domain.FundingPoint, 0, len(data))
	for _, d := range data {
		entry, _ := d.(map[string]any)
		if entry == nil {
			continue
		}
		tsStr, _ := entry["fundingTime"].(string)
		tsMS, _ := strconv.ParseInt(tsStr, 10, 64)
		rateStr, _ := entry["fundingRate"].(string)
		rate, _ := strconv.ParseFloat(rateStr, 64)
		points = append(points, domain.FundingPoint{
			ContractID:  c.ID,
			Timestamp:   time.UnixMilli(tsMS).UTC(),
			FundingRate: rate,
		})
	}
	return points, nil
}

func (o *OKX) FetchLive(ctx context.Context, contracts []domain.Contract) (map[uuid.UUID]domain.FundingPoint, error) {
	return fetchLiveParallel(ctx, contracts, func(ctx context.Context, c domain.Contract) (domain.FundingPoint, error) {
		resp, err := o.http.Get(ctx, o.baseURL+"/api/v5/public/funding-rate", url.Values{"instId": {o.FormatSymbol(c)}}, nil, 0)
		if err != nil {
			return domain.FundingPoint{}, err
		}
		root, _ := resp.(map[string]any)
		data, _ := root["data"].([]any)
		if len(data) == 0 {
			return domain.FundingPoint{}, fmt.Errorf("okx: no funding rate for %s", o.FormatSymbol(c))
		}
		entry, _ := data[0].(map[string]any)
		rateStr, _ := entry["fundingRate"].(string)
		rate, _ := strconv.ParseFloat(rateStr, 64)
		return domain.FundingPoint{ContractID: c.ID, Timestamp: time.Now().UTC(), FundingRate: rate}, nil
	}), nil
}
