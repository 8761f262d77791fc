package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sawpanic/cryptorun/internal/domain"
	"github.com/sawpanic/cryptorun/internal/httpfetch"
)

const deriveBaseURL = "https://api.lyra.finance"

// Derive pages contract discovery by page number until an empty page (or
// the 50-page cap) but otherwise fits the default time-windowed history
// shape.
type Derive struct {
	historyByWindow
	http    *httpfetch.Client
	baseURL string
}

func NewDerive() *Derive {
	d := &Derive{http: httpfetch.New(IDDerive), baseURL: deriveBaseURL}
	d.historyByWindow = newHistoryByWindow(720, d.fetchWindow)
	return d
}

func (d *Derive) ID() string        { return IDDerive }
func (d *Derive) FetchStep() int    { return 720 }
func (d *Derive) FormatSymbol(c domain.Contract) string { return c.AssetName + "-PERP" }

func (d *Derive) GetContracts(ctx context.Context) ([]domain.ContractInfo, error) {
	var out []domain.ContractInfo
	page := 1
	for {
		resp, err := d.http.Post(ctx, d.baseURL+"/public/get_all_instruments", map[string]any{
			"instrument_type": "perp",
			"currency":        "all",
			"page":            page,
			"page_size":       100,
		}, nil, 0)
		if err != nil {
			return nil, fmt.Errorf("derive get_all_instruments: %w", err)
		}
		root, _ := resp.(map[string]any)
		result, _ := root["result"].(map[string]any)
		instruments, _ := result["instruments"].([]any)
		if len(instruments) == 0 {
			break
		}
		for _, item := range instruments {
			entry, _ := item.(map[string]any)
			if entry == nil {
				continue
			}
			if live, ok := entry["is_active"].(bool); ok && !live {
				continue
			}
			base, _ := entry["base_currency"].(string)
			out = append(out, domain.ContractInfo{
				AssetName:       base,
				QuoteName:       "USDC",
				SectionName:     IDDerive,
				FundingInterval: 1,
			})
		}
		page++
		if page > 50 {
			break
		}
	}
	return out, nil
}

func (d *Derive) fetchWindow(ctx context.Context, c domain.Contract, startMS, endMS int64) ([]domain.FundingPoint, error) {
	resp, err := d.http.Post(ctx, d.baseURL+"/public/get_funding_rate_history", map[string]any{
		"instrument_name": d.FormatSymbol(c),
		"start_timestamp": startMS,
		"end_timestamp":   endMS,
	}, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("derive get_funding_rate_history: %w", err)
	}
	root, _ := resp.(map[string]any)
	result, _ := root["result"].([]any)

	points := make([]domain.FundingPoint, 0, len(result))
	for _, r := range result {
		entry, _ := r.(map[string]any)
		if entry == nil {
			continue
		}
		tsMS, _ := asFloat(entry["timestamp"])
		rate, _ := asFloat(entry["funding_rate"])
		points = append(points, domain.FundingPoint{
			ContractID:  c.ID,
			Timestamp:   time.UnixMilli(int64(tsMS)).UTC(),
			FundingRate: rate,
		})
	}
	return points, nil
}

func (d *Derive) FetchLive(ctx context.Context, contracts []domain.Contract) (map[uuid.UUID]domain.FundingPoint, error) {
	resp, err := d.http.Post(ctx, d.baseURL+"/public/get_all_instruments", map[string]any{
		"instrument_type": "perp",
		"currency":        "all",
		"page":            1,
		"page_size":       500,
	}, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("derive live: %w", err)
	}
	root, _ := resp.(map[string]any)
	result, _ := root["result"].(map[string]any)
	instruments, _ := result["instruments"].([]any)

	bySymbol := make(map[string]float64, len(instruments))
	for _, item := range instruments {
		entry, _ := item.(map[string]any)
		if entry == nil {
			continue
		}
		name, _ := entry["instrument_name"].(string)
		rate, _ := asFloat(entry["funding_rate"])
		bySymbol[name] = rate
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
