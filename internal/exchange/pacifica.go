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

const (
	pacificaBaseURL  = "https://api.pacifica.fi"
	pacificaPageSafetyCap = 4000
)

// Pacifica paginates funding history with a cursor, terminating on
// has_more=false or a 4000-point safety cap (the venue gives no hard
// upper bound, so the cap exists purely to bound a single fetch call).
type Pacifica struct {
	historyByWindow
	http    *httpfetch.Client
	baseURL string
}

func NewPacifica() *Pacifica {
	p := &Pacifica{http: httpfetch.New(IDPacifica), baseURL: pacificaBaseURL}
	p.historyByWindow = newHistoryByWindow(4000, p.fetchWindow)
	return p
}

func (p *Pacifica) ID() string        { return IDPacifica }
func (p *Pacifica) FetchStep() int    { return 4000 }
func (p *Pacifica) FormatSymbol(c domain.Contract) string { return c.AssetName }

func (p *Pacifica) GetContracts(ctx context.Context) ([]domain.ContractInfo, error) {
	resp, err := p.http.Get(ctx, p.baseURL+"/api/v1/info", nil, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("pacifica info: %w", err)
	}
	root, _ := resp.(map[string]any)
	data, _ := root["data"].([]any)

	var out []domain.ContractInfo
	for _, d := range data {
		entry, _ := d.(map[string]any)
		if entry == nil {
			continue
		}
		isActive, _ := entry["is_active"].(bool)
		if !isActive {
			continue
		}
		symbol, _ := entry["symbol"].(string)
		if symbol == "" {
			continue
		}
		out = append(out, domain.ContractInfo{
			AssetName:       symbol,
			QuoteName:       "USD",
			SectionName:     IDPacifica,
			FundingInterval: 1,
		})
	}
	return out, nil
}

func (p *Pacifica) fetchWindow(ctx context.Context, c domain.Contract, startMS, endMS int64) ([]domain.FundingPoint, error) {
	var out []domain.FundingPoint
	cursor := ""
	for len(out) < pacificaPageSafetyCap {
		q := url.Values{}
		q.Set("symbol", p.FormatSymbol(c))
		q.Set("start_time", strconv.FormatInt(startMS, 10))
		q.Set("end_time", strconv.FormatInt(endMS, 10))
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		resp, err := p.http.Get(ctx, p.baseURL+"/api/v1/funding_rate/history", q, nil, 0)
		if err != nil {
			return out, fmt.Errorf("pacifica funding_rate/history: %w", err)
		}
		root, _ := resp.(map[string]any)
		rows, _ := root["data"].([]any)

		for _, r := range rows {
			entry, _ := r.(map[string]any)
			if entry == nil {
				continue
			}
			tsMS, _ := asFloat(entry["timestamp"])
			rate, _ := asFloat(entry["funding_rate"])
			out = append(out, domain.FundingPoint{
				ContractID:  c.ID,
				Timestamp:   time.UnixMilli(int64(tsMS)).UTC(),
				FundingRate: rate,
			})
		}

		hasMore, _ := root["has_more"].(bool)
		if !hasMore || len(rows) == 0 {
			break
		}
		nextCursor, _ := root["next_cursor"].(string)
		if nextCursor == "" || nextCursor == cursor {
			break
		}
		cursor = nextCursor
	}
	return out, nil
}

func (p *Pacifica) FetchLive(ctx context.Context, contracts []domain.Contract) (map[uuid.UUID]domain.FundingPoint, error) {
	resp, err := p.http.Get(ctx, p.baseURL+"/api/v1/info/prices", nil, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("pacifica live: %w", err)
	}
	root, _ := resp.(map[string]any)
	data, _ := root["data"].([]any)

	bySymbol := make(map[string]float64, len(data))
	for _, d := range data {
		entry, _ := d.(map[string]any)
		if entry == nil {
			continue
		}
		symbol, _ := entry["symbol"].(string)
		rate, _ := asFloat(entry["funding_rate"])
		bySymbol[symbol] = rate
	}

	now := time.Now().UTC()
	out := make(map[uuid.UUID]domain.FundingPoint)
	for _, c := range contracts {
		rate, ok := bySymbol[p.FormatSymbol(c)]
		if !ok {
			continue
		}
		out[c.ID] = domain.FundingPoint{ContractID: c.ID, Timestamp: now, FundingRate: rate}
	}
	return out, nil
}
