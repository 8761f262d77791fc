package exchange

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sawpanic/cryptorun/internal/domain"
	"github.com/sawpanic/cryptorun/internal/httpfetch"
)

const (
	lighterBaseURL = "https://mainnet.zklighter.elliot.ai"
	lighterWSURL   = "wss://mainnet.zklighter.elliot.ai/stream"
)

// Lighter identifies markets by a numeric id rather than a ticker; the id
// is only available from contract discovery, so FormatSymbol remembers it
// in a small lookup populated by GetContracts. Live sampling goes through
// the one WebSocket primitive the whole adapter set needs.
type Lighter struct {
	historyByWindow
	http    *httpfetch.Client
	baseURL string

	mu         sync.RWMutex
	marketByID map[string]int // AssetName -> numeric market id
}

func NewLighter() *Lighter {
	l := &Lighter{http: httpfetch.New(IDLighter), marketByID: make(map[string]int), baseURL: lighterBaseURL}
	l.historyByWindow = newHistoryByWindow(498, l.fetchWindow)
	return l
}

func (l *Lighter) ID() string     { return IDLighter }
func (l *Lighter) FetchStep() int { return 498 }

func (l *Lighter) FormatSymbol(c domain.Contract) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if id, ok := l.marketByID[c.AssetName]; ok {
		return strconv.Itoa(id)
	}
	return c.AssetName
}

func (l *Lighter) GetContracts(ctx context.Context) ([]domain.ContractInfo, error) {
	resp, err := l.http.Get(ctx, l.baseURL+"/api/v1/orderBooks", nil, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("lighter orderBooks: %w", err)
	}
	root, _ := resp.(map[string]any)
	books, _ := root["order_books"].([]any)

	l.mu.Lock()
	defer l.mu.Unlock()

	var out []domain.ContractInfo
	for _, b := range books {
		entry, _ := b.(map[string]any)
		if entry == nil {
			continue
		}
		status, _ := entry["status"].(string)
		if status != "active" {
			continue
		}
		symbol, _ := entry["symbol"].(string)
		marketID, _ := asFloat(entry["market_id"])
		if symbol == "" {
			continue
		}
		l.marketByID[symbol] = int(marketID)
		out = append(out, domain.ContractInfo{
			AssetName:       symbol,
			QuoteName:       "USDC",
			SectionName:     IDLighter,
			FundingInterval: 1,
		})
	}
	return out, nil
}

func (l *Lighter) fetchWindow(ctx context.Context, c domain.Contract, startMS, endMS int64) ([]domain.FundingPoint, error) {
	q := url.Values{}
	q.Set("market_id", l.FormatSymbol(c))
	q.Set("start_time", strconv.FormatInt(startMS, 10))
	q.Set("end_time", strconv.FormatInt(endMS, 10))

	resp, err := l.http.Get(ctx, l.baseURL+"/api/v1/fundingHistory", q, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("lighter fundingHistory: %w", err)
	}
	root, _ := resp.(map[string]any)
	data, _ := root["funding_rates"].([]any)

	points := make([]domain.FundingPoint, 0, len(data))
	for _, d := range data {
		entry, _ := d.(map[string]any)
		if entry == nil {
			continue
		}
		tsMS, _ := asFloat(entry["timestamp"])
		rate, _ := asFloat(entry["rate"])
		points = append(points, domain.FundingPoint{
			ContractID:  c.ID,
			Timestamp:   time.UnixMilli(int64(tsMS)).UTC(),
			FundingRate: rate,
		})
	}
	return points, nil
}

// FetchLive uses the single-shot WebSocket primitive: one subscribe per
// contract, since Lighter's market stream is per-market rather than
// all-markets.
func (l *Lighter) FetchLive(ctx context.Context, contracts []domain.Contract) (map[uuid.UUID]domain.FundingPoint, error) {
	return fetchLiveParallel(ctx, contracts, func(ctx context.Context, c domain.Contract) (domain.FundingPoint, error) {
		marketID := l.FormatSymbol(c)
		subscribe := map[string]any{
			"type":    "subscribe",
			"channel": "market_stats/" + marketID,
		}
		payload, err := httpfetch.WebSocketFetchOnce(ctx, lighterWSURL, subscribe)
		if err != nil {
			return domain.FundingPoint{}, err
		}
		entry, _ := payload.(map[string]any)
		stats, _ := entry["market_stats"].(map[string]any)
		if stats == nil {
			return domain.FundingPoint{}, fmt.Errorf("lighter: malformed market_stats frame")
		}
		rate, _ := asFloat(stats["funding_rate"])
		return domain.FundingPoint{ContractID: c.ID, Timestamp: time.Now().UTC(), FundingRate: rate}, nil
	}), nil
}
