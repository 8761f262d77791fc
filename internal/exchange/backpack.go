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
	backpackBaseURL  = "https://api.backpack.exchange"
	backpackPageSize = 1000
	backpackMaxPages = 200
)

// Backpack has no start/end-time funding endpoint; it only supports
// limit/offset paging over its history, newest record first, with offset
// counted in funding-interval units rather than wall-clock time. Because
// the pagination axis isn't a time window, Backpack implements
// FetchHistoryBefore/FetchHistoryAfter directly instead of embedding
// historyByWindow.
type Backpack struct {
	http    *httpfetch.Client
	baseURL string
}

func NewBackpack() *Backpack {
	return &Backpack{http: httpfetch.New(IDBackpack), baseURL: backpackBaseURL}
}

func (b *Backpack) ID() string     { return IDBackpack }
func (b *Backpack) FetchStep() int { return 1000 }

func (b *Backpack) FormatSymbol(c domain.Contract) string {
	return fmt.Sprintf("%s_%s_PERP_%d", c.AssetName, c.QuoteName, c.FundingInterval)
}

func (b *Backpack) GetContracts(ctx context.Context) ([]domain.ContractInfo, error) {
	resp, err := b.http.Get(ctx, b.baseURL+"/api/v1/markets", nil, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("backpack markets: %w", err)
	}
	rows, _ := resp.([]any)

	var out []domain.ContractInfo
	for _, r := range rows {
		entry, _ := r.(map[string]any)
		if entry == nil {
			continue
		}
		marketType, _ := entry["marketType"].(string)
		if marketType != "PERP" {
			continue
		}
		orderBookState, _ := entry["orderBookState"].(string)
		if orderBookState != "Open" {
			continue
		}
		base, _ := entry["baseSymbol"].(string)
		quote, _ := entry["quoteSymbol"].(string)
		fundingInterval, ok := asFloat(entry["fundingIntervalHours"])
		intervalHours := 1
		if ok && fundingInterval > 0 {
			intervalHours = int(fundingInterval)
		}
		if base == "" {
			continue
		}
		out = append(out, domain.ContractInfo{
			AssetName:       base,
			QuoteName:       quote,
			SectionName:     IDBackpack,
			FundingInterval: intervalHours,
		})
	}
	return out, nil
}

func (b *Backpack) fetchPage(ctx context.Context, c domain.Contract, offset int) ([]domain.FundingPoint, error) {
	q := url.Values{}
	q.Set("symbol", b.FormatSymbol(c))
	q.Set("limit", strconv.Itoa(backpackPageSize))
	q.Set("offset", strconv.Itoa(offset))

	resp, err := b.http.Get(ctx, b.baseURL+"/api/v1/fundingRates", q, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("backpack fundingRates: %w", err)
	}
	rows, _ := resp.([]any)

	points := make([]domain.FundingPoint, 0, len(rows))
	for _, r := range rows {
		entry, _ := r.(map[string]any)
		if entry == nil {
			continue
		}
		intervalEnd, _ := entry["intervalEndTimestamp"].(string)
		ts, err := time.Parse(time.RFC3339, intervalEnd)
		if err != nil {
			continue
		}
		rateStr, _ := entry["fundingRate"].(string)
		rate, _ := strconv.ParseFloat(rateStr, 64)
		points = append(points, domain.FundingPoint{ContractID: c.ID, Timestamp: ts.UTC(), FundingRate: rate})
	}
	return points, nil
}

// FetchHistoryBefore pages backward (each page is older than the last,
// newest record first within a page) until a record older than `before`
// is seen or the venue runs out of pages.
func (b *Backpack) FetchHistoryBefore(ctx context.Context, c domain.Contract, before *time.Time) ([]domain.FundingPoint, error) {
	var out []domain.FundingPoint
	for page := 0; page < backpackMaxPages; page++ {
		points, err := b.fetchPage(ctx, c, page*backpackPageSize)
		if err != nil {
			return out, err
		}
		if len(points) == 0 {
			break
		}
		found := false
		for _, p := range points {
			if before != nil && !p.Timestamp.Before(*before) {
				continue
			}
			out = append(out, p)
			found = true
		}
		if found || len(points) < backpackPageSize {
			break
		}
	}
	return out, nil
}

// FetchHistoryAfter pages from the most recent offset backward until a
// record at or before `after` is reached, since Backpack has no direct
// "since" cursor.
func (b *Backpack) FetchHistoryAfter(ctx context.Context, c domain.Contract, after time.Time) ([]domain.FundingPoint, error) {
	var out []domain.FundingPoint
	for page := 0; page < backpackMaxPages; page++ {
		points, err := b.fetchPage(ctx, c, page*backpackPageSize)
		if err != nil {
			return out, err
		}
		if len(points) == 0 {
			break
		}
		reachedBoundary := false
		for _, p := range points {
			if !p.Timestamp.After(after) {
				reachedBoundary = true
				continue
			}
			out = append(out, p)
		}
		if reachedBoundary || len(points) < backpackPageSize {
			break
		}
	}
	return out, nil
}

func (b *Backpack) FetchLive(ctx context.Context, contracts []domain.Contract) (map[uuid.UUID]domain.FundingPoint, error) {
	return fetchLiveParallel(ctx, contracts, func(ctx context.Context, c domain.Contract) (domain.FundingPoint, error) {
		points, err := b.fetchPage(ctx, c, 0)
		if err != nil {
			return domain.FundingPoint{}, err
		}
		if len(points) == 0 {
			return domain.FundingPoint{}, fmt.Errorf("backpack: no live rate for %s", b.FormatSymbol(c))
		}
		return points[0], nil
	}), nil
}
