package exchange

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/sawpanic/cryptorun/internal/cache"
	"github.com/sawpanic/cryptorun/internal/domain"
	"github.com/sawpanic/cryptorun/internal/httpfetch"
)

const paradexBaseURL = "https://api.prod.paradex.trade"

// Paradex emits roughly one funding record every 5 seconds carrying a
// cumulative 8-hour rate rather than a settled hourly rate. The adapter
// buckets raw records by wall-clock hour (floor-to-hour, +1h for the
// bucket's end label), averages the raw rates within a bucket, and
// divides by 8 to obtain the hourly rate. The live sampler feeds the
// Redis-backed bucket cache; FetchHistoryAfter consults it and, once a
// bucket holds at least 50 samples, uses the cached average instead of
// hitting the API, consuming the bucket on first use.
type Paradex struct {
	http    *httpfetch.Client
	cache   *cache.ParadexCache
	baseURL string
}

func NewParadex(c *cache.ParadexCache) *Paradex {
	return &Paradex{http: httpfetch.New(IDParadex), cache: c, baseURL: paradexBaseURL}
}

func (p *Paradex) ID() string        { return IDParadex }
func (p *Paradex) FetchStep() int    { return 6 }
func (p *Paradex) FormatSymbol(c domain.Contract) string { return c.AssetName + "-" + c.QuoteName + "-PERP" }

func (p *Paradex) GetContracts(ctx context.Context) ([]domain.ContractInfo, error) {
	resp, err := p.http.Get(ctx, p.baseURL+"/v1/markets", nil, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("paradex markets: %w", err)
	}
	root, _ := resp.(map[string]any)
	results, _ := root["results"].([]any)

	var out []domain.ContractInfo
	for _, r := range results {
		entry, _ := r.(map[string]any)
		if entry == nil {
			continue
		}
		assetKind, _ := entry["asset_kind"].(string)
		if assetKind != "PERP" {
			continue
		}
		base, _ := entry["base_currency"].(string)
		quote, _ := entry["quote_currency"].(string)
		if base == "" {
			continue
		}
		out = append(out, domain.ContractInfo{
			AssetName:       base,
			QuoteName:       quote,
			SectionName:     IDParadex,
			FundingInterval: 1,
		})
	}
	return out, nil
}

func hourBucketEnd(ts time.Time) time.Time {
	return ts.UTC().Truncate(time.Hour).Add(time.Hour)
}

func (p *Paradex) fetchRaw(ctx context.Context, c domain.Contract, startMS, endMS int64) ([]struct {
	ts   time.Time
	rate float64
}, error) {
	q := url.Values{}
	q.Set("market", p.FormatSymbol(c))
	q.Set("start_at", strconv.FormatInt(startMS, 10))
	q.Set("end_at", strconv.FormatInt(endMS, 10))

	resp, err := p.http.Get(ctx, p.baseURL+"/v1/funding/data", q, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("paradex funding/data: %w", err)
	}
	root, _ := resp.(map[string]any)
	results, _ := root["results"].([]any)

	out := make([]struct {
		ts   time.Time
		rate float64
	}, 0, len(results))
	for _, r := range results {
		entry, _ := r.(map[string]any)
		if entry == nil {
			continue
		}
		tsMS, _ := asFloat(entry["created_at"])
		rate, _ := asFloat(entry["funding_rate"])
		out = append(out, struct {
			ts   time.Time
			rate float64
		}{time.UnixMilli(int64(tsMS)).UTC(), rate})
	}
	return out, nil
}

func bucketRaw(raw []struct {
	ts   time.Time
	rate float64
}, c domain.Contract) []domain.FundingPoint {
	sums := map[int64]float64{}
	counts := map[int64]int{}
	for _, r := range raw {
		key := hourBucketEnd(r.ts).Unix()
		sums[key] += r.rate
		counts[key]++
	}
	points := make([]domain.FundingPoint, 0, len(sums))
	for key, sum := range sums {
		avg := sum / float64(counts[key])
		points = append(points, domain.FundingPoint{
			ContractID:  c.ID,
			Timestamp:   time.Unix(key, 0).UTC(),
			FundingRate: avg / 8,
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Timestamp.Before(points[j].Timestamp) })
	return points
}

func (p *Paradex) FetchHistoryBefore(ctx context.Context, c domain.Contract, before *time.Time) ([]domain.FundingPoint, error) {
	endMS := time.Now().UTC().UnixMilli()
	if before != nil {
		endMS = before.UnixMilli()
	}
	startMS := endMS - int64(p.FetchStep())*int64(time.Hour/time.Millisecond)

	raw, err := p.fetchRaw(ctx, c, startMS, endMS)
	if err != nil {
		return nil, err
	}
	points := bucketRaw(raw, c)
	if before == nil {
		return points, nil
	}
	filtered := points[:0]
	for _, pt := range points {
		if pt.Timestamp.Before(*before) {
			filtered = append(filtered, pt)
		}
	}
	return filtered, nil
}

// FetchHistoryAfter consults the live-populated cache bucket for each
// hour in range before falling back to the API, consuming each cache
// bucket it uses.
func (p *Paradex) FetchHistoryAfter(ctx context.Context, c domain.Contract, after time.Time) ([]domain.FundingPoint, error) {
	now := time.Now().UTC()
	var points []domain.FundingPoint

	for bucketEnd := hourBucketEnd(after); !bucketEnd.After(now); bucketEnd = bucketEnd.Add(time.Hour) {
		hourStart := bucketEnd.Add(-time.Hour)
		if p.cache != nil {
			if rate, ok, err := p.cache.ConsumeAverage(ctx, c.ID, hourStart); err == nil && ok {
				points = append(points, domain.FundingPoint{ContractID: c.ID, Timestamp: bucketEnd, FundingRate: rate})
				continue
			}
		}

		raw, err := p.fetchRaw(ctx, c, hourStart.UnixMilli(), bucketEnd.UnixMilli())
		if err != nil {
			return points, err
		}
		for _, pt := range bucketRaw(raw, c) {
			if pt.Timestamp.After(after) {
				points = append(points, pt)
			}
		}
	}
	return points, nil
}

// FetchLive fetches the venue's latest raw cumulative-8h samples and
// feeds them into the bucket cache; it does not itself return an
// aggregated hourly rate since a single 5s sample is not a settled rate.
func (p *Paradex) FetchLive(ctx context.Context, contracts []domain.Contract) (map[uuid.UUID]domain.FundingPoint, error) {
	now := time.Now().UTC()
	startMS := now.Add(-2 * time.Minute).UnixMilli()

	return fetchLiveParallel(ctx, contracts, func(ctx context.Context, c domain.Contract) (domain.FundingPoint, error) {
		raw, err := p.fetchRaw(ctx, c, startMS, now.UnixMilli())
		if err != nil {
			return domain.FundingPoint{}, err
		}
		if len(raw) == 0 {
			return domain.FundingPoint{}, fmt.Errorf("paradex: no live samples for %s", p.FormatSymbol(c))
		}
		latest := raw[len(raw)-1]
		if p.cache != nil {
			hourStart := hourBucketEnd(latest.ts).Add(-time.Hour)
			for _, r := range raw {
				if err := p.cache.AddSample(ctx, c.ID, hourStart, r.rate); err != nil {
					return domain.FundingPoint{}, err
				}
			}
		}
		return domain.FundingPoint{ContractID: c.ID, Timestamp: latest.ts, FundingRate: latest.rate / 8}, nil
	}), nil
}
