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

const kucoinBaseURL = "https://api-futures.kucoin.com"

// KuCoin futures symbols are "ASSETQUOTEM" (e.g. XBTUSDTM); FETCH_STEP is
// 100, the smallest in the table after Paradex's 6, because the venue
// paginates only 100 points at a time.
type KuCoin struct {
	historyByWindow
	http    *httpfetch.Client
	baseURL string
}

func NewKuCoin() *KuCoin {
	k := &KuCoin{http: httpfetch.New(IDKucoin), baseURL: kucoinBaseURL}
	k.historyByWindow = newHistoryByWindow(100, k.fetchWindow)
	return k
}

func (k *KuCoin) ID() string     { return IDKucoin }
func (k *KuCoin) FetchStep() int { return 100 }

func (k *KuCoin) FormatSymbol(c domain.Contract) string {
	return c.AssetName + c.QuoteName + "M"
}

func (k *KuCoin) GetContracts(ctx context.Context) ([]domain.ContractInfo, error) {
	resp, err := k.http.Get(ctx, k.baseURL+"/api/v1/contracts/active", nil, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("kucoin contracts/active: %w", err)
	}
	root, _ := resp.(map[string]any)
	data, _ := root["data"].([]any)

	var out []domain.ContractInfo
	for _, d := range data {
		entry, _ := d.(map[string]any)
		if entry == nil {
			continue
		}
		itype, _ := entry["type"].(string)
		if itype != "FFWCSX" && itype != "FFICSX" {
			continue
		}
		baseCurrency, _ := entry["baseCurrency"].(string)
		quoteCurrency, _ := entry["quoteCurrency"].(string)
		fundingRateGranularity, _ := asFloat(entry["fundingRateGranularity"])
		intervalHours := 8
		if fundingRateGranularity > 0 {
			intervalHours = int(fundingRateGranularity / 3600000)
			if intervalHours <= 0 {
				intervalHours = 8
			}
		}
		out = append(out, domain.ContractInfo{
			AssetName:       baseCurrency,
			QuoteName:       quoteCurrency,
			SectionName:     IDKucoin,
			FundingInterval: intervalHours,
		})
	}
	return out, nil
}

func (k *KuCoin) fetchWindow(ctx context.Context, c domain.Contract, startMS, endMS int64) ([]domain.FundingPoint, error) {
	q := url.Values{}
	q.Set("symbol", k.FormatSymbol(c))
	q.Set("from", strconv.FormatInt(startMS, 10))
	q.Set("to", strconv.FormatInt(endMS, 10))

	resp, err := k.http.Get(ctx, k.baseURL+"/api/v1/contract/funding-rates", q, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("kucoin funding-rates: %w", err)
	}
	root, _ := resp.(map[string]any)
	data, _ := root["data"].([]any)

	points := make([]domain.FundingPoint, 0, len(data))
	for _, d := range data {
		entry, _ := d.(map[string]any)
		if entry == nil {
			continue
		}
		tsMS, _ := asFloat(entry["timepoint"])
		rate, _ := asFloat(entry["fundingRate"])
		points = append(points, domain.FundingPoint{
			ContractID:  c.ID,
			Timestamp:   time.UnixMilli(int64(tsMS)).UTC(),
			FundingRate: rate,
		})
	}
	return points, nil
}

func (k *KuCoin) FetchLive(ctx context.Context, contracts []domain.Contract) (map[uuid.UUID]domain.FundingPoint, error) {
	return fetchLiveParallel(ctx, contracts, func(ctx context.Context, c domain.Contract) (domain.FundingPoint, error) {
		resp, err := k.http.Get(ctx, k.baseURL+"/api/v1/funding-rate/"+k.FormatSymbol(c)+"/current", nil, nil, 0)
		if err != nil {
			return domain.FundingPoint{}, err
		}
		root, _ := resp.(map[string]any)
		data, _ := root["data"].(map[string]any)
		if data == nil {
			return domain.FundingPoint{}, fmt.Errorf("kucoin: no live rate for %s", k.FormatSymbol(c))
		}
		rate, _ := asFloat(data["value"])
		return domain.FundingPoint{ContractID: c.ID, Timestamp: time.Now().UTC(), FundingRate: rate}, nil
	}), nil
}
