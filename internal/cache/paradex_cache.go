// Package cache holds the Redis-backed hour-bucket cache that backs
// Paradex's funding-rate aggregation.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const paradexMinSamples = 50

// ParadexCache accumulates Paradex's raw ~1-per-5s cumulative-8h funding
// samples, bucketed by wall-clock hour, so the hourly rate can be derived
// from the cache instead of re-querying the venue once enough samples have
// landed. A bucket is consumed (deleted) the first time it is read with
// enough samples to produce an average.
type ParadexCache struct {
	client *redis.Client
}

func NewParadexCache(addr, password string, db int) (*ParadexCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("paradex cache: redis connection failed: %w", err)
	}

	return &ParadexCache{client: client}, nil
}

func bucketKey(contractID uuid.UUID, hourStart time.Time) string {
	return fmt.Sprintf("paradex:funding:%s:%d", contractID, hourStart.Unix())
}

// AddSample records one raw cumulative-8h rate observed within the hour
// bucket starting at hourStart.
func (p *ParadexCache) AddSample(ctx context.Context, contractID uuid.UUID, hourStart time.Time, rawRate float64) error {
	key := bucketKey(contractID, hourStart)
	if err := p.client.RPush(ctx, key, strconv.FormatFloat(rawRate, 'g', -1, 64)).Err(); err != nil {
		return fmt.Errorf("paradex cache: rpush: %w", err)
	}
	// Buckets older than a couple of hours would only pile up if a
	// contract stopped trading; expire defensively so a dead market
	// doesn't leak keys forever.
	p.client.Expire(ctx, key, 3*time.Hour)
	return nil
}

// ConsumeAverage returns the averaged hourly rate for the bucket if at
// least paradexMinSamples raw samples are present, deleting the bucket on
// success. The second return value is false when there aren't enough
// samples yet, in which case the caller should fall back to the API.
func (p *ParadexCache) ConsumeAverage(ctx context.Context, contractID uuid.UUID, hourStart time.Time) (float64, bool, error) {
	key := bucketKey(contractID, hourStart)

	raw, err := p.client.LRange(ctx, key, 0, -1).Result()
	if err != nil && err != redis.Nil {
		return 0, false, fmt.Errorf("paradex cache: lrange: %w", err)
	}
	if len(raw) < paradexMinSamples {
		return 0, false, nil
	}

	var sum float64
	for _, s := range raw {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			continue
		}
		sum += v
	}
	avgCumulative := sum / float64(len(raw))
	hourlyRate := avgCumulative / 8

	if err := p.client.Del(ctx, key).Err(); err != nil {
		return hourlyRate, true, fmt.Errorf("paradex cache: del: %w", err)
	}
	return hourlyRate, true, nil
}

func (p *ParadexCache) Close() error {
	return p.client.Close()
}
