package cache

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockCache() (*ParadexCache, redismock.ClientMock) {
	client, mock := redismock.NewClientMock()
	return &ParadexCache{client: client}, mock
}

func TestAddSample_PushesAndExpires(t *testing.T) {
	c, mock := newMockCache()
	contractID := uuid.New()
	hourStart := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	key := bucketKey(contractID, hourStart)

	mock.ExpectRPush(key, "0.0008").SetVal(1)
	mock.ExpectExpire(key, 3*time.Hour).SetVal(true)

	err := c.AddSample(context.Background(), contractID, hourStart, 0.0008)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumeAverage_BelowThresholdReturnsFalse(t *testing.T) {
	c, mock := newMockCache()
	contractID := uuid.New()
	hourStart := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	key := bucketKey(contractID, hourStart)

	samples := make([]string, 49)
	for i := range samples {
		samples[i] = "0.0008"
	}
	mock.ExpectLRange(key, 0, -1).SetVal(samples)

	rate, ok, err := c.ConsumeAverage(context.Background(), contractID, hourStart)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, rate)
}

func TestConsumeAverage_AtThresholdAveragesDividesByEightAndDeletes(t *testing.T) {
	c, mock := newMockCache()
	contractID := uuid.New()
	hourStart := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	key := bucketKey(contractID, hourStart)

	samples := make([]string, 50)
	for i := range samples {
		samples[i] = "0.008"
	}
	mock.ExpectLRange(key, 0, -1).SetVal(samples)
	mock.ExpectDel(key).SetVal(1)

	rate, ok, err := c.ConsumeAverage(context.Background(), contractID, hourStart)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 0.001, rate, 1e-9)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumeAverage_MissingKeyTreatedAsEmpty(t *testing.T) {
	c, mock := newMockCache()
	contractID := uuid.New()
	hourStart := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	key := bucketKey(contractID, hourStart)

	mock.ExpectLRange(key, 0, -1).SetErr(redis.Nil)

	rate, ok, err := c.ConsumeAverage(context.Background(), contractID, hourStart)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, rate)
}
