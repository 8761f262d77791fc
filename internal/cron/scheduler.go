// Package cron drives C6: the three recurring triggers the funding
// tracker needs — update() on startup plus hourly, update_live() staggered
// per exchange across the minute, and the materialized-view debounce
// check every second. The teacher's own scheduler
// (internal/scheduler/scheduler.go) never got past a commented-out cron
// loop for its scan jobs; there's no cron/job library anywhere in the
// example pack actually wired up, so these three fixed-shape triggers are
// built directly on time.Timer/time.Ticker rather than reaching for one.
package cron

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/cryptorun/internal/mvrefresher"
)

// UpdateFunc drives one exchange's register/sync/update cycle.
type UpdateFunc func(ctx context.Context)

// LiveFunc drives one exchange's live sample.
type LiveFunc func(ctx context.Context)

// RunUpdateJob fires `fn` immediately, then every hour at minute=0,
// second=5 (a few seconds of slack so the wall-clock hour's settled
// funding points have actually landed upstream). coalesce=true,
// max_instances=1: a still-running invocation blocks the next tick from
// starting rather than overlapping it.
func RunUpdateJob(ctx context.Context, fn UpdateFunc) {
	run := func() {
		done := make(chan struct{})
		go func() {
			defer close(done)
			fn(ctx)
		}()
		select {
		case <-done:
		case <-ctx.Done():
		}
	}

	run()
	for {
		next := nextHourlyTick(time.Now().UTC(), 5*time.Second)
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			run()
		}
	}
}

func nextHourlyTick(now time.Time, offset time.Duration) time.Time {
	top := now.Truncate(time.Hour).Add(offset)
	if !top.After(now) {
		top = top.Add(time.Hour)
	}
	return top
}

// RunLiveJobs starts one goroutine per exchange, each firing once a
// minute, staggered by index so all N exchanges' live samples don't land
// on the venues in the same instant. Offset = index * floor(60/N)
// seconds within the minute.
func RunLiveJobs(ctx context.Context, sectionIDs []string, fn func(section string) LiveFunc) {
	n := len(sectionIDs)
	if n == 0 {
		return
	}
	stride := 60 / n
	if stride == 0 {
		stride = 1
	}

	for i, section := range sectionIDs {
		offset := time.Duration(i*stride) * time.Second
		go runStaggeredMinute(ctx, section, offset, fn(section))
	}
}

func runStaggeredMinute(ctx context.Context, section string, offset time.Duration, fn LiveFunc) {
	firstTick := nextMinuteTick(time.Now().UTC(), offset)
	timer := time.NewTimer(time.Until(firstTick))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.Error().Interface("panic", r).Str("section", section).Msg("live job panicked")
					}
				}()
				fn(ctx)
			}()
			timer.Reset(time.Until(nextMinuteTick(time.Now().UTC(), offset)))
		}
	}
}

func nextMinuteTick(now time.Time, offset time.Duration) time.Time {
	top := now.Truncate(time.Minute).Add(offset)
	if !top.After(now) {
		top = top.Add(time.Minute)
	}
	return top
}

// RunMVRefreshCheck ticks the materialized view debounce check every
// second for the life of ctx.
func RunMVRefreshCheck(ctx context.Context, refresher *mvrefresher.Refresher) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := refresher.CheckAndRefreshIfNeeded(ctx); err != nil {
				log.Error().Err(err).Msg("mv refresh check failed")
			}
		}
	}
}
