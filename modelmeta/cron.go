package modelmeta

import (
	"time"

	"github.com/gorhill/cronexpr"
)

// IntervalUnit is the granularity derived from a cron schedule's sampled
// next-fire gaps (spec.md §3).
type IntervalUnit int

const (
	IntervalMinute IntervalUnit = iota
	IntervalHour
	IntervalDay
)

func (u IntervalUnit) String() string {
	switch u {
	case IntervalHour:
		return "HOUR"
	case IntervalDay:
		return "DAY"
	default:
		return "MINUTE"
	}
}

// cronSampleCount is the number of next-fires sampled to infer the
// interval unit (spec.md §3: "derived ... from min gap across 10 sampled
// next-fires").
const cronSampleCount = 10

// ComputeCronGranularity parses cron, samples cronSampleCount next-fires
// from a reference time, and derives the interval unit from the minimum
// gap between consecutive fires. normalizedCron snaps to one of three
// canonical forms so that e.g. `@daily at 13:00` is treated identically
// to `@daily` for interval arithmetic (spec.md §4.C).
func ComputeCronGranularity(cron string, from time.Time) (unit IntervalUnit, normalizedCron string, err error) {
	expr, err := cronexpr.Parse(cron)
	if err != nil {
		return 0, "", err
	}

	fires := expr.NextN(from, cronSampleCount)
	if len(fires) < 2 {
		return IntervalDay, dailyNormalizedCron, nil
	}

	minGap := fires[1].Sub(fires[0])
	for i := 2; i < len(fires); i++ {
		if gap := fires[i].Sub(fires[i-1]); gap < minGap {
			minGap = gap
		}
	}

	switch {
	case minGap < time.Hour:
		return IntervalMinute, minuteNormalizedCron, nil
	case minGap < 24*time.Hour:
		return IntervalHour, hourlyNormalizedCron, nil
	default:
		return IntervalDay, dailyNormalizedCron, nil
	}
}

const (
	minuteNormalizedCron = "* * * * *"
	hourlyNormalizedCron = "0 * * * *"
	dailyNormalizedCron  = "0 0 * * *"
)

// CronNext returns the next fire time of cron strictly after ts, using
// the normalized form so e.g. `@daily at 13:00` and `@daily` agree
// (spec.md §4.C).
func CronNext(m *Model, ts time.Time) (time.Time, error) {
	expr, err := cronexpr.Parse(m.NormalizedCron)
	if err != nil {
		return time.Time{}, err
	}
	return expr.Next(ts), nil
}

// CronPrev returns the latest fire time of cron at or before ts by
// walking forward from a safe lower bound, since cronexpr exposes only
// forward iteration.
func CronPrev(m *Model, ts time.Time) (time.Time, error) {
	expr, err := cronexpr.Parse(m.NormalizedCron)
	if err != nil {
		return time.Time{}, err
	}
	lookback := 32 * 24 * time.Hour
	cur := expr.Next(ts.Add(-lookback))
	var prev time.Time
	for !cur.IsZero() && !cur.After(ts) {
		prev = cur
		cur = expr.Next(cur)
	}
	return prev, nil
}

// CronFloor snaps ts down to the most recent cron boundary at or before
// it (spec.md §4.C `cron_next/prev/floor(ts)`).
func CronFloor(m *Model, ts time.Time) (time.Time, error) {
	prev, err := CronPrev(m, ts)
	if err != nil {
		return time.Time{}, err
	}
	if prev.IsZero() {
		return ts, nil
	}
	return prev, nil
}
