package render

import (
	"time"

	"github.com/flowforge/flowplan/modelmeta"
)

// Window is the run window a model is rendered for (spec.md §4.D).
// Ranges are inclusive on both ends; End for a daily window is
// 23:59:59.999 (spec.md §6).
type Window struct {
	Start  time.Time
	End    time.Time
	Latest time.Time
}

// EpochWindow is the reference window fingerprint.Compute renders
// against so date macros never pollute a model's data identity
// (spec.md §4.E).
var EpochWindow = Window{
	Start:  time.Unix(0, 0).UTC(),
	End:    time.Unix(0, 0).UTC(),
	Latest: time.Unix(0, 0).UTC(),
}

// WindowForModel computes the most recently completed cron interval for
// m as of asOf, snapped to m's own normalized cron boundaries via
// modelmeta.CronFloor/CronPrev (spec.md §4.C) rather than a fixed
// calendar window — a minute-cron model gets a minute-wide window, an
// hourly-cron model an hour-wide one, and so on. End is inclusive: one
// millisecond before the next interval's start, per spec.md §6.
func WindowForModel(m *modelmeta.Model, asOf time.Time) (Window, error) {
	end, err := modelmeta.CronFloor(m, asOf)
	if err != nil {
		return Window{}, err
	}
	start, err := modelmeta.CronPrev(m, end.Add(-time.Nanosecond))
	if err != nil {
		return Window{}, err
	}
	if start.IsZero() {
		start = end
	}
	inclusiveEnd := end
	if start.Before(end) {
		inclusiveEnd = end.Add(-time.Millisecond)
	}
	return Window{Start: start, End: inclusiveEnd, Latest: inclusiveEnd}, nil
}

const dsLayout = "2006-01-02"

func dateString(t time.Time) string {
	return t.UTC().Format(dsLayout)
}

func timestampString(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05.000")
}
