package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/flowplan/modelmeta"
)

func TestWindowForModel_MinuteGranularity(t *testing.T) {
	m := parseModel(t, `
MODEL (
  name = db.schema.m,
  kind = FULL,
  cron = '* * * * *'
);
SELECT id FROM db.raw.orders;
`)
	assert.Equal(t, modelmeta.IntervalMinute, m.IntervalUnit)

	// asOf sits mid-minute, so the most recently *completed* minute is
	// 12:29:00-12:29:59.999, not the in-progress 12:30 minute.
	asOf := time.Date(2026, 1, 1, 12, 30, 30, 0, time.UTC)
	win, err := WindowForModel(m, asOf)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 1, 1, 12, 29, 0, 0, time.UTC), win.Start)
	assert.Equal(t, time.Date(2026, 1, 1, 12, 29, 59, 999000000, time.UTC), win.End)
	assert.Equal(t, win.End, win.Latest)
}

func TestWindowForModel_DailyGranularity(t *testing.T) {
	m := parseModel(t, `
MODEL (
  name = db.schema.m,
  kind = FULL,
  cron = '@daily'
);
SELECT id FROM db.raw.orders;
`)
	asOf := time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC)
	win, err := WindowForModel(m, asOf)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), win.Start)
	assert.Equal(t, time.Date(2026, 1, 1, 23, 59, 59, 999000000, time.UTC), win.End)
}
