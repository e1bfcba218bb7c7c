package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadProject_OrdersParentsBeforeChildren(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, dir, "raw_events.csv", "id,name\n1,a\n2,b\n")
	writeFile(t, dir, "raw_events.yaml", `
name: db.raw.raw_events
columns:
  - name: id
    type: BIGINT
  - name: name
    type: VARCHAR
`)

	writeFile(t, dir, "daily_counts.sql", `
MODEL (
  name = db.schema.daily_counts,
  kind = FULL,
  cron = '@daily'
);
SELECT name, COUNT(*) AS cnt FROM db.raw.raw_events GROUP BY name;
`)

	p, err := loadProject(dir)
	require.NoError(t, err)
	require.Len(t, p.Ordered, 2)
	assert.Equal(t, "db.raw.raw_events", p.Ordered[0])
	assert.Equal(t, "db.schema.daily_counts", p.Ordered[1])

	seedModel := p.Models["db.raw.raw_events"]
	require.NotNil(t, seedModel)
	assert.Equal(t, filepath.Join(dir, "raw_events.csv"), seedModel.SeedPath)
}

func TestLoadProject_MissingSeedManifestIsError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "orphan.csv", "id\n1\n")

	_, err := loadProject(dir)
	require.Error(t, err)
}

func TestOrderModels_DetectsCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.sql", `
MODEL (
  name = db.schema.a,
  kind = FULL,
  cron = '@daily'
);
SELECT id FROM db.schema.b;
`)
	writeFile(t, dir, "b.sql", `
MODEL (
  name = db.schema.b,
  kind = FULL,
  cron = '@daily'
);
SELECT id FROM db.schema.a;
`)

	_, err := loadProject(dir)
	require.Error(t, err)
}
