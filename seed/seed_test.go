package seed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/flowplan/modelmeta"
)

func writeSeedFiles(t *testing.T, yamlBody, csvBody string) string {
	t.Helper()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "countries.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(csvBody), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "countries.yaml"), []byte(yamlBody), 0o644))
	return csvPath
}

func TestLoad_ParsesManifestAndRows(t *testing.T) {
	csvPath := writeSeedFiles(t, `
name: db.schema.countries
batch_size: 500
columns:
  - name: code
    type: VARCHAR
  - name: population
    type: BIGINT
`, "code,population\nUS,331000000\nFR,67000000\n")

	s, err := Load(csvPath)
	require.NoError(t, err)

	assert.Equal(t, "db.schema.countries", s.Model.Name)
	assert.Equal(t, modelmeta.KindSeed, s.Model.Kind)
	assert.Equal(t, csvPath, s.Model.SeedPath)
	assert.Equal(t, 500, s.Model.BatchSize)
	assert.Equal(t, []Column{{Name: "code", Type: "VARCHAR"}, {Name: "population", Type: "BIGINT"}}, s.Columns)
	assert.Equal(t, []string{"code", "population"}, s.ColumnNames())
	assert.Equal(t, [][]string{{"US", "331000000"}, {"FR", "67000000"}}, s.Rows)
}

func TestLoad_MissingManifestIsConfigError(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "orphan.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("a\n1\n"), 0o644))

	_, err := Load(csvPath)
	require.Error(t, err)
	var cfgErr *modelmeta.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestLoad_DuplicateColumnNameIsRejected(t *testing.T) {
	csvPath := writeSeedFiles(t, `
name: db.schema.dup
columns:
  - name: code
    type: VARCHAR
  - name: code
    type: INT
`, "code,code\na,1\n")

	_, err := Load(csvPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate seed column")
}

func TestLoad_RowWidthMismatchIsRejected(t *testing.T) {
	csvPath := writeSeedFiles(t, `
name: db.schema.mismatch
columns:
  - name: a
    type: VARCHAR
  - name: b
    type: VARCHAR
`, "a,b\n1,2,3\n")

	_, err := Load(csvPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "manifest declares 2 columns")
}

func TestLoad_MissingNameIsConfigError(t *testing.T) {
	csvPath := writeSeedFiles(t, `
columns:
  - name: a
    type: VARCHAR
`, "a\n1\n")

	_, err := Load(csvPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required property 'name'")
}
