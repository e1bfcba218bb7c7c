// Package seed implements the seed-file model source of spec.md §6: a
// CSV file plus a sibling YAML manifest declaring the seed's column
// types and batch size, loaded into a modelmeta.Model of Kind == SEED
// whose "query" (spec.md §3) is the seed's declared column list.
package seed

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/flowforge/flowplan/modelmeta"
	"github.com/flowforge/flowplan/sqlast"
)

// Column is one declared column of a seed file.
type Column struct {
	Name string
	Type string
}

// Seed is a loaded seed file: its manifest plus the CSV rows, kept
// alongside the Model so callers needing row data (e.g. a future
// INSERT materializer) don't have to reopen the CSV.
type Seed struct {
	Model   *modelmeta.Model
	Columns []Column
	Rows    [][]string
}

// manifest is the sibling YAML's shape, named the way the teacher
// names its config DTOs: lowercase YAML keys mapped onto exported
// fields via struct tags.
type manifest struct {
	Name      string `yaml:"name"`
	BatchSize int    `yaml:"batch_size"`
	Columns   []struct {
		Name string `yaml:"name"`
		Type string `yaml:"type"`
	} `yaml:"columns"`
}

// Load reads csvPath and its sibling "<name-without-ext>.yaml" manifest
// (spec.md §6 "Seed file"), returning a Seed whose Model.Kind is
// modelmeta.KindSeed and whose Model.SeedPath is csvPath.
func Load(csvPath string) (*Seed, error) {
	yamlPath := strings.TrimSuffix(csvPath, filepath.Ext(csvPath)) + ".yaml"

	yamlBytes, err := os.ReadFile(yamlPath)
	if err != nil {
		return nil, &modelmeta.ConfigError{File: csvPath, Msg: fmt.Sprintf("reading seed manifest %s: %v", yamlPath, err)}
	}
	var man manifest
	if err := yaml.Unmarshal(yamlBytes, &man); err != nil {
		return nil, &modelmeta.ConfigError{File: yamlPath, Msg: fmt.Sprintf("parsing seed manifest: %v", err)}
	}
	if man.Name == "" {
		return nil, &modelmeta.ConfigError{File: yamlPath, Msg: "seed manifest is missing required property 'name'"}
	}
	if len(man.Columns) == 0 {
		return nil, &modelmeta.ConfigError{File: yamlPath, Msg: "seed manifest declares no columns"}
	}

	columns := make([]Column, 0, len(man.Columns))
	seen := map[string]bool{}
	for _, c := range man.Columns {
		if c.Name == "" || c.Type == "" {
			return nil, &modelmeta.ConfigError{File: yamlPath, Msg: "seed manifest column requires both 'name' and 'type'"}
		}
		lname := strings.ToLower(c.Name)
		if seen[lname] {
			return nil, &modelmeta.ConfigError{File: yamlPath, Msg: fmt.Sprintf("duplicate seed column %q", c.Name)}
		}
		seen[lname] = true
		columns = append(columns, Column{Name: c.Name, Type: c.Type})
	}

	rows, err := readCSV(csvPath, len(columns))
	if err != nil {
		return nil, err
	}

	m := &modelmeta.Model{
		Name:      man.Name,
		Kind:      modelmeta.KindSeed,
		SeedPath:  csvPath,
		BatchSize: man.BatchSize,
		Dialect:   sqlast.DialectDuckDB,
		Query:     columnListQuery(columns),
	}

	return &Seed{Model: m, Columns: columns, Rows: rows}, nil
}

// columnListQuery builds a fromless projection of a seed's declared
// columns, e.g. `SELECT CAST(NULL AS VARCHAR) AS code, ...`. It gives
// fingerprint.Compute and render.Dependencies something to work with
// for a seed model the same way they do for a SQL model's query,
// without a seed acquiring upstream parents (there is no FROM clause to
// infer them from) or losing its SeedPath as the authoritative source.
func columnListQuery(columns []Column) *sqlast.Select {
	exprs := make([]sqlast.SelectExpr, len(columns))
	for i, c := range columns {
		exprs[i] = &sqlast.AliasedExpr{
			Expr: &sqlast.CastExpr{Expr: &sqlast.Literal{Type: sqlast.LiteralNull}, Type: c.Type},
			As:   c.Name,
		}
	}
	return &sqlast.Select{SelectExprs: exprs}
}

// readCSV parses csvPath, skipping its header row, and validates every
// data row has exactly width fields — a seed's row shape must match its
// manifest's column count so a later INSERT can bind positionally.
func readCSV(csvPath string, width int) ([][]string, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, &modelmeta.ConfigError{File: csvPath, Msg: fmt.Sprintf("opening seed CSV: %v", err)}
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	if _, err := r.Read(); err != nil {
		if err == io.EOF {
			return nil, &modelmeta.ConfigError{File: csvPath, Msg: "seed CSV has no header row"}
		}
		return nil, &modelmeta.ConfigError{File: csvPath, Msg: fmt.Sprintf("reading seed CSV header: %v", err)}
	}

	var rows [][]string
	line := 1
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, &modelmeta.ConfigError{File: csvPath, Line: line, Msg: fmt.Sprintf("reading seed CSV row: %v", err)}
		}
		if len(record) != width {
			return nil, &modelmeta.ConfigError{File: csvPath, Line: line, Msg: fmt.Sprintf("row has %d fields, manifest declares %d columns", len(record), width)}
		}
		rows = append(rows, record)
	}
	return rows, nil
}

// ColumnNames returns the declared column names in manifest order, the
// projection list render/modelmeta treat as this model's "query"
// (spec.md §3: "Query: ... or a seed reference").
func (s *Seed) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}
