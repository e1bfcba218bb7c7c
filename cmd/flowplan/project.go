package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/flowforge/flowplan/internal/dagsort"
	"github.com/flowforge/flowplan/modelmeta"
	"github.com/flowforge/flowplan/render"
	"github.com/flowforge/flowplan/seed"
	"github.com/flowforge/flowplan/sqlast"
)

// project is a loaded set of model files plus their dependency order,
// the unit cmd/flowplan's plan/apply/render subcommands operate on.
type project struct {
	Models  map[string]*modelmeta.Model
	Ordered []string // topologically sorted, parents before children
}

// loadProject scans dir for model files (*.sql, parsed as MODEL(...)
// blocks per spec.md §6) and seed files (a *.csv with a sibling *.yaml,
// spec.md §6 "Seed file"), and orders the result by dependency.
func loadProject(dir string) (*project, error) {
	models := map[string]*modelmeta.Model{}

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".sql":
			m, err := loadSQLModel(path)
			if err != nil {
				return err
			}
			models[m.Name] = m
		case ".csv":
			s, err := seed.Load(path)
			if err != nil {
				return err
			}
			models[s.Model.Name] = s.Model
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load project %s: %w", dir, err)
	}

	ordered, err := orderModels(models)
	if err != nil {
		return nil, err
	}

	return &project{Models: models, Ordered: ordered}, nil
}

func loadSQLModel(path string) (*modelmeta.Model, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	stmts, err := sqlast.ParseStatements(string(src), sqlast.DialectDuckDB)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	m, err := modelmeta.Load(stmts, path)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// orderModels topologically sorts models by render.Dependencies so
// snapshot construction can compute each model's fingerprint after all
// of its parents' (spec.md §4.E: parent_data_hash needs the parents'
// data hashes already computed).
func orderModels(models map[string]*modelmeta.Model) ([]string, error) {
	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	sort.Strings(names)

	deps := make(map[string][]string, len(models))
	for name, m := range models {
		deps[name] = render.Dependencies(m)
	}

	sorted, ok := dagsort.Sort(names, deps, func(n string) string { return n })
	if !ok {
		return nil, fmt.Errorf("load project: model dependency graph has a cycle")
	}
	return sorted, nil
}
