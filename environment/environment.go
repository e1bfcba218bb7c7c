// Package environment implements the promote/demote transition of
// spec.md §4.H: materializing a snapshot set's physical tables and
// repointing an environment's views at them.
package environment

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/flowforge/flowplan/engine"
	"github.com/flowforge/flowplan/internal/concurrency"
	"github.com/flowforge/flowplan/snapshot"
	"github.com/flowforge/flowplan/state"
)

// Transitioner executes environment promotion/demotion against an
// engine driver and a state store.
type Transitioner struct {
	Engine      engine.Driver
	Writer      state.Writer
	Reader      state.Reader
	// Concurrency bounds view/table creation fan-out (0 = sequential,
	// <0 = unbounded), grounded in the teacher's
	// ConcurrentMapFuncWithError (SPEC_FULL.md §3.H).
	Concurrency int
}

// Promote implements spec.md §4.H steps 1-3 and 5: upsert the
// environment record, ensure each snapshot's physical table exists,
// and (re)point a view at it. Promotion of views for a single
// environment is made atomic by doing all physical-side work before
// the single state.Writer.Promote call that flips env.Snapshots — a
// reader observing state before or after that call sees a fully
// consistent environment, never a partial one.
func (t *Transitioner) Promote(ctx context.Context, env *state.Environment, snapshots map[string]*snapshot.Snapshot, queries map[string]string, noGaps bool) error {
	if noGaps {
		if err := t.checkNoGaps(env, snapshots); err != nil {
			return err
		}
	}

	names := make([]string, 0, len(snapshots))
	for name := range snapshots {
		names = append(names, name)
	}
	sort.Strings(names)

	_, err := concurrency.MapWithError(names, t.Concurrency, func(name string) (struct{}, error) {
		s := snapshots[name]
		if !s.Kind.Materialized() {
			return struct{}{}, nil
		}
		exists, err := t.Engine.TableExists(ctx, s.TableName())
		if err != nil {
			return struct{}{}, fmt.Errorf("promote %s: %w", name, err)
		}
		if exists {
			return struct{}{}, nil
		}
		query, ok := queries[name]
		if !ok {
			return struct{}{}, fmt.Errorf("promote %s: physical table %s missing and no rendered query supplied", name, s.TableName())
		}
		ctas := fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM (%s) AS _src WHERE 1 = 0", s.TableName(), query)
		if err := t.Engine.Execute(ctx, ctas); err != nil {
			return struct{}{}, fmt.Errorf("promote %s: create physical table: %w", name, err)
		}
		slog.Info("environment: created physical table", slog.String("model", name), slog.String("table", s.TableName()))
		return struct{}{}, nil
	})
	if err != nil {
		return err
	}

	_, err = concurrency.MapWithError(names, t.Concurrency, func(name string) (struct{}, error) {
		s := snapshots[name]
		if !s.Kind.Materialized() {
			return struct{}{}, nil
		}
		viewName := snapshot.ViewName(env.Name, name)
		viewQuery := fmt.Sprintf("SELECT * FROM %s", s.TableName())
		if err := t.Engine.CreateView(ctx, viewName, viewQuery, true); err != nil {
			return struct{}{}, fmt.Errorf("promote %s: create view: %w", name, err)
		}
		return struct{}{}, nil
	})
	if err != nil {
		return err
	}

	slog.Info("environment: promoting", slog.String("environment", env.Name), slog.Int("snapshots", len(names)))
	return t.Writer.Promote(env, noGaps)
}

// Demote implements spec.md §4.H step 4: drop the views for models
// dropped from env (the diff's `removed` set).
func (t *Transitioner) Demote(ctx context.Context, envName string, removedModelNames []string) error {
	names := append([]string(nil), removedModelNames...)
	sort.Strings(names)
	_, err := concurrency.MapWithError(names, t.Concurrency, func(name string) (struct{}, error) {
		viewName := snapshot.ViewName(envName, name)
		return struct{}{}, t.Engine.DropView(ctx, viewName)
	})
	return err
}

// checkNoGaps is Promote's no_gaps precheck: it refuses the promote when
// snapshots is non-empty and env.Start is empty. No interval records are
// kept, and coverage of [env.Start, env.End] is not checked here or in
// the state store; state.Writer.Promote(noGaps) separately refuses the
// commit when a snapshot env references is not persisted.
func (t *Transitioner) checkNoGaps(env *state.Environment, snapshots map[string]*snapshot.Snapshot) error {
	for name := range snapshots {
		if env.Start == "" {
			return fmt.Errorf("promote %s: no_gaps requires env.Start to be set", name)
		}
	}
	return nil
}
