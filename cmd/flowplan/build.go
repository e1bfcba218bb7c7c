package main

import (
	"fmt"
	"sort"

	"github.com/flowforge/flowplan/fingerprint"
	"github.com/flowforge/flowplan/macro"
	"github.com/flowforge/flowplan/render"
	"github.com/flowforge/flowplan/snapshot"
)

// buildSnapshots fingerprints and snapshots every model in p, walking
// p.Ordered so a model's parents are always fingerprinted first
// (spec.md §4.E: parent_data_hash is derived from the parents' own
// data hashes).
func buildSnapshots(p *project, physicalSchema string) (map[string]*snapshot.Snapshot, error) {
	renderer := render.NewRenderer(macro.NewRegistry())

	dataHashes := map[string]string{}
	snapshots := map[string]*snapshot.Snapshot{}

	pos := make(map[string]int, len(p.Ordered))
	for i, name := range p.Ordered {
		pos[name] = i
	}

	for _, name := range p.Ordered {
		m := p.Models[name]

		// Fingerprinting never substitutes physical table names: doing
		// so would fold a parent's current table version into this
		// model's data_hash, duplicating what parent_data_hash already
		// captures and making data_hash change on every rebuild.
		rendered, err := renderer.Render(m, render.EpochWindow, render.Options{})
		if err != nil {
			return nil, fmt.Errorf("fingerprint %s: %w", name, err)
		}

		// Parent hashes go to fingerprint.Compute in the project's
		// topological (name-tie-broken) order.
		deps := append([]string(nil), render.Dependencies(m)...)
		sort.SliceStable(deps, func(i, j int) bool { return pos[deps[i]] < pos[deps[j]] })
		parentHashes := make([]string, 0, len(deps))
		parents := map[snapshot.ID]bool{}
		for _, dep := range deps {
			if h, ok := dataHashes[dep]; ok {
				parentHashes = append(parentHashes, h)
			}
			if ps, ok := snapshots[dep]; ok {
				parents[ps.ID()] = true
			}
		}

		fp := fingerprint.Compute(m, rendered, parentHashes)
		dataHashes[name] = fp.DataHash

		snap := snapshot.Build(m, fp, physicalSchema, parents)
		snapshots[name] = snap
	}

	return snapshots, nil
}
