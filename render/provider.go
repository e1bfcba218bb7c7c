package render

import "github.com/flowforge/flowplan/modelmeta"

// Provider resolves model names during rendering (spec.md §4.D steps
// 4-5): LookupModel backs EACH-model inlining, PhysicalTable backs the
// table-name substitution. It is a narrow interface rather than a
// concrete snapshot map so this package never depends on the snapshot
// package (which depends on render for fingerprinting, see
// fingerprint.Compute) — see DESIGN.md.
type Provider interface {
	LookupModel(name string) (*modelmeta.Model, bool)
	PhysicalTable(name string) (string, bool)
}

// MapProvider is a trivial Provider backed by plain maps, sufficient
// for tests and simple callers.
type MapProvider struct {
	Models  map[string]*modelmeta.Model
	Tables  map[string]string
}

func (p *MapProvider) LookupModel(name string) (*modelmeta.Model, bool) {
	if p.Models == nil {
		return nil, false
	}
	m, ok := p.Models[name]
	return m, ok
}

func (p *MapProvider) PhysicalTable(name string) (string, bool) {
	if p.Tables == nil {
		return "", false
	}
	t, ok := p.Tables[name]
	return t, ok
}
