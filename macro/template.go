package macro

import (
	"fmt"
	"regexp"

	"github.com/flowforge/flowplan/sqlast"
)

var templateVarRE = regexp.MustCompile(`@([A-Za-z_][A-Za-z0-9_]*)`)

// renderTemplate substitutes every `@name` occurrence in text against
// Env, Python-Template-style (spec.md §4.A MacroStrReplace). Unbound
// names are an error rather than left verbatim, since an unresolved
// template is almost always an author mistake.
func (ev *Evaluator) renderTemplate(text string) (string, error) {
	var firstErr error
	out := templateVarRE.ReplaceAllStringFunc(text, func(match string) string {
		if firstErr != nil {
			return match
		}
		name := match[1:]
		v, ok := ev.Env.Get(name)
		if !ok {
			firstErr = fmt.Errorf("template variable '@%s' is not bound", name)
			return match
		}
		lit, err := ev.evalConst(v)
		if err != nil {
			firstErr = err
			return match
		}
		return literalText(lit)
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

func literalText(l *sqlast.Literal) string {
	return l.Val
}
