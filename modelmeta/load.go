package modelmeta

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/flowforge/flowplan/sqlast"
)

// knownProperties is the closed set of MODEL(...) keys this module
// understands; anything else is a ConfigError (spec.md §4.C "Unknown
// keys are rejected").
var knownProperties = map[string]bool{
	"name": true, "kind": true, "cron": true, "dialect": true,
	"time_column": true, "partitioned_by": true, "start": true,
	"batch_size": true, "storage_format": true, "owner": true,
	"description": true, "stamp": true, "depends_on": true, "audits": true,
}

// Load parses a model source file's statements (spec.md §6: MODEL(...),
// any number of @DEF/session-DDL pre-statements, a final SELECT/UNION)
// into a validated Model. path is used only for ConfigError messages.
func Load(stmts []sqlast.Statement, path string) (*Model, error) {
	if len(stmts) == 0 {
		return nil, configErrf(path, 0, "model file is empty")
	}

	def, ok := stmts[0].(*sqlast.ModelDef)
	if !ok {
		return nil, configErrf(path, 0, "first statement must be MODEL(...)")
	}

	m := &Model{Path: path, BatchSize: 0, Dialect: sqlast.DialectDuckDB}
	if err := applyProperties(m, def.Props, path); err != nil {
		return nil, err
	}

	if m.Name == "" {
		return nil, configErrf(path, 0, "MODEL is missing required property 'name'")
	}

	m.PreStatements = stmts[1 : len(stmts)-1]

	last := stmts[len(stmts)-1]
	switch kind := m.Kind; {
	case kind == KindSeed, kind == KindEmbedded && m.Entrypoint != "":
		// no trailing query statement required
	default:
		switch q := last.(type) {
		case *sqlast.Select, *sqlast.Union:
			m.Query = q.(sqlast.Statement)
		default:
			return nil, configErrf(path, 0, "last statement must be a SELECT/UNION query, got %T", last)
		}
	}

	if err := validate(m, path); err != nil {
		return nil, err
	}

	unit, normalized, err := ComputeCronGranularity(m.Cron, referenceTime(m))
	if err != nil {
		return nil, configErrf(path, 0, "invalid cron %q: %v", m.Cron, err)
	}
	m.IntervalUnit = unit
	m.NormalizedCron = normalized

	return m, nil
}

func referenceTime(m *Model) time.Time {
	if t, ok := m.startTime(); ok {
		return t
	}
	return time.Unix(0, 0).UTC()
}

func applyProperties(m *Model, props *sqlast.PropertyList, path string) error {
	for _, prop := range props.Props {
		key := strings.ToLower(prop.Key)
		if !knownProperties[key] {
			return configErrf(path, 0, "unknown model property %q", prop.Key)
		}
		switch key {
		case "name":
			name, ok := exprToIdentChain(prop.Value)
			if !ok {
				return configErrf(path, 0, "name must be a [catalog.]schema.table identifier")
			}
			m.Name = name
		case "kind":
			kindName, args, ok := exprToKindCall(prop.Value)
			if !ok {
				return configErrf(path, 0, "kind must be an identifier or call, e.g. FULL or INCREMENTAL_BY_TIME(...)")
			}
			kind, ok := ParseKind(kindName)
			if !ok {
				return configErrf(path, 0, "unknown model kind %q", kindName)
			}
			m.Kind = kind
			_ = args // kind-specific sub-properties (e.g. unique_key) are parsed but not stored on the Model
		case "cron":
			s, ok := exprToString(prop.Value)
			if !ok {
				return configErrf(path, 0, "cron must be a string")
			}
			m.Cron = s
		case "dialect":
			s, ok := exprToString(prop.Value)
			if !ok {
				s, ok = exprToIdentChain(prop.Value)
			}
			if !ok {
				return configErrf(path, 0, "dialect must be a string or identifier")
			}
			m.DialectName = s
			m.Dialect = sqlast.ParseDialect(strings.ToLower(s))
		case "time_column":
			tc, err := exprToTimeColumn(prop.Value)
			if err != nil {
				return configErrf(path, 0, "time_column: %v", err)
			}
			m.TimeColumn = tc
		case "partitioned_by":
			cols, ok := exprToIdentList(prop.Value)
			if !ok {
				return configErrf(path, 0, "partitioned_by must be an identifier or tuple of identifiers")
			}
			seen := map[string]bool{}
			for _, c := range cols {
				lc := strings.ToLower(c)
				if seen[lc] {
					return configErrf(path, 0, "partitioned_by contains duplicate column %q", c)
				}
				seen[lc] = true
			}
			m.PartitionedBy = cols
		case "start":
			s, ok := exprToString(prop.Value)
			if !ok {
				return configErrf(path, 0, "start must be a string")
			}
			m.Start = s
		case "batch_size":
			n, ok := exprToInt(prop.Value)
			if !ok {
				return configErrf(path, 0, "batch_size must be an integer")
			}
			m.BatchSize = n
		case "storage_format":
			s, ok := exprToString(prop.Value)
			if !ok {
				return configErrf(path, 0, "storage_format must be a string")
			}
			m.StorageFormat = s
		case "owner":
			s, ok := exprToString(prop.Value)
			if !ok {
				return configErrf(path, 0, "owner must be a string")
			}
			m.Owner = s
		case "description":
			s, ok := exprToString(prop.Value)
			if !ok {
				return configErrf(path, 0, "description must be a string")
			}
			m.Description = s
		case "stamp":
			s, ok := exprToString(prop.Value)
			if !ok {
				return configErrf(path, 0, "stamp must be a string")
			}
			m.Stamp = s
		case "depends_on":
			deps, ok := exprToIdentList(prop.Value)
			if !ok {
				return configErrf(path, 0, "depends_on must be an identifier or tuple of identifiers")
			}
			m.DependsOn = deps
		case "audits":
			audits, ok := exprToIdentList(prop.Value)
			if !ok {
				return configErrf(path, 0, "audits must be an identifier or tuple of identifiers")
			}
			m.Audits = audits
		}
	}
	return nil
}

func validate(m *Model, path string) error {
	if m.Kind == KindIncrementalByTime && m.TimeColumn == nil {
		return configErrf(path, 0, "kind INCREMENTAL_BY_TIME requires a time_column")
	}

	if m.Query == nil {
		return nil
	}

	sel, ok := firstSelect(m.Query)
	if !ok {
		return nil
	}

	names := map[string]bool{}
	for _, se := range sel.SelectExprs {
		ae, ok := se.(*sqlast.AliasedExpr)
		if !ok {
			if _, isStar := se.(*sqlast.StarExpr); isStar {
				return configErrf(path, 0, "SELECT * is not allowed in a model query")
			}
			continue // macro nodes resolve at render time
		}
		if _, isStar := ae.Expr.(*sqlast.StarExpr); isStar {
			return configErrf(path, 0, "SELECT * is not allowed in a model query")
		}

		name, ok := projectionName(ae)
		if !ok {
			return configErrf(path, 0, "projection has no inferrable or explicit name")
		}
		lname := strings.ToLower(name)
		if names[lname] {
			return configErrf(path, 0, "duplicate projection name %q", name)
		}
		names[lname] = true

		if !isExplicitlyTyped(ae.Expr) {
			return configErrf(path, 0, "projection %q must be explicitly cast", name)
		}
	}

	for _, col := range m.AllPartitionColumns() {
		if !names[strings.ToLower(col)] {
			return configErrf(path, 0, "partition column %q is not a projection of the model query", col)
		}
	}

	return nil
}

func firstSelect(st sqlast.Statement) (*sqlast.Select, bool) {
	switch n := st.(type) {
	case *sqlast.Select:
		return n, true
	case *sqlast.Union:
		return firstSelect(n.Left)
	default:
		return nil, false
	}
}

func projectionName(ae *sqlast.AliasedExpr) (string, bool) {
	if ae.As != "" {
		return ae.As, true
	}
	switch e := ae.Expr.(type) {
	case *sqlast.ColName:
		return e.Name, true
	case *sqlast.CastExpr:
		if cn, ok := e.Expr.(*sqlast.ColName); ok {
			return cn.Name, true
		}
	}
	return "", false
}

// isExplicitlyTyped reports whether e's type is unambiguous without
// running it through the engine: a bare column reference inherits its
// source type, a CastExpr states its type, and macro nodes are resolved
// (and re-checked implicitly) at render time. Anything else — a raw
// literal, a function call, arithmetic — must be wrapped in CAST(...)
// per spec.md §3 "each is explicitly cast".
func isExplicitlyTyped(e sqlast.Expr) bool {
	switch e.(type) {
	case *sqlast.ColName, *sqlast.CastExpr, *sqlast.MacroVar, *sqlast.MacroFunc, *sqlast.MacroSQL:
		return true
	default:
		return false
	}
}

// ---- property-value extraction helpers ----

func exprToString(e sqlast.Expr) (string, bool) {
	lit, ok := e.(*sqlast.Literal)
	if !ok || lit.Type != sqlast.LiteralString {
		return "", false
	}
	return lit.Val, true
}

func exprToInt(e sqlast.Expr) (int, bool) {
	lit, ok := e.(*sqlast.Literal)
	if !ok || lit.Type != sqlast.LiteralInt {
		return 0, false
	}
	n, err := strconv.Atoi(lit.Val)
	return n, err == nil
}

// exprToIdentChain returns the dotted identifier text of a ColName
// (e.g. `catalog.schema.table`), used for the `name` property.
func exprToIdentChain(e sqlast.Expr) (string, bool) {
	cn, ok := e.(*sqlast.ColName)
	if !ok {
		return "", false
	}
	return cn.String(), true
}

// exprToKindCall accepts `kind = FULL` (bare identifier) or
// `kind = INCREMENTAL_BY_TIME(...)` (call with sub-properties), per
// spec.md §4.C.
func exprToKindCall(e sqlast.Expr) (name string, args []sqlast.Expr, ok bool) {
	switch n := e.(type) {
	case *sqlast.ColName:
		return n.Name, nil, true
	case *sqlast.FuncExpr:
		return n.Name, n.Args, true
	default:
		return "", nil, false
	}
}

// exprToIdentList accepts a single identifier or a `(a, b, c)` tuple.
func exprToIdentList(e sqlast.Expr) ([]string, bool) {
	if tup, ok := e.(*sqlast.FuncExpr); ok && tup.Name == "__tuple__" {
		out := make([]string, 0, len(tup.Args))
		for _, a := range tup.Args {
			s, ok := identOrString(a)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	s, ok := identOrString(e)
	if !ok {
		return nil, false
	}
	return []string{s}, true
}

func identOrString(e sqlast.Expr) (string, bool) {
	switch n := e.(type) {
	case *sqlast.ColName:
		return n.Name, true
	case *sqlast.Literal:
		if n.Type == sqlast.LiteralString {
			return n.Val, true
		}
	}
	return "", false
}

// exprToTimeColumn accepts `ident`, `(ident)`, or `(ident, 'format')`
// (spec.md §4.C).
func exprToTimeColumn(e sqlast.Expr) (*TimeColumn, error) {
	if tup, ok := e.(*sqlast.FuncExpr); ok && tup.Name == "__tuple__" {
		if len(tup.Args) == 1 {
			name, ok := identOrString(tup.Args[0])
			if !ok {
				return nil, fmt.Errorf("expected an identifier")
			}
			return &TimeColumn{Name: name}, nil
		}
		if len(tup.Args) == 2 {
			name, ok := identOrString(tup.Args[0])
			if !ok {
				return nil, fmt.Errorf("expected an identifier")
			}
			format, ok := exprToString(tup.Args[1])
			if !ok {
				return nil, fmt.Errorf("format must be a string")
			}
			return &TimeColumn{Name: name, Format: format}, nil
		}
		return nil, fmt.Errorf("expected (ident) or (ident, 'format')")
	}
	name, ok := identOrString(e)
	if !ok {
		return nil, fmt.Errorf("expected an identifier")
	}
	return &TimeColumn{Name: name}, nil
}
