package sqlast

import (
	"fmt"
	"strings"
)

// TrackedBuffer accumulates canonical SQL text. Canonical means: fixed
// keyword casing, single-space separators, deterministic clause order —
// this is the substrate fingerprint.Compute canonicalizes over (spec.md
// §4.E), so two ASTs that are structurally equal must always print
// byte-identical text.
type TrackedBuffer struct {
	strings.Builder
	Dialect Dialect
}

func NewTrackedBuffer(d Dialect) *TrackedBuffer {
	return &TrackedBuffer{Dialect: d}
}

func (buf *TrackedBuffer) Printf(format string, args ...any) {
	fmt.Fprintf(buf, format, args...)
}

// FormatNode writes n's canonical text, no-op for a nil node.
func (buf *TrackedBuffer) FormatNode(n Node) {
	if n == nil || isNilNode(n) {
		return
	}
	n.Format(buf)
}

// String renders n to canonical SQL text under dialect d.
func String(n Node, d Dialect) string {
	buf := NewTrackedBuffer(d)
	buf.FormatNode(n)
	return buf.String()
}

func isNilNode(n Node) bool {
	switch v := n.(type) {
	case *Select:
		return v == nil
	case *Union:
		return v == nil
	case *Where:
		return v == nil
	case *GroupBy:
		return v == nil
	case *OrderBy:
		return v == nil
	case *Limit:
		return v == nil
	case *With:
		return v == nil
	}
	return false
}

func (s *Select) Format(buf *TrackedBuffer) {
	if s.With != nil {
		s.With.Format(buf)
		buf.WriteByte(' ')
	}
	buf.WriteString("SELECT ")
	if s.Distinct {
		buf.WriteString("DISTINCT ")
	}
	for i, se := range s.SelectExprs {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.FormatNode(se)
	}
	if len(s.From) > 0 {
		buf.WriteString(" FROM ")
		for i, te := range s.From {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.FormatNode(te)
		}
	}
	if s.Where != nil {
		buf.WriteByte(' ')
		s.Where.Format(buf)
	}
	if s.Group != nil {
		buf.WriteByte(' ')
		s.Group.Format(buf)
	}
	if s.Having != nil {
		buf.WriteByte(' ')
		s.Having.Format(buf)
	}
	if s.Order != nil {
		buf.WriteByte(' ')
		s.Order.Format(buf)
	}
	if s.Limit != nil {
		buf.WriteByte(' ')
		s.Limit.Format(buf)
	}
}

func (u *Union) Format(buf *TrackedBuffer) {
	buf.FormatNode(u.Left)
	buf.WriteByte(' ')
	buf.WriteString(strings.ToUpper(u.Type))
	buf.WriteByte(' ')
	buf.FormatNode(u.Right)
}

func (w *With) Format(buf *TrackedBuffer) {
	buf.WriteString("WITH ")
	if w.Recursive {
		buf.WriteString("RECURSIVE ")
	}
	first := true
	for _, cte := range w.CTEs {
		if !first {
			buf.WriteString(", ")
		}
		first = false
		if cte.MacroCond != nil {
			buf.WriteString("@WITH(")
			buf.FormatNode(cte.MacroCond)
			buf.WriteString(") ")
		}
		buf.WriteString(cte.Name)
		if len(cte.Columns) > 0 {
			buf.WriteString(" (")
			buf.WriteString(strings.Join(cte.Columns, ", "))
			buf.WriteByte(')')
		}
		buf.WriteString(" AS (")
		buf.FormatNode(cte.Subquery)
		buf.WriteByte(')')
	}
}

func (e *AliasedExpr) Format(buf *TrackedBuffer) {
	buf.FormatNode(e.Expr)
	if e.As != "" {
		buf.WriteString(" AS ")
		buf.WriteString(e.As)
	}
}

func (s *StarExpr) Format(buf *TrackedBuffer) {
	if s.TableName != "" {
		buf.WriteString(s.TableName)
		buf.WriteByte('.')
	}
	buf.WriteByte('*')
}

func (t *TableName) Format(buf *TrackedBuffer) {
	if t.Qualifier != "" {
		buf.WriteString(t.Qualifier)
		buf.WriteByte('.')
	}
	buf.WriteString(t.Name)
}

func (a *AliasedTableExpr) Format(buf *TrackedBuffer) {
	buf.FormatNode(a.Expr)
	if a.As != "" {
		buf.WriteString(" AS ")
		buf.WriteString(a.As)
	}
}

func (j *JoinTableExpr) Format(buf *TrackedBuffer) {
	buf.FormatNode(j.Left)
	buf.WriteByte(' ')
	if j.MacroCond != nil {
		buf.WriteString("@JOIN(")
		buf.FormatNode(j.MacroCond)
		buf.WriteString(") ")
	}
	buf.WriteString(strings.ToUpper(j.Join))
	buf.WriteByte(' ')
	buf.FormatNode(j.Right)
	if j.On != nil {
		buf.WriteString(" ON ")
		buf.FormatNode(j.On)
	}
}

func (p *ParenTableExpr) Format(buf *TrackedBuffer) {
	buf.WriteByte('(')
	for i, te := range p.Exprs {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.FormatNode(te)
	}
	buf.WriteByte(')')
}

func (s *Subquery) Format(buf *TrackedBuffer) {
	buf.WriteByte('(')
	buf.FormatNode(s.Select)
	buf.WriteByte(')')
}

func (w *Where) Format(buf *TrackedBuffer) {
	kw := "WHERE"
	if w.Type == "having" {
		kw = "HAVING"
	}
	if w.MacroCond != nil {
		buf.WriteByte('@')
		buf.WriteString(strings.ToUpper(kw))
		buf.WriteByte('(')
		buf.FormatNode(w.MacroCond)
		buf.WriteString(") ")
	}
	buf.WriteString(kw)
	buf.WriteByte(' ')
	buf.FormatNode(w.Expr)
}

func (g *GroupBy) Format(buf *TrackedBuffer) {
	if g.MacroCond != nil {
		buf.WriteString("@GROUP_BY(")
		buf.FormatNode(g.MacroCond)
		buf.WriteString(") ")
	}
	buf.WriteString("GROUP BY ")
	for i, e := range g.Exprs {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.FormatNode(e)
	}
}

func (o *OrderBy) Format(buf *TrackedBuffer) {
	if o.MacroCond != nil {
		buf.WriteString("@ORDER_BY(")
		buf.FormatNode(o.MacroCond)
		buf.WriteString(") ")
	}
	buf.WriteString("ORDER BY ")
	for i, item := range o.Items {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.FormatNode(item.Expr)
		if item.Direction != "" {
			buf.WriteByte(' ')
			buf.WriteString(strings.ToUpper(item.Direction))
		}
	}
}

func (l *Limit) Format(buf *TrackedBuffer) {
	buf.WriteString("LIMIT ")
	buf.FormatNode(l.Rowcount)
	if l.Offset != nil {
		buf.WriteString(" OFFSET ")
		buf.FormatNode(l.Offset)
	}
}

func (c *ColName) Format(buf *TrackedBuffer) {
	if c.Qualifier != "" {
		buf.WriteString(c.Qualifier)
		buf.WriteByte('.')
	}
	buf.WriteString(c.Name)
}

func (l *Literal) Format(buf *TrackedBuffer) {
	switch l.Type {
	case LiteralString:
		buf.WriteString(StringConstant(l.Val))
	case LiteralNull:
		buf.WriteString("NULL")
	case LiteralBool:
		buf.WriteString(strings.ToUpper(l.Val))
	default:
		buf.WriteString(l.Val)
	}
}

// StringConstant quotes s as a single-quoted SQL string literal, doubling
// embedded quotes.
func StringConstant(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (b *BinaryExpr) Format(buf *TrackedBuffer) {
	buf.FormatNode(b.Left)
	buf.WriteByte(' ')
	buf.WriteString(b.Op)
	buf.WriteByte(' ')
	buf.FormatNode(b.Right)
}

func (u *UnaryExpr) Format(buf *TrackedBuffer) {
	buf.WriteString(u.Op)
	buf.FormatNode(u.Expr)
}

func (a *AndExpr) Format(buf *TrackedBuffer) {
	buf.FormatNode(a.Left)
	buf.WriteString(" AND ")
	buf.FormatNode(a.Right)
}

func (o *OrExpr) Format(buf *TrackedBuffer) {
	buf.FormatNode(o.Left)
	buf.WriteString(" OR ")
	buf.FormatNode(o.Right)
}

func (n *NotExpr) Format(buf *TrackedBuffer) {
	buf.WriteString("NOT ")
	buf.FormatNode(n.Expr)
}

func (p *ParenExpr) Format(buf *TrackedBuffer) {
	buf.WriteByte('(')
	buf.FormatNode(p.Expr)
	buf.WriteByte(')')
}

func (i *IsExpr) Format(buf *TrackedBuffer) {
	buf.FormatNode(i.Expr)
	buf.WriteString(" IS ")
	if i.Not {
		buf.WriteString("NOT ")
	}
	buf.WriteString(strings.ToUpper(i.What))
}

func (b *BetweenExpr) Format(buf *TrackedBuffer) {
	buf.FormatNode(b.Expr)
	if b.Not {
		buf.WriteString(" NOT BETWEEN ")
	} else {
		buf.WriteString(" BETWEEN ")
	}
	buf.FormatNode(b.From)
	buf.WriteString(" AND ")
	buf.FormatNode(b.To)
}

func (in *InExpr) Format(buf *TrackedBuffer) {
	buf.FormatNode(in.Expr)
	if in.Not {
		buf.WriteString(" NOT IN (")
	} else {
		buf.WriteString(" IN (")
	}
	for i, e := range in.List {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.FormatNode(e)
	}
	buf.WriteByte(')')
}

func (f *FuncExpr) Format(buf *TrackedBuffer) {
	switch f.Name {
	case "__tuple__":
		buf.WriteByte('(')
		for i, a := range f.Args {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.FormatNode(a)
		}
		buf.WriteByte(')')
		return
	case "__lambda__":
		for i, a := range f.Args[:len(f.Args)-1] {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.FormatNode(a)
		}
		buf.WriteString(" -> ")
		buf.FormatNode(f.Args[len(f.Args)-1])
		return
	}
	if f.Qualifier != "" {
		buf.WriteString(f.Qualifier)
		buf.WriteByte('.')
	}
	buf.WriteString(f.Name)
	buf.WriteByte('(')
	if f.Distinct {
		buf.WriteString("DISTINCT ")
	}
	for i, a := range f.Args {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.FormatNode(a)
	}
	buf.WriteByte(')')
}

func (c *CastExpr) Format(buf *TrackedBuffer) {
	buf.WriteString("CAST(")
	buf.FormatNode(c.Expr)
	buf.WriteString(" AS ")
	buf.WriteString(strings.ToUpper(c.Type))
	buf.WriteByte(')')
}

func (c *CaseExpr) Format(buf *TrackedBuffer) {
	buf.WriteString("CASE")
	if c.Cond != nil {
		buf.WriteByte(' ')
		buf.FormatNode(c.Cond)
	}
	for _, w := range c.Whens {
		buf.WriteString(" WHEN ")
		buf.FormatNode(w.Cond)
		buf.WriteString(" THEN ")
		buf.FormatNode(w.Val)
	}
	if c.Else != nil {
		buf.WriteString(" ELSE ")
		buf.FormatNode(c.Else)
	}
	buf.WriteString(" END")
}

func (m *MacroVar) Format(buf *TrackedBuffer) {
	buf.WriteByte('@')
	buf.WriteString(m.Name)
}

func (m *MacroFunc) Format(buf *TrackedBuffer) {
	buf.WriteByte('@')
	buf.WriteString(strings.ToUpper(m.Name))
	buf.WriteByte('(')
	for i, a := range m.Args {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.FormatNode(a)
	}
	buf.WriteByte(')')
}

func (m *MacroDef) Format(buf *TrackedBuffer) {
	buf.WriteString("@DEF(")
	buf.WriteString(m.Name)
	buf.WriteString(", ")
	buf.FormatNode(m.Expr)
	buf.WriteByte(')')
}

func (m *MacroSQL) Format(buf *TrackedBuffer) {
	buf.WriteString("@SQL(")
	buf.FormatNode(m.Text)
	if m.Into != "" {
		buf.WriteString(", into=")
		buf.WriteString(m.Into)
	}
	buf.WriteByte(')')
}

func (m *MacroStrReplace) Format(buf *TrackedBuffer) {
	buf.WriteByte('@')
	buf.WriteString(StringConstant(m.Text))
}

func (p *PropertyList) Format(buf *TrackedBuffer) {
	for i, prop := range p.Props {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(prop.Key)
		buf.WriteString(" = ")
		buf.FormatNode(prop.Value)
	}
}

func (m *ModelDef) Format(buf *TrackedBuffer) {
	buf.WriteString("MODEL (")
	buf.FormatNode(m.Props)
	buf.WriteByte(')')
}

func (a *AuditDef) Format(buf *TrackedBuffer) {
	buf.WriteString("AUDIT (")
	buf.FormatNode(a.Props)
	buf.WriteByte(')')
}
