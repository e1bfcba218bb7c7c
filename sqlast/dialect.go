package sqlast

// Dialect identifies the SQL dialect a Model's query was written in. The
// parser and printer carry a Dialect but do not behave differently by
// it: identifiers print unquoted, and both "..." and `...` quoted
// identifiers are accepted for every dialect. Full per-dialect grammar
// (every vendor's DDL extensions) is out of scope — see spec.md §1.
type Dialect int

const (
	DialectDuckDB Dialect = iota
	DialectPostgres
	DialectMySQL
	DialectSnowflake
	DialectBigQuery
	DialectSpark
)

func (d Dialect) String() string {
	switch d {
	case DialectPostgres:
		return "postgres"
	case DialectMySQL:
		return "mysql"
	case DialectSnowflake:
		return "snowflake"
	case DialectBigQuery:
		return "bigquery"
	case DialectSpark:
		return "spark"
	default:
		return "duckdb"
	}
}

// ParseDialect maps a model's declared dialect string to a Dialect,
// defaulting to DialectDuckDB for unknown/empty values (matching the
// reference implementation's default engine dialect).
func ParseDialect(s string) Dialect {
	switch s {
	case "postgres", "postgresql":
		return DialectPostgres
	case "mysql":
		return DialectMySQL
	case "snowflake":
		return DialectSnowflake
	case "bigquery":
		return DialectBigQuery
	case "spark", "databricks":
		return DialectSpark
	default:
		return DialectDuckDB
	}
}

// identQuote returns the open/close quote characters this dialect uses
// for quoted identifiers.
func (d Dialect) identQuote() (byte, byte) {
	switch d {
	case DialectMySQL:
		return '`', '`'
	case DialectBigQuery:
		return '`', '`'
	default:
		return '"', '"'
	}
}
