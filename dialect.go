package sqldeploy

import "fmt"

// Dialect carries the per-engine conventions object scripts are written
// against: how batches are separated, how catalog lookups compare
// identifiers, and how a session is reset before its connection is reused.
type Dialect struct {
	Name            string
	BatchSeparator  string
	FoldIdentifiers bool
	SessionReset    string
}

func MSSQL() Dialect {
	return Dialect{
		Name:            "mssql",
		BatchSeparator:  "GO",
		FoldIdentifiers: true,
	}
}

func Postgres() Dialect {
	return Dialect{
		Name:            "postgres",
		BatchSeparator:  ";",
		FoldIdentifiers: true,
		SessionReset:    "DISCARD ALL",
	}
}

func SQLite() Dialect {
	return Dialect{
		Name:            "sqlite",
		BatchSeparator:  ";",
		FoldIdentifiers: true,
	}
}

func DialectByName(name string) (Dialect, error) {
	switch name {
	case "mssql", "sqlserver":
		return MSSQL(), nil
	case "postgres", "postgresql":
		return Postgres(), nil
	case "sqlite", "sqlite3":
		return SQLite(), nil
	}
	return Dialect{}, fmt.Errorf("%w: unknown dialect %q", ErrInvalidConfig, name)
}

func (d Dialect) SplitBatches(sql string) []string {
	return SplitBatches(sql, d.BatchSeparator)
}
