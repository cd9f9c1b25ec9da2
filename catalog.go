package sqldeploy

import (
	"fmt"
	"strings"
)

// buildCatalogQuery returns a single catalog lookup for ref that selects the
// stored object kind of at most one matching row. With ref.Kind set the
// lookup is scoped to that kind; with it empty the query discovers whatever
// kind the name resolves to.
func buildCatalogQuery(d Dialect, ref ObjectRef) (string, []any, error) {
	if ref.IsZero() {
		return "", nil, fmt.Errorf("%w: empty object name", ErrUnknownObjectKind)
	}

	switch d.Name {
	case "postgres":
		return postgresCatalogQuery(ref, d.FoldIdentifiers)
	case "sqlite":
		return sqliteCatalogQuery(ref, d.FoldIdentifiers)
	case "mssql":
		return mssqlCatalogQuery(ref, d.FoldIdentifiers)
	}
	return "", nil, fmt.Errorf("%w: no catalog queries for dialect %q", ErrInvalidConfig, d.Name)
}

// catalogKind normalizes what the catalog stores (information_schema
// labels, sqlite_master types, sys.objects type codes) to an ObjectKind.
func catalogKind(stored string) ObjectKind {
	switch strings.TrimSpace(strings.ToUpper(stored)) {
	case "P", "PC", "PROCEDURE":
		return KindProcedure
	case "V", "VIEW":
		return KindView
	case "FN", "IF", "TF", "AF", "FUNCTION":
		return KindFunction
	case "TR", "TRIGGER":
		return KindTrigger
	case "U", "TABLE", "BASE TABLE":
		return KindTable
	}
	return ""
}

func postgresCatalogQuery(ref ObjectRef, fold bool) (string, []any, error) {
	match := func(col, param string) string {
		if fold {
			return fmt.Sprintf("LOWER(%s) = LOWER(%s)", col, param)
		}
		return col + " = " + param
	}

	args := []any{ref.Name}
	schemaCond := func(col string) string {
		if ref.Schema == "" {
			return col + " = current_schema()"
		}
		return match(col, "$2")
	}
	if ref.Schema != "" {
		args = append(args, ref.Schema)
	}

	tables := fmt.Sprintf("SELECT 'table' FROM information_schema.tables WHERE table_type = 'BASE TABLE' AND %s AND %s",
		match("table_name", "$1"), schemaCond("table_schema"))
	views := fmt.Sprintf("SELECT 'view' FROM information_schema.views WHERE %s AND %s",
		match("table_name", "$1"), schemaCond("table_schema"))
	routines := func(routineType string) string {
		q := fmt.Sprintf("SELECT routine_type FROM information_schema.routines WHERE %s AND %s",
			match("routine_name", "$1"), schemaCond("routine_schema"))
		if routineType != "" {
			q += " AND routine_type = '" + routineType + "'"
		}
		return q
	}
	triggers := fmt.Sprintf("SELECT 'trigger' FROM information_schema.triggers WHERE %s AND %s",
		match("trigger_name", "$1"), schemaCond("trigger_schema"))

	switch ref.Kind {
	case KindTable:
		return tables, args, nil
	case KindView:
		return views, args, nil
	case KindFunction:
		return routines("FUNCTION"), args, nil
	case KindProcedure:
		return routines("PROCEDURE"), args, nil
	case KindTrigger:
		return triggers, args, nil
	case "":
		query := strings.Join([]string{tables, views, routines(""), triggers}, " UNION ALL ") + " LIMIT 1"
		return query, args, nil
	}
	return "", nil, fmt.Errorf("%w: %q", ErrUnknownObjectKind, ref.Kind)
}

// sqliteCatalogQuery consults sqlite_master. SQLite has no schemas, so any
// schema part of the ref is ignored; routine kinds have no catalog there,
// so their lookups match nothing.
func sqliteCatalogQuery(ref ObjectRef, fold bool) (string, []any, error) {
	nameCond := "name = ?1"
	if fold {
		nameCond = "LOWER(name) = LOWER(?1)"
	}

	var typeCond string
	switch ref.Kind {
	case KindTable:
		typeCond = " AND type = 'table'"
	case KindView:
		typeCond = " AND type = 'view'"
	case KindTrigger:
		typeCond = " AND type = 'trigger'"
	case KindProcedure, KindFunction:
		return "SELECT type FROM sqlite_master WHERE 1 = 0", nil, nil
	case "":
		typeCond = " AND type IN ('table', 'view', 'trigger')"
	default:
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownObjectKind, ref.Kind)
	}

	query := "SELECT type FROM sqlite_master WHERE " + nameCond + typeCond
	return query, []any{ref.Name}, nil
}

func mssqlCatalogQuery(ref ObjectRef, fold bool) (string, []any, error) {
	match := func(col, param string) string {
		if fold {
			return fmt.Sprintf("LOWER(%s) = LOWER(%s)", col, param)
		}
		return col + " = " + param
	}

	var typeCond string
	switch ref.Kind {
	case KindProcedure:
		typeCond = " AND o.type IN ('P', 'PC')"
	case KindView:
		typeCond = " AND o.type = 'V'"
	case KindFunction:
		typeCond = " AND o.type IN ('FN', 'IF', 'TF', 'AF')"
	case KindTrigger:
		typeCond = " AND o.type = 'TR'"
	case KindTable:
		typeCond = " AND o.type = 'U'"
	case "":
		typeCond = ""
	default:
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownObjectKind, ref.Kind)
	}

	query := "SELECT o.type FROM sys.objects o JOIN sys.schemas s ON s.schema_id = o.schema_id WHERE " +
		match("o.name", "@p1") + typeCond
	args := []any{ref.Name}

	if ref.Schema != "" {
		query += " AND " + match("s.name", "@p2")
		args = append(args, ref.Schema)
	}

	return query, args, nil
}
