package sqldeploy

import (
	"errors"
	"strings"
	"testing"
)

func TestBuildCatalogQueryPostgres(t *testing.T) {
	tests := []struct {
		name         string
		ref          ObjectRef
		fold         bool
		wantContains []string
		wantArgs     int
	}{
		{
			name:         "view with schema",
			ref:          ObjectRef{Schema: "store", Name: "v_orders", Kind: KindView},
			fold:         true,
			wantContains: []string{"information_schema.views", "LOWER(table_name) = LOWER($1)", "LOWER(table_schema) = LOWER($2)"},
			wantArgs:     2,
		},
		{
			name:         "procedure without schema uses current schema",
			ref:          ObjectRef{Name: "usp_load", Kind: KindProcedure},
			fold:         true,
			wantContains: []string{"information_schema.routines", "routine_type = 'PROCEDURE'", "routine_schema = current_schema()"},
			wantArgs:     1,
		},
		{
			name:         "exact comparison when folding is off",
			ref:          ObjectRef{Schema: "store", Name: "v_orders", Kind: KindView},
			fold:         false,
			wantContains: []string{"table_name = $1", "table_schema = $2"},
			wantArgs:     2,
		},
		{
			name:         "table scoped to base tables",
			ref:          ObjectRef{Schema: "store", Name: "orders", Kind: KindTable},
			fold:         true,
			wantContains: []string{"information_schema.tables", "table_type = 'BASE TABLE'"},
			wantArgs:     2,
		},
		{
			name:         "trigger",
			ref:          ObjectRef{Schema: "store", Name: "trg_audit", Kind: KindTrigger},
			fold:         true,
			wantContains: []string{"information_schema.triggers", "LOWER(trigger_name) = LOWER($1)"},
			wantArgs:     2,
		},
		{
			name: "kind discovery unions all catalogs",
			ref:  ObjectRef{Schema: "store", Name: "orders"},
			fold: true,
			wantContains: []string{
				"information_schema.tables",
				"information_schema.views",
				"information_schema.routines",
				"information_schema.triggers",
				"UNION ALL",
				"LIMIT 1",
			},
			wantArgs: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dialect := Postgres()
			dialect.FoldIdentifiers = tt.fold

			query, args, err := buildCatalogQuery(dialect, tt.ref)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			for _, want := range tt.wantContains {
				if !strings.Contains(query, want) {
					t.Errorf("query missing %q:\n%s", want, query)
				}
			}
			if len(args) != tt.wantArgs {
				t.Errorf("expected %d args, got %d", tt.wantArgs, len(args))
			}
		})
	}
}

func TestBuildCatalogQuerySQLite(t *testing.T) {
	tests := []struct {
		name         string
		ref          ObjectRef
		wantContains []string
		wantArgs     int
		wantErr      error
	}{
		{
			name:         "view",
			ref:          ObjectRef{Name: "v_orders", Kind: KindView},
			wantContains: []string{"sqlite_master", "type = 'view'", "LOWER(name) = LOWER(?1)"},
			wantArgs:     1,
		},
		{
			name:         "table",
			ref:          ObjectRef{Name: "orders", Kind: KindTable},
			wantContains: []string{"type = 'table'"},
			wantArgs:     1,
		},
		{
			name:         "trigger",
			ref:          ObjectRef{Name: "trg_audit", Kind: KindTrigger},
			wantContains: []string{"type = 'trigger'"},
			wantArgs:     1,
		},
		{
			name:         "kind discovery",
			ref:          ObjectRef{Name: "orders"},
			wantContains: []string{"type IN ('table', 'view', 'trigger')"},
			wantArgs:     1,
		},
		{
			name:         "procedure lookups match nothing",
			ref:          ObjectRef{Name: "usp_load", Kind: KindProcedure},
			wantContains: []string{"1 = 0"},
		},
		{
			name:         "function lookups match nothing",
			ref:          ObjectRef{Name: "fn_total", Kind: KindFunction},
			wantContains: []string{"1 = 0"},
		},
		{
			name:    "unknown kinds are rejected",
			ref:     ObjectRef{Name: "s_orders", Kind: ObjectKind("sequence")},
			wantErr: ErrUnknownObjectKind,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args, err := buildCatalogQuery(SQLite(), tt.ref)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected error %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			for _, want := range tt.wantContains {
				if !strings.Contains(query, want) {
					t.Errorf("query missing %q:\n%s", want, query)
				}
			}
			if len(args) != tt.wantArgs {
				t.Errorf("expected %d args, got %d", tt.wantArgs, len(args))
			}
		})
	}
}

func TestBuildCatalogQueryMSSQL(t *testing.T) {
	tests := []struct {
		name         string
		ref          ObjectRef
		wantContains []string
		wantArgs     int
	}{
		{
			name:         "procedure with schema",
			ref:          ObjectRef{Schema: "store", Name: "usp_load", Kind: KindProcedure},
			wantContains: []string{"sys.objects", "sys.schemas", "o.type IN ('P', 'PC')", "LOWER(o.name) = LOWER(@p1)", "LOWER(s.name) = LOWER(@p2)"},
			wantArgs:     2,
		},
		{
			name:         "function type codes",
			ref:          ObjectRef{Schema: "store", Name: "fn_total", Kind: KindFunction},
			wantContains: []string{"o.type IN ('FN', 'IF', 'TF', 'AF')"},
			wantArgs:     2,
		},
		{
			name:         "kind discovery has no type filter",
			ref:          ObjectRef{Name: "orders"},
			wantContains: []string{"SELECT o.type FROM sys.objects"},
			wantArgs:     1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args, err := buildCatalogQuery(MSSQL(), tt.ref)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			for _, want := range tt.wantContains {
				if !strings.Contains(query, want) {
					t.Errorf("query missing %q:\n%s", want, query)
				}
			}
			if len(args) != tt.wantArgs {
				t.Errorf("expected %d args, got %d", tt.wantArgs, len(args))
			}
		})
	}
}

func TestBuildCatalogQueryEmptyRef(t *testing.T) {
	_, _, err := buildCatalogQuery(Postgres(), ObjectRef{})
	if !errors.Is(err, ErrUnknownObjectKind) {
		t.Fatalf("expected ErrUnknownObjectKind, got %v", err)
	}
}

func TestCatalogKind(t *testing.T) {
	tests := []struct {
		stored string
		want   ObjectKind
	}{
		{"P", KindProcedure},
		{"P ", KindProcedure},
		{"PC", KindProcedure},
		{"PROCEDURE", KindProcedure},
		{"V", KindView},
		{"view", KindView},
		{"FN", KindFunction},
		{"TF", KindFunction},
		{"FUNCTION", KindFunction},
		{"TR", KindTrigger},
		{"trigger", KindTrigger},
		{"U", KindTable},
		{"table", KindTable},
		{"BASE TABLE", KindTable},
		{"X", ""},
	}

	for _, tt := range tests {
		if got := catalogKind(tt.stored); got != tt.want {
			t.Errorf("catalogKind(%q) = %q, want %q", tt.stored, got, tt.want)
		}
	}
}

func TestDialectByName(t *testing.T) {
	tests := []struct {
		name     string
		wantName string
		wantSep  string
		wantErr  bool
	}{
		{name: "mssql", wantName: "mssql", wantSep: "GO"},
		{name: "sqlserver", wantName: "mssql", wantSep: "GO"},
		{name: "postgres", wantName: "postgres", wantSep: ";"},
		{name: "postgresql", wantName: "postgres", wantSep: ";"},
		{name: "sqlite", wantName: "sqlite", wantSep: ";"},
		{name: "sqlite3", wantName: "sqlite", wantSep: ";"},
		{name: "oracle", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dialect, err := DialectByName(tt.name)

			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Fatalf("expected ErrInvalidConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if dialect.Name != tt.wantName {
				t.Errorf("expected dialect %q, got %q", tt.wantName, dialect.Name)
			}
			if dialect.BatchSeparator != tt.wantSep {
				t.Errorf("expected separator %q, got %q", tt.wantSep, dialect.BatchSeparator)
			}
		})
	}
}
