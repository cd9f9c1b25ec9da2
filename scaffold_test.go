package sqldeploy

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestScaffoldScript(t *testing.T) {
	dir := t.TempDir()

	path, err := ScaffoldScript(dir, MSSQL(), KindView, "store.v_orders")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := filepath.Join(dir, "views", "store.v_orders.sql")
	if path != want {
		t.Fatalf("expected path %s, got %s", want, path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read scaffold: %v", err)
	}

	text := string(content)
	if !strings.Contains(text, "IF OBJECT_ID('store.v_orders', 'V') IS NOT NULL") {
		t.Errorf("expected an existence-guarded drop, got:\n%s", text)
	}
	if !strings.Contains(text, "DROP VIEW store.v_orders") {
		t.Errorf("expected a drop statement, got:\n%s", text)
	}
	if !strings.Contains(text, "\nGO\n") {
		t.Errorf("expected a batch separator line, got:\n%s", text)
	}
}

func TestScaffoldScriptPostgres(t *testing.T) {
	dir := t.TempDir()

	path, err := ScaffoldScript(dir, Postgres(), KindFunction, "fn_totals")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read scaffold: %v", err)
	}

	if !strings.Contains(string(content), "DROP FUNCTION IF EXISTS fn_totals") {
		t.Errorf("expected a drop-if-exists statement, got:\n%s", string(content))
	}
}

func TestScaffoldScriptLoadsBack(t *testing.T) {
	dir := t.TempDir()

	if _, err := ScaffoldScript(dir, Postgres(), KindTable, "store.orders"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	scripts, err := LoadScripts(os.DirFS(dir), ".")
	if err != nil {
		t.Fatalf("failed to load scaffolded script: %v", err)
	}

	if len(scripts) != 1 {
		t.Fatalf("expected 1 script, got %d", len(scripts))
	}

	want := ObjectRef{Schema: "store", Name: "orders", Kind: KindTable}
	if scripts[0].Object != want {
		t.Errorf("expected object %+v, got %+v", want, scripts[0].Object)
	}
}

func TestScaffoldScriptRejectsBadInput(t *testing.T) {
	dir := t.TempDir()

	if _, err := ScaffoldScript(dir, Postgres(), ObjectKind("sequence"), "s"); !errors.Is(err, ErrUnknownObjectKind) {
		t.Errorf("expected ErrUnknownObjectKind, got %v", err)
	}

	badNames := []string{"", "1orders", "a.b.c", "orders;DROP TABLE x", "store..orders"}
	for _, name := range badNames {
		if _, err := ScaffoldScript(dir, Postgres(), KindTable, name); !errors.Is(err, ErrInvalidScriptName) {
			t.Errorf("name %q: expected ErrInvalidScriptName, got %v", name, err)
		}
	}
}

func TestScaffoldScriptRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()

	if _, err := ScaffoldScript(dir, Postgres(), KindView, "v_once"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ScaffoldScript(dir, Postgres(), KindView, "v_once"); err == nil {
		t.Fatal("expected an error when the script already exists")
	}
}
