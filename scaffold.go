package sqldeploy

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/renameio/v2"
)

// Scaffold names are object or schema.object, matching the script file
// naming convention.
var objectNamePattern = regexp.MustCompile(`^(?:([A-Za-z_][A-Za-z0-9_]*)\.)?([A-Za-z_][A-Za-z0-9_]*)$`)

var mssqlTypeCodes = map[ObjectKind]string{
	KindProcedure: "P",
	KindView:      "V",
	KindFunction:  "FN",
	KindTrigger:   "TR",
	KindTable:     "U",
}

// ScaffoldScript writes a starter script for an object into the kind's
// subdirectory under dir and returns the path written. The file lands
// atomically so a watcher never sees a half-written script.
func ScaffoldScript(dir string, dialect Dialect, kind ObjectKind, objectName string) (string, error) {
	subdir, ok := kindDirs[kind]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownObjectKind, kind)
	}

	matches := objectNamePattern.FindStringSubmatch(objectName)
	if matches == nil {
		return "", fmt.Errorf("%w: %q is not object or schema.object", ErrInvalidScriptName, objectName)
	}
	ref := ObjectRef{Schema: matches[1], Name: matches[2], Kind: kind}

	target := filepath.Join(dir, subdir)
	if err := os.MkdirAll(target, 0750); err != nil {
		return "", fmt.Errorf("failed to create scripts directory: %w", err)
	}

	scriptPath := filepath.Join(target, objectName+".sql")
	if _, err := os.Stat(scriptPath); err == nil {
		return "", fmt.Errorf("script %s already exists", scriptPath)
	}

	if err := renameio.WriteFile(scriptPath, []byte(scaffoldContent(dialect, ref)), 0600); err != nil {
		return "", fmt.Errorf("failed to write script: %w", err)
	}

	return scriptPath, nil
}

func scaffoldContent(d Dialect, ref ObjectRef) string {
	kindWord := strings.ToUpper(string(ref.Kind))

	var b strings.Builder
	if d.Name == "mssql" {
		fmt.Fprintf(&b, "IF OBJECT_ID('%s', '%s') IS NOT NULL\n    DROP %s %s\n%s\n\n",
			ref.String(), mssqlTypeCodes[ref.Kind], kindWord, ref.String(), d.BatchSeparator)
	} else {
		fmt.Fprintf(&b, "DROP %s IF EXISTS %s\n%s\n\n", kindWord, ref.String(), d.BatchSeparator)
	}
	fmt.Fprintf(&b, "-- Add the CREATE %s statement for %s here\n", kindWord, ref.String())
	return b.String()
}
