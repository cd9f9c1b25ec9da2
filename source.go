package sqldeploy

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"regexp"
	"unicode/utf8"
)

// Script files are named object.sql or schema.object.sql.
var scriptFilePattern = regexp.MustCompile(`^(?:([A-Za-z_][A-Za-z0-9_]*)\.)?([A-Za-z_][A-Za-z0-9_]*)\.sql$`)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var kindDirs = map[ObjectKind]string{
	KindTable:     "tables",
	KindFunction:  "functions",
	KindView:      "views",
	KindProcedure: "procedures",
	KindTrigger:   "triggers",
}

// LoadScripts reads object scripts from a filesystem without touching any
// database. Deployers built through Config load scripts the same way.
func LoadScripts(filesystem fs.FS, root string) ([]Script, error) {
	return newLoader(filesystem).loadAll(root)
}

type loader struct {
	fs fs.FS
}

func newLoader(filesystem fs.FS) *loader {
	return &loader{fs: filesystem}
}

// loadAll reads object scripts under root. When kind subdirectories
// (tables/, functions/, views/, procedures/, triggers/) exist they are
// loaded in that order; otherwise root is read as a flat directory of
// scripts with no declared kind. Within a directory scripts keep filename
// order.
func (l *loader) loadAll(root string) ([]Script, error) {
	var scripts []Script
	foundKindDir := false

	for _, kind := range deployOrder {
		dir := path.Join(root, kindDirs[kind])
		loaded, err := l.loadDir(dir, kind)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}

		foundKindDir = true
		scripts = append(scripts, loaded...)
	}

	if !foundKindDir {
		return l.loadDir(root, "")
	}

	if len(scripts) == 0 {
		return nil, ErrNoScripts
	}

	return scripts, nil
}

func (l *loader) loadDir(dir string, kind ObjectKind) ([]Script, error) {
	entries, err := fs.ReadDir(l.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scripts directory: %w", err)
	}

	var scripts []Script
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}

		name := entry.Name()
		if kind != "" {
			name = kindDirs[kind] + "/" + entry.Name()
		}

		script, err := l.loadFile(path.Join(dir, entry.Name()), name, kind)
		if err != nil {
			return nil, fmt.Errorf("failed to load script %s: %w", name, err)
		}

		scripts = append(scripts, script)
	}

	if kind == "" && len(scripts) == 0 {
		return nil, ErrNoScripts
	}

	return scripts, nil
}

func (l *loader) loadFile(filePath, name string, kind ObjectKind) (Script, error) {
	file, err := l.fs.Open(filePath)
	if err != nil {
		return Script{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return Script{}, fmt.Errorf("failed to read file: %w", err)
	}

	sql, err := decodeScript(content)
	if err != nil {
		return Script{}, err
	}

	return Script{
		Name:     name,
		SQL:      sql,
		Object:   parseObjectRef(path.Base(filePath), kind),
		Checksum: calculateChecksum(content),
	}, nil
}

// parseObjectRef derives the target object from a script file name. Scripts
// whose names do not follow the object naming convention still deploy; they
// just have no object to check or drop.
func parseObjectRef(fileName string, kind ObjectKind) ObjectRef {
	matches := scriptFilePattern.FindStringSubmatch(fileName)
	if matches == nil {
		return ObjectRef{}
	}

	return ObjectRef{
		Schema: matches[1],
		Name:   matches[2],
		Kind:   kind,
	}
}

// decodeScript validates encoding and strips a UTF-8 byte order mark.
// UTF-16 content is rejected outright since its BOM would otherwise pass
// byte-level UTF-8 validation on ASCII-heavy scripts.
func decodeScript(content []byte) (string, error) {
	if bytes.HasPrefix(content, []byte{0xFE, 0xFF}) || bytes.HasPrefix(content, []byte{0xFF, 0xFE}) {
		return "", fmt.Errorf("%w: UTF-16 byte order mark", ErrScriptEncoding)
	}

	content = bytes.TrimPrefix(content, utf8BOM)
	if !utf8.Valid(content) {
		return "", ErrScriptEncoding
	}

	return string(content), nil
}

func calculateChecksum(content []byte) string {
	hash := sha256.Sum256(content)
	return fmt.Sprintf("%x", hash)
}
