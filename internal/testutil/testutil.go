// Package testutil provides shared test helpers for setting up ADR folders.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Folder creates a temporary ADR folder and returns its path.
func Folder(t *testing.T) string {
	t.Helper()
	return t.TempDir()
}

// Mkdir creates dir (and parents) below root and returns the absolute path.
func Mkdir(t *testing.T, root string, dir string) string {
	t.Helper()
	p := filepath.Join(root, dir)
	if err := os.MkdirAll(p, 0o755); err != nil {
		t.Fatal(err)
	}
	return p
}

// WriteADR writes a record file into dir and returns its path.
func WriteADR(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// Doc renders a record with YAML front matter built from key/value pairs, in
// order. Values are written verbatim, so lists use flow syntax: "[a, b]".
func Doc(body string, kv ...string) string {
	var b strings.Builder
	b.WriteString("---\n")
	for i := 0; i+1 < len(kv); i += 2 {
		b.WriteString(kv[i])
		b.WriteString(": ")
		b.WriteString(kv[i+1])
		b.WriteByte('\n')
	}
	b.WriteString("---\n")
	b.WriteString(body)
	return b.String()
}
