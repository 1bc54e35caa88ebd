package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderEmbeddedKeys(t *testing.T) {
	cat, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := cat.Render("study.saved", map[string]any{"ID": int64(7), "Title": "Najdorf notes", "MoveCount": 12})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(out, "#7") || !strings.Contains(out, "Najdorf notes") {
		t.Fatalf("rendered = %q", out)
	}

	if _, err := cat.Render("no.such.key", nil); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}

func TestRenderMissingDataKeyFails(t *testing.T) {
	cat, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := cat.Render("study.saved", map[string]any{"ID": 1}); err == nil {
		t.Fatalf("expected missingkey error")
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	override := "study:\n  discarded: \"Gone.\"\n"
	if err := os.WriteFile(filepath.Join(dir, "10-custom.yaml"), []byte(override), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	cat, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := cat.Render("study.discarded", nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != "Gone." {
		t.Fatalf("override not applied: %q", out)
	}

	// Untouched keys keep their embedded value.
	if _, err := cat.Render("help.text", nil); err != nil {
		t.Fatalf("embedded key lost: %v", err)
	}
}

func TestDuplicateOverrideKeysRejected(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yaml"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("study:\n  discarded: \"x\"\n"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if _, err := New(dir); err == nil {
		t.Fatalf("expected duplicate key error")
	}
}
