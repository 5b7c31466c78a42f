package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestWorkspace(t *testing.T) *FileTools {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("one\ntwo\nthree\nfour\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	return NewFileTools(dir)
}

func TestFileToolsDisabled(t *testing.T) {
	ft := NewFileTools("")
	if ft.Enabled() {
		t.Error("empty workspace should disable file tools")
	}
	if _, err := ft.Read(context.Background(), "x", 0, 0); err == nil {
		t.Error("expected error with no workspace")
	}
}

func TestRead(t *testing.T) {
	ft := newTestWorkspace(t)

	got, err := ft.Read(context.Background(), "notes.txt", 0, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !strings.Contains(got, "three") {
		t.Errorf("content = %q", got)
	}
}

func TestReadOffsetLimit(t *testing.T) {
	ft := newTestWorkspace(t)

	got, err := ft.Read(context.Background(), "notes.txt", 2, 2)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !strings.Contains(got, "two\nthree") {
		t.Errorf("content = %q", got)
	}
	if !strings.Contains(got, "[Lines 2-3") {
		t.Errorf("missing range header: %q", got)
	}
}

func TestReadEscapeRejected(t *testing.T) {
	ft := newTestWorkspace(t)
	if _, err := ft.Read(context.Background(), "../../etc/passwd", 0, 0); err == nil {
		t.Error("path escape should be rejected")
	}
}

func TestList(t *testing.T) {
	ft := newTestWorkspace(t)
	got, err := ft.List(context.Background(), "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !strings.Contains(got, "notes.txt") || !strings.Contains(got, "sub/") {
		t.Errorf("listing = %q", got)
	}
}

func TestRegisterFileTools(t *testing.T) {
	r := NewRegistry()
	RegisterFileTools(r, NewFileTools(""))
	if r.Get("read_file") != nil {
		t.Error("disabled file tools should not register")
	}

	RegisterFileTools(r, newTestWorkspace(t))
	if r.Get("read_file") == nil || r.Get("list_files") == nil {
		t.Error("file tools not registered")
	}

	out, err := r.Execute(context.Background(), "read_file", `{"path": "notes.txt", "offset": 1, "limit": 1}`)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "one") {
		t.Errorf("out = %q", out)
	}
}
