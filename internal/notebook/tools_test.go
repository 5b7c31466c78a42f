package notebook

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/nugget/warden-agent/internal/tools"
	_ "modernc.org/sqlite"
)

func setupToolRegistry(t *testing.T) (*tools.Registry, *Store) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := NewStoreWithDB(db)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}

	r := tools.NewRegistry()
	RegisterTools(r, store)
	return r, store
}

func TestEmitKeyFactsTool(t *testing.T) {
	r, store := setupToolRegistry(t)
	ctx := context.Background()

	out, err := r.Execute(ctx, "emit_key_facts", `{"facts": ["build uses make", "tests need sqlite"]}`)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "Stored fact #1") || !strings.Contains(out, "Stored fact #2") {
		t.Errorf("out = %q", out)
	}

	facts, _ := store.Facts()
	if len(facts) != 2 {
		t.Fatalf("got %d facts", len(facts))
	}
}

func TestEmitKeyFactsRejectsBadArgs(t *testing.T) {
	r, _ := setupToolRegistry(t)
	ctx := context.Background()

	if _, err := r.Execute(ctx, "emit_key_facts", `{"facts": []}`); err == nil {
		t.Error("empty facts should error")
	}
	if _, err := r.Execute(ctx, "emit_key_facts", `{"facts": "not an array"}`); err == nil {
		t.Error("non-array facts should error")
	}
	if _, err := r.Execute(ctx, "emit_key_facts", `{"facts": [1, 2]}`); err == nil {
		t.Error("non-string elements should error")
	}
}

func TestDeleteKeyFactsTool(t *testing.T) {
	r, store := setupToolRegistry(t)
	ctx := context.Background()

	store.AddFacts([]string{"a", "b"})

	out, err := r.Execute(ctx, "delete_key_facts", `{"fact_ids": [1, 7]}`)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "Deleted 1 fact(s)") || !strings.Contains(out, "Not found: [7]") {
		t.Errorf("out = %q", out)
	}
}

func TestSnippetTools(t *testing.T) {
	r, store := setupToolRegistry(t)
	ctx := context.Background()

	out, err := r.Execute(ctx, "emit_key_snippet",
		`{"filepath": "cmd/warden/main.go", "line_number": 12, "snippet": "func main() {}", "description": "entry"}`)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "Stored snippet #1 (cmd/warden/main.go:12)") {
		t.Errorf("out = %q", out)
	}

	if _, err := r.Execute(ctx, "emit_key_snippet", `{"filepath": "", "snippet": ""}`); err == nil {
		t.Error("missing fields should error")
	}

	out, err = r.Execute(ctx, "delete_key_snippets", `{"snippet_ids": [1]}`)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "Deleted 1 snippet(s)") {
		t.Errorf("out = %q", out)
	}

	snippets, _ := store.Snippets()
	if len(snippets) != 0 {
		t.Errorf("snippets remaining: %v", snippets)
	}
}
