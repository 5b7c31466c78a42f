package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const samplePage = `<!DOCTYPE html>
<html>
<head><title>Release Notes</title><style>body { color: red }</style></head>
<body>
<nav>Home | About</nav>
<script>console.log("hi")</script>
<h1>Version 2.0</h1>
<p>This release adds retry support.</p>
<ul><li>faster startup</li><li>bug fixes</li></ul>
<footer>Copyright</footer>
</body>
</html>`

func TestExtractReadable(t *testing.T) {
	title, content := extractReadable(samplePage)

	if title != "Release Notes" {
		t.Errorf("title = %q", title)
	}
	for _, want := range []string{"Version 2.0", "retry support", "faster startup"} {
		if !strings.Contains(content, want) {
			t.Errorf("content missing %q:\n%s", want, content)
		}
	}
	for _, reject := range []string{"console.log", "color: red", "Home | About", "Copyright"} {
		if strings.Contains(content, reject) {
			t.Errorf("content should not contain %q:\n%s", reject, content)
		}
	}
}

func TestFetchHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	f := New()
	result, err := f.Fetch(context.Background(), srv.URL, 0)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if result.StatusCode != http.StatusOK {
		t.Errorf("status = %d", result.StatusCode)
	}
	if result.Title != "Release Notes" {
		t.Errorf("title = %q", result.Title)
	}
	if !strings.Contains(result.Content, "retry support") {
		t.Errorf("content = %q", result.Content)
	}
}

func TestFetchPlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("just text"))
	}))
	defer srv.Close()

	f := New()
	result, err := f.Fetch(context.Background(), srv.URL, 0)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if result.Content != "just text" {
		t.Errorf("content = %q", result.Content)
	}
}

func TestFetchTruncates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(strings.Repeat("a", 100)))
	}))
	defer srv.Close()

	f := New()
	result, err := f.Fetch(context.Background(), srv.URL, 10)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !result.Truncated {
		t.Error("expected truncation")
	}
	if len(result.Content) != 10 {
		t.Errorf("content length = %d", len(result.Content))
	}
}

func TestFetchRequiresURL(t *testing.T) {
	f := New()
	if _, err := f.Fetch(context.Background(), "", 0); err == nil {
		t.Error("empty url should error")
	}
}

func TestTruncateUTF8(t *testing.T) {
	s := "héllo wörld"
	got := truncateUTF8(s, 5)
	if got != "héllo" {
		t.Errorf("got %q", got)
	}
	if truncateUTF8("abc", 10) != "abc" {
		t.Error("short strings should pass through")
	}
}
