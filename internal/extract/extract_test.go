package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/contexta-ai/contexta/internal/domain/knowledge"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestExtractor_FromText_AssignsPrefixedUniqueID(t *testing.T) {
	t.Parallel()

	e := NewExtractor()
	a, err := e.FromText("some pasted text")
	if err != nil {
		t.Fatalf("FromText: %v", err)
	}
	b, err := e.FromText("some pasted text")
	if err != nil {
		t.Fatalf("FromText: %v", err)
	}
	if !strings.HasPrefix(a.ID, "text_") {
		t.Fatalf("id = %q, want text_ prefix", a.ID)
	}
	if a.ID == b.ID {
		t.Fatalf("two submissions share id %q, want unique ids", a.ID)
	}
	if a.Text != "some pasted text" || a.Source != "text" {
		t.Fatalf("doc = %+v", a)
	}
}

func TestExtractor_FromText_Empty_ReturnsValidationError(t *testing.T) {
	t.Parallel()

	e := NewExtractor()
	if _, err := e.FromText("  \n\t "); !knowledge.IsValidation(err) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestExtractor_FromFile_TxtUsesFileStemAsID(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "notes.txt", "plain text body")

	e := NewExtractor()
	doc, err := e.FromFile(path)
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	if doc.ID != "notes" {
		t.Fatalf("id = %q, want notes", doc.ID)
	}
	if doc.Text != "plain text body" {
		t.Fatalf("text = %q", doc.Text)
	}
	if doc.Metadata["filename"] != "notes.txt" {
		t.Fatalf("metadata = %v", doc.Metadata)
	}
}

func TestExtractor_FromFile_HTMLStripsTagsAndScripts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	page := `<html><head><title>Title</title><script>var x = 1;</script>` +
		`<style>body { color: red }</style></head>` +
		`<body><h1>Heading</h1><p>Paragraph text.</p></body></html>`
	path := writeFile(t, dir, "page.html", page)

	e := NewExtractor()
	doc, err := e.FromFile(path)
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	if !strings.Contains(doc.Text, "Heading") || !strings.Contains(doc.Text, "Paragraph text.") {
		t.Fatalf("text = %q, want heading and paragraph", doc.Text)
	}
	if strings.Contains(doc.Text, "var x") || strings.Contains(doc.Text, "color: red") {
		t.Fatalf("text = %q, script/style content leaked through", doc.Text)
	}
}

func TestExtractor_FromFile_UnsupportedExtension_ReturnsValidationError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "binary.pdf", "%PDF-1.4")

	e := NewExtractor()
	if _, err := e.FromFile(path); !knowledge.IsValidation(err) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestExtractor_FromDirectory_SkipsUnsupportedFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "alpha")
	writeFile(t, dir, "b.md", "# beta")
	writeFile(t, dir, "ignore.bin", "\x00\x01")
	sub := filepath.Join(dir, "nested")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFile(t, sub, "c.txt", "gamma")

	e := NewExtractor()
	docs, err := e.FromDirectory(dir)
	if err != nil {
		t.Fatalf("FromDirectory: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("len(docs) = %d, want 3 (got %+v)", len(docs), docs)
	}
	ids := map[string]bool{}
	for _, d := range docs {
		ids[d.ID] = true
	}
	for _, want := range []string{"a", "b", "c"} {
		if !ids[want] {
			t.Fatalf("missing document %q in %v", want, ids)
		}
	}
}

func TestExtractor_FromURL_FetchesAndExtracts(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><body><p>Remote page content.</p></body></html>`)) //nolint:errcheck
	}))
	defer srv.Close()

	e := NewExtractor()
	doc, err := e.FromURL(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FromURL: %v", err)
	}
	if !strings.HasPrefix(doc.ID, "url_") {
		t.Fatalf("id = %q, want url_ prefix", doc.ID)
	}
	if !strings.Contains(doc.Text, "Remote page content.") {
		t.Fatalf("text = %q", doc.Text)
	}
	if doc.Source != srv.URL {
		t.Fatalf("source = %q, want %q", doc.Source, srv.URL)
	}
}

func TestExtractor_FromURL_NonHTTPScheme_ReturnsValidationError(t *testing.T) {
	t.Parallel()

	e := NewExtractor()
	if _, err := e.FromURL(context.Background(), "ftp://example.com/file"); !knowledge.IsValidation(err) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestExtractor_FromURL_ServerError_ReturnsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	e := NewExtractor()
	if _, err := e.FromURL(context.Background(), srv.URL); err == nil {
		t.Fatal("want error on 404 response")
	}
}

func TestExtractor_FromReader_UsesProvidedName(t *testing.T) {
	t.Parallel()

	e := NewExtractor()
	doc, err := e.FromReader("upload.md", strings.NewReader("# uploaded"))
	if err != nil {
		t.Fatalf("FromReader: %v", err)
	}
	if doc.ID != "upload" {
		t.Fatalf("id = %q, want upload", doc.ID)
	}
}
