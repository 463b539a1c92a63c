// Package extract turns raw inputs (files, directories, URLs, pasted text)
// into documents ready for ingestion. It owns text extraction per format and
// the document id scheme; chunking and storage happen downstream.
package extract

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/contexta-ai/contexta/internal/domain/knowledge"
)

// supportedExtensions maps file extensions to extraction handling. Files
// with other extensions are skipped during directory walks and rejected on
// direct submission.
var supportedExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".html": true,
	".htm":  true,
}

const urlFetchTimeout = 30 * time.Second

// Extractor builds knowledge.Document values from the supported sources.
// The zero value is not usable; NewExtractor sets up the HTTP client for
// URL fetching.
type Extractor struct {
	httpClient *http.Client
}

func NewExtractor() *Extractor {
	return &Extractor{
		httpClient: &http.Client{Timeout: urlFetchTimeout},
	}
}

// FromText wraps pasted text in a document. The id is "text_" plus a random
// UUID, so re-submitting the same text yields a new document rather than
// replacing the previous one.
func (e *Extractor) FromText(text string) (knowledge.Document, error) {
	if strings.TrimSpace(text) == "" {
		return knowledge.Document{}, knowledge.Validationf("text must not be empty")
	}
	return knowledge.Document{
		ID:     "text_" + uuid.NewString(),
		Text:   text,
		Source: "text",
		Metadata: map[string]any{
			"type": "text",
		},
	}, nil
}

// FromFile reads and extracts one file. The id is the file name without its
// extension, so re-ingesting the same path replaces the earlier version of
// that document.
func (e *Extractor) FromFile(path string) (knowledge.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !supportedExtensions[ext] {
		return knowledge.Document{}, knowledge.Validationf("unsupported file type %q (supported: .txt, .md, .html, .htm)", ext)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return knowledge.Document{}, fmt.Errorf("read %s: %w", path, err)
	}
	return e.fromContent(fileStem(path), path, ext, raw)
}

// FromReader extracts from an already-open stream, as with an HTTP upload.
// The name supplies both the extension and the document id.
func (e *Extractor) FromReader(name string, r io.Reader) (knowledge.Document, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if !supportedExtensions[ext] {
		return knowledge.Document{}, knowledge.Validationf("unsupported file type %q (supported: .txt, .md, .html, .htm)", ext)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return knowledge.Document{}, fmt.Errorf("read upload %s: %w", name, err)
	}
	return e.fromContent(fileStem(name), name, ext, raw)
}

// FromDirectory walks dir and extracts every supported file. Unsupported
// files are skipped silently; a read failure on a supported file aborts the
// walk.
func (e *Extractor) FromDirectory(dir string) ([]knowledge.Document, error) {
	var docs []knowledge.Document
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !supportedExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		doc, extractErr := e.FromFile(path)
		if extractErr != nil {
			return extractErr
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return docs, nil
}

// FromURL fetches a page and extracts its visible text. The id is "url_"
// plus a random UUID.
func (e *Extractor) FromURL(ctx context.Context, rawURL string) (knowledge.Document, error) {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return knowledge.Document{}, knowledge.Validationf("url must start with http:// or https://")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return knowledge.Document{}, fmt.Errorf("build request for %s: %w", rawURL, err)
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return knowledge.Document{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return knowledge.Document{}, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	text, err := htmlToText(resp.Body)
	if err != nil {
		return knowledge.Document{}, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	if strings.TrimSpace(text) == "" {
		return knowledge.Document{}, knowledge.Validationf("page at %s contains no extractable text", rawURL)
	}
	return knowledge.Document{
		ID:     "url_" + uuid.NewString(),
		Text:   text,
		Source: rawURL,
		Metadata: map[string]any{
			"type": "url",
			"url":  rawURL,
		},
	}, nil
}

func (e *Extractor) fromContent(id, source, ext string, raw []byte) (knowledge.Document, error) {
	var text string
	switch ext {
	case ".html", ".htm":
		extracted, err := htmlToText(strings.NewReader(string(raw)))
		if err != nil {
			return knowledge.Document{}, fmt.Errorf("parse html %s: %w", source, err)
		}
		text = extracted
	default:
		// .txt and .md pass through as-is; markdown markup survives but
		// chunks fine.
		text = string(raw)
	}
	if strings.TrimSpace(text) == "" {
		return knowledge.Document{}, knowledge.Validationf("file %s contains no extractable text", source)
	}
	return knowledge.Document{
		ID:     id,
		Text:   text,
		Source: source,
		Metadata: map[string]any{
			"type":     "file",
			"filename": filepath.Base(source),
		},
	}, nil
}

func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// htmlToText walks the parse tree collecting text nodes, skipping script and
// style subtrees, and joining blocks with newlines.
func htmlToText(r io.Reader) (string, error) {
	root, err := html.Parse(r)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			if trimmed := strings.TrimSpace(n.Data); trimmed != "" {
				if sb.Len() > 0 {
					sb.WriteString("\n")
				}
				sb.WriteString(trimmed)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return sb.String(), nil
}
