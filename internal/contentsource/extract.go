package contentsource

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// ExtractText converts fetched file bytes into reviewable text based on the
// declared content type, falling back to the filename extension when the
// type is missing or generic.
func ExtractText(data []byte, contentType, filename string) (string, error) {
	switch kind(contentType, filename) {
	case "html":
		return htmlToText(string(data)), nil
	case "text":
		if !utf8.Valid(data) {
			return "", fmt.Errorf("invalid request: file is not valid UTF-8 text")
		}
		return normalizeNewlines(string(data)), nil
	default:
		return "", fmt.Errorf("invalid request: unsupported content type %q for text extraction", contentType)
	}
}

func kind(contentType, filename string) string {
	ct := strings.ToLower(contentType)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch ct {
	case "text/html", "application/xhtml+xml":
		return "html"
	case "text/plain", "text/markdown", "text/csv", "application/json":
		return "text"
	}
	if ct == "" || ct == "application/octet-stream" {
		switch strings.ToLower(filepath.Ext(filename)) {
		case ".html", ".htm":
			return "html"
		case ".txt", ".md", ".markdown", ".csv", ".json":
			return "text"
		}
	}
	return ""
}

// htmlToText walks the token stream collecting visible text. Script and
// style bodies are skipped; block-ish boundaries become newlines so the
// reading order survives.
func htmlToText(src string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(src))
	var b strings.Builder
	skipDepth := 0
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				skipDepth++
			}
			if isBlockTag(tag) {
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				if skipDepth > 0 {
					skipDepth--
				}
			}
			if isBlockTag(tag) {
				b.WriteByte('\n')
			}
		case html.TextToken:
			if skipDepth == 0 {
				text := strings.TrimSpace(string(tokenizer.Text()))
				if text != "" {
					if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
						b.WriteByte(' ')
					}
					b.WriteString(text)
				}
			}
		}
	}
}

func isBlockTag(tag string) bool {
	switch tag {
	case "p", "div", "br", "li", "ul", "ol", "h1", "h2", "h3", "h4", "h5", "h6",
		"section", "article", "header", "footer", "tr", "table", "blockquote", "pre":
		return true
	}
	return false
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
