// Package extract pulls usable content out of an uploaded document.
// PDFs become plain text (pages concatenated, empty pages skipped) via the
// pdftotext tool; anything else is treated as an image and handed to the
// generation request as-is.
package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrNoContent means the document yielded nothing a generation request
// could work with: a PDF with no extractable text, or an upload that is
// neither a PDF nor an image.
var ErrNoContent = errors.New("document contains no usable content")

// Content is the extracted material for one generation request. Exactly
// one of Text or Image is set.
type Content struct {
	Text  string
	Image []byte
	MIME  string
}

// IsImage reports whether the content is an image rather than text.
func (c Content) IsImage() bool {
	return len(c.Image) > 0
}

// DataURL encodes image content for an OpenAI-compatible vision request.
func (c Content) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", c.MIME, base64.StdEncoding.EncodeToString(c.Image))
}

// FromFile extracts content from a document on disk.
func FromFile(ctx context.Context, path string) (Content, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Content{}, fmt.Errorf("read document: %w", err)
	}

	if isPDF(path, data) {
		text, err := pdfText(ctx, path)
		if err != nil {
			return Content{}, err
		}
		if text == "" {
			return Content{}, ErrNoContent
		}
		return Content{Text: text}, nil
	}

	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return Content{}, fmt.Errorf("%w: %s upload", ErrNoContent, mime)
	}
	return Content{Image: data, MIME: mime}, nil
}

func isPDF(path string, data []byte) bool {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return true
	}
	return bytes.HasPrefix(data, []byte("%PDF"))
}

// pdfText extracts text with pdftotext, writing to stdout. Pages arrive
// separated by form feeds.
func pdfText(ctx context.Context, path string) (string, error) {
	cmd := exec.CommandContext(ctx, "pdftotext", path, "-")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return joinPages(string(output)), nil
}

// joinPages concatenates non-empty pages, skipping blank ones.
func joinPages(raw string) string {
	var pages []string
	for _, page := range strings.Split(raw, "\f") {
		if trimmed := strings.TrimSpace(page); trimmed != "" {
			pages = append(pages, trimmed)
		}
	}
	return strings.Join(pages, "\n\n")
}
