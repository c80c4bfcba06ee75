// Package plaintext handles plain text passthrough and the CSV display
// transform.
package plaintext

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mseiller/test-buddy-extract/internal/extract"
)

type Extractor struct{}

func New() *Extractor { return &Extractor{} }

func (e *Extractor) Name() string               { return "plaintext" }
func (e *Extractor) Category() extract.Category { return extract.CategoryText }

func (e *Extractor) AcceptedTypes() []string {
	return []string{"text/plain", "text/csv", "text/markdown"}
}

func (e *Extractor) AcceptedExtensions() []string {
	return []string{".txt", ".text", ".md", ".markdown", ".csv"}
}

func (e *Extractor) Extract(ctx context.Context, f extract.File) (extract.Result, *extract.Error) {
	if err := ctx.Err(); err != nil {
		return extract.Result{}, extract.AsError(err)
	}

	text := string(f.Data)
	if isCSV(f) {
		text = reformatCSV(text)
	}

	if strings.TrimSpace(text) == "" {
		return extract.Result{}, extract.NewError(extract.KindNoTextContent,
			"The file contains no text.")
	}

	words, chars := extract.BuildCounts(text)
	return extract.Result{
		Text: text,
		Metadata: map[string]string{
			"wordCount": strconv.Itoa(words),
			"charCount": strconv.Itoa(chars),
		},
	}, nil
}

func isCSV(f extract.File) bool {
	return strings.EqualFold(filepath.Ext(f.Name), ".csv") ||
		strings.EqualFold(f.ContentType, "text/csv")
}

// reformatCSV replaces field commas with a padded vertical bar, line by line.
// This is a display transform, not CSV parsing: quoted commas are split like
// any other comma, and line order is preserved one-to-one.
func reformatCSV(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Split(line, ","), " | ")
	}
	return strings.Join(lines, "\n")
}
