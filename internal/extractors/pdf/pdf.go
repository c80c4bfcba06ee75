// Package pdf implements the PDF extraction strategy chain: a primary
// full-document text-layer parse, and a secondary page-by-page scan used only
// when the primary parse fails structurally.
package pdf

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mseiller/test-buddy-extract/internal/extract"
)

// DocParser is the primary extractor contract: one full-document text-layer
// parse returning the combined text, the page count, and document info.
type DocParser interface {
	Parse(data []byte) (DocText, error)
}

// PageParser is the secondary extractor contract: ordered per-page text,
// pages[0] being page 1.
type PageParser interface {
	Pages(data []byte) ([]string, error)
}

// DocText is the primary parser's output.
type DocText struct {
	Text  string
	Pages int
	Info  map[string]string
}

// Extractor runs the chain. The two parsers are tried strictly in order and
// never in parallel: the secondary scan is only meaningful once the primary's
// failure mode is known.
type Extractor struct {
	primary  DocParser
	fallback PageParser
}

func New(primary DocParser, fallback PageParser) *Extractor {
	return &Extractor{primary: primary, fallback: fallback}
}

func (e *Extractor) Name() string               { return "pdf" }
func (e *Extractor) Category() extract.Category { return extract.CategoryPDF }

func (e *Extractor) AcceptedTypes() []string {
	return []string{"application/pdf"}
}

func (e *Extractor) AcceptedExtensions() []string {
	return []string{".pdf"}
}

func (e *Extractor) Extract(ctx context.Context, f extract.File) (extract.Result, *extract.Error) {
	if err := ctx.Err(); err != nil {
		return extract.Result{}, extract.AsError(err)
	}

	doc, perr := e.primary.Parse(f.Data)
	if perr == nil {
		text := extract.CleanText(doc.Text)
		if strings.TrimSpace(text) == "" {
			// The primary parse succeeded structurally; the absence of text is
			// a content fact, not a parser failure. Do not fall through.
			return extract.Result{}, &extract.Error{
				Kind:       extract.KindNoTextContent,
				Message:    "The PDF contains no extractable text. It may be a scanned document.",
				HTTPStatus: http.StatusUnprocessableEntity,
				Pages:      doc.Pages,
				Method:     extract.MethodPrimary,
			}
		}
		return extract.Result{
			Text:      text,
			PageCount: doc.Pages,
			Method:    extract.MethodPrimary,
			Info:      doc.Info,
		}, nil
	}

	// A password-protected document will fail the same way in the secondary
	// scan, so that failure mode short-circuits the chain.
	if cerr := extract.AsError(perr); cerr.Kind == extract.KindPasswordProtected {
		cerr.Method = extract.MethodPrimary
		return extract.Result{}, cerr
	}

	pages, ferr := e.fallback.Pages(f.Data)
	if ferr != nil {
		cerr := extract.AsError(ferr)
		cerr.Method = extract.MethodFallback
		return extract.Result{}, cerr
	}

	// Emptiness is judged on page content; the header lines joinPages adds
	// would otherwise make any page set look non-empty.
	if !pagesHaveText(pages) {
		return extract.Result{}, &extract.Error{
			Kind:       extract.KindNoTextContent,
			Message:    "The PDF contains no extractable text. It may be a scanned document.",
			HTTPStatus: http.StatusUnprocessableEntity,
			Pages:      len(pages),
			Method:     extract.MethodFallback,
			Original:   perr.Error(),
		}
	}

	return extract.Result{
		Text:      extract.CleanText(joinPages(pages)),
		PageCount: len(pages),
		Method:    extract.MethodFallback,
	}, nil
}

func pagesHaveText(pages []string) bool {
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			return true
		}
	}
	return false
}

// joinPages delimits pages with a header line, preserving document order.
func joinPages(pages []string) string {
	var sb strings.Builder
	for i, p := range pages {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "--- Page %d ---\n", i+1)
		sb.WriteString(strings.TrimSpace(p))
	}
	return sb.String()
}
