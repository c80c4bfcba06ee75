// Package office implements the Word-document strategy: raw paragraph text in
// document order, styling discarded.
package office

import (
	"bytes"
	"context"
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/nguyenthenguyen/docx"

	"github.com/mseiller/test-buddy-extract/internal/extract"
)

type Extractor struct{}

func New() *Extractor { return &Extractor{} }

func (e *Extractor) Name() string               { return "docx" }
func (e *Extractor) Category() extract.Category { return extract.CategoryOffice }

func (e *Extractor) AcceptedTypes() []string {
	return []string{"application/vnd.openxmlformats-officedocument.wordprocessingml.document"}
}

func (e *Extractor) AcceptedExtensions() []string {
	return []string{".docx"}
}

func (e *Extractor) Extract(ctx context.Context, f extract.File) (extract.Result, *extract.Error) {
	if err := ctx.Err(); err != nil {
		return extract.Result{}, extract.AsError(err)
	}

	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(f.Data), f.Size)
	if err != nil {
		return extract.Result{}, extract.AsError(err)
	}
	defer doc.Close()

	text := paragraphText(doc.Editable().GetContent())
	if strings.TrimSpace(text) == "" {
		return extract.Result{}, extract.NewError(extract.KindNoTextContent,
			"The document contains no extractable text.")
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

// paragraphText walks the WordprocessingML body, collecting the text runs of
// each <w:p> and joining paragraphs with blank lines.
func paragraphText(content string) string {
	dec := xml.NewDecoder(strings.NewReader(content))

	var paragraphs []string
	var current strings.Builder
	inParagraph := false

	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inParagraph = true
				current.Reset()
			case "tab":
				if inParagraph {
					current.WriteByte('\t')
				}
			case "br", "cr":
				if inParagraph {
					current.WriteByte('\n')
				}
			}
		case xml.CharData:
			if inParagraph {
				current.Write(t)
			}
		case xml.EndElement:
			if t.Name.Local == "p" {
				inParagraph = false
				if s := strings.TrimSpace(current.String()); s != "" {
					paragraphs = append(paragraphs, s)
				}
			}
		}
	}

	return strings.Join(paragraphs, "\n\n")
}
