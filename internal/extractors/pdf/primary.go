package pdf

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/mseiller/test-buddy-extract/internal/extract"
)

// PrimaryParser is the full-document text-layer extractor, backed by pdfcpu.
// It validates the cross-reference structure up front, so structural problems
// (corruption, encryption) surface here rather than as garbled text.
type PrimaryParser struct {
	conf *model.Configuration
}

func NewPrimaryParser() *PrimaryParser {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PrimaryParser{conf: conf}
}

func (p *PrimaryParser) Parse(data []byte) (DocText, error) {
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), p.conf)
	if err != nil {
		return DocText{}, p.typed(err)
	}
	if ctx.PageCount == 0 {
		return DocText{}, extract.NewError(extract.KindCorrupted, "The PDF has no pages.")
	}

	var sb strings.Builder
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		pageText := pageContentText(ctx, pageNr)
		if pageText == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(pageText)
	}

	return DocText{
		Text:  sb.String(),
		Pages: ctx.PageCount,
		Info:  docInfo(ctx),
	}, nil
}

// typed converts pdfcpu errors into taxonomy errors at the adapter boundary.
// pdfcpu reports encryption in its message text only, so this is one of the
// two places substring matching is allowed.
func (p *PrimaryParser) typed(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "password") || strings.Contains(msg, "encrypt") {
		e := extract.NewError(extract.KindPasswordProtected,
			"The PDF is password protected. Please remove the password and try again.")
		e.Original = err.Error()
		return e
	}
	return fmt.Errorf("pdf parse: %w", err)
}

// pageContentText extracts the text shown by one page's content stream.
func pageContentText(ctx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return contentStreamText(data)
}

func docInfo(ctx *model.Context) map[string]string {
	info := map[string]string{
		"pages":   strconv.Itoa(ctx.PageCount),
		"version": ctx.XRefTable.Version().String(),
	}
	if ctx.Title != "" {
		info["title"] = ctx.Title
	}
	if ctx.Author != "" {
		info["author"] = ctx.Author
	}
	if ctx.Producer != "" {
		info["producer"] = ctx.Producer
	}
	return info
}

// contentStreamText parses text-showing operators (Tj, TJ, ') out of a page
// content stream, inserting whitespace for the positioning operators.
func contentStreamText(data []byte) string {
	var sb strings.Builder

	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		switch {
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			for _, m := range pdfLiterals(line) {
				sb.WriteString(m)
			}
		case bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")):
			for _, m := range pdfLiterals(line) {
				sb.WriteByte('\n')
				sb.WriteString(m)
			}
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")):
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
		case bytes.Equal(line, []byte("T*")):
			sb.WriteByte('\n')
		}
	}

	return collapseSpaces(sb.String())
}

// pdfLiterals returns the decoded string literals "(...)" on one line.
func pdfLiterals(line []byte) []string {
	var out []string
	for i := 0; i < len(line); i++ {
		if line[i] != '(' {
			continue
		}
		j := bytes.IndexByte(line[i+1:], ')')
		if j < 0 {
			break
		}
		if s := decodePDFString(line[i+1 : i+1+j]); s != "" {
			out = append(out, s)
		}
		i += j + 1
	}
	return out
}

// decodePDFString handles the basic PDF escape sequences, including octal.
func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(raw[i])
		default:
			if raw[i] >= '0' && raw[i] <= '7' {
				val := int(raw[i] - '0')
				for k := 0; k < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; k++ {
					i++
					val = val*8 + int(raw[i]-'0')
				}
				sb.WriteByte(byte(val))
			} else {
				sb.WriteByte(raw[i])
			}
		}
	}
	return sb.String()
}

func collapseSpaces(text string) string {
	var sb strings.Builder
	prevSpace := false
	for _, r := range text {
		switch {
		case r == '\n':
			sb.WriteByte('\n')
			prevSpace = true
		case unicode.IsSpace(r):
			if !prevSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
				prevSpace = true
			}
		case unicode.IsPrint(r):
			sb.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(sb.String())
}
