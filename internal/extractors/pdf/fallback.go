package pdf

import (
	"bytes"
	"fmt"

	ledongthuc "github.com/ledongthuc/pdf"
)

// FallbackParser is the secondary page-oriented extractor, backed by the
// ledongthuc/pdf text-layer reader. Pages are processed strictly in document
// order; page N is never read before page N-1 completes.
type FallbackParser struct{}

func NewFallbackParser() *FallbackParser { return &FallbackParser{} }

func (p *FallbackParser) Pages(data []byte) (pages []string, err error) {
	// The reader panics on some malformed cross-reference tables; convert
	// that to an error so the chain can classify it.
	defer func() {
		if rec := recover(); rec != nil {
			pages = nil
			err = fmt.Errorf("invalid PDF structure: %v", rec)
		}
	}()

	r, err := ledongthuc.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	total := r.NumPage()
	fonts := make(map[string]*ledongthuc.Font)
	pages = make([]string, 0, total)

	for pageNr := 1; pageNr <= total; pageNr++ {
		page := r.Page(pageNr)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; ok {
				continue
			}
			f := page.Font(name)
			fonts[name] = &f
		}
		text, perr := page.GetPlainText(fonts)
		if perr != nil {
			return nil, perr
		}
		pages = append(pages, text)
	}

	return pages, nil
}
