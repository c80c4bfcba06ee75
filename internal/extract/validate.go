package extract

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Limits holds the per-category size ceilings. Zero means unlimited.
type Limits struct {
	PDFBytes         int64
	ImageBytes       int64
	OfficeBytes      int64
	SpreadsheetBytes int64
	TextBytes        int64
}

// For returns the ceiling for a category.
func (l Limits) For(cat Category) int64 {
	switch cat {
	case CategoryPDF:
		return l.PDFBytes
	case CategoryImage:
		return l.ImageBytes
	case CategoryOffice:
		return l.OfficeBytes
	case CategorySpreadsheet:
		return l.SpreadsheetBytes
	case CategoryText:
		return l.TextBytes
	default:
		return 0
	}
}

// Validator performs the pure metadata checks that run before any strategy:
// file presence, type acceptance, and the category size ceiling.
type Validator struct {
	limits Limits
}

func NewValidator(limits Limits) *Validator {
	return &Validator{limits: limits}
}

// Validate checks f against the accepted set and size ceiling of the strategy
// it resolved to. It never reads the payload beyond its length.
func (v *Validator) Validate(f File, s Strategy) *Error {
	if len(f.Data) == 0 {
		return NewError(KindNoFile, "No file provided")
	}

	if err := v.checkType(f, s); err != nil {
		return err
	}

	if max := v.limits.For(s.Category()); max > 0 && f.Size > max {
		return NewError(KindTooLarge,
			fmt.Sprintf("File too large. Maximum size is %dMB.", max/(1<<20)))
	}
	return nil
}

func (v *Validator) checkType(f File, s Strategy) *Error {
	declared := normalizeMIME(f.ContentType)
	ext := strings.ToLower(filepath.Ext(f.Name))

	// Images are validated strictly on the declared content type: the OCR
	// upstream receives that type verbatim in the data URL, so an accepted
	// extension is not enough.
	if s.Category() == CategoryImage {
		if containsFold(s.AcceptedTypes(), declared) {
			return nil
		}
		if strings.HasPrefix(declared, "image/") {
			return NewError(KindInvalidType,
				"Unsupported image format. Only JPEG and PNG images are supported.")
		}
		return NewError(KindInvalidType, "The uploaded file is not an image.")
	}

	if containsFold(s.AcceptedExtensions(), ext) || containsFold(s.AcceptedTypes(), declared) {
		return nil
	}
	return NewError(KindInvalidType,
		fmt.Sprintf("Invalid file type %q for %s extraction.", f.Name, s.Category()))
}

func normalizeMIME(mt string) string {
	mt = strings.ToLower(strings.TrimSpace(mt))
	if i := strings.Index(mt, ";"); i > 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt
}

func containsFold(set []string, v string) bool {
	if v == "" {
		return false
	}
	for _, s := range set {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
