package extract

// Category groups uploads by the strategy family that handles them.
type Category string

const (
	CategoryPDF         Category = "pdf"
	CategoryImage       Category = "image"
	CategoryOffice      Category = "office"
	CategorySpreadsheet Category = "spreadsheet"
	CategoryText        Category = "text"
)

// Method records which member of a strategy chain produced a result.
type Method string

const (
	// MethodPrimary is the default full-document parse.
	MethodPrimary Method = "primary"
	// MethodFallback is the secondary page-by-page scan, reached only after a
	// structural failure of the primary parse.
	MethodFallback Method = "fallback"
)

// File is one uploaded document, request-scoped. Size is always known before
// any strategy runs so size ceilings can be enforced up front.
type File struct {
	Name        string
	ContentType string // declared by the client
	SniffedType string // detected from the payload bytes
	Size        int64
	Data        []byte
}

// Result is a successful extraction. Text is non-empty by contract; a parse
// that succeeds structurally but yields only whitespace is reported as a
// NoTextContent error instead.
type Result struct {
	Text      string
	PageCount int
	Method    Method
	Info      map[string]string
	Metadata  map[string]string
}

// BuildCounts returns the word and character counts for extracted text.
func BuildCounts(text string) (wordCount int, charCount int) {
	charCount = len([]rune(text))
	inWord := false
	for _, r := range text {
		if r == ' ' || r == '\n' || r == '\t' || r == '\r' {
			if inWord {
				wordCount++
				inWord = false
			}
			continue
		}
		inWord = true
	}
	if inWord {
		wordCount++
	}
	return
}
