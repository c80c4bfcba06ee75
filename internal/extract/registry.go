package extract

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Registry maps MIME types and file extensions to registered strategies.
type Registry struct {
	byMIME      map[string]Strategy
	byExtension map[string]Strategy
	strategies  []Strategy
}

func NewRegistry() *Registry {
	return &Registry{
		byMIME:      make(map[string]Strategy),
		byExtension: make(map[string]Strategy),
	}
}

// Register adds a strategy. Later registrations win on key collisions, so
// more-specific strategies should be registered last.
func (r *Registry) Register(s Strategy) {
	r.strategies = append(r.strategies, s)
	for _, mt := range s.AcceptedTypes() {
		if key := strings.ToLower(strings.TrimSpace(mt)); key != "" {
			r.byMIME[key] = s
		}
	}
	for _, ext := range s.AcceptedExtensions() {
		if key := strings.ToLower(strings.TrimSpace(ext)); key != "" {
			r.byExtension[key] = s
		}
	}
}

// Resolve picks the single strategy for a file, preferring the extension over
// the declared MIME type and the declared type over the sniffed one. Unknown
// types fail closed before any strategy executes.
func (r *Registry) Resolve(f File) (Strategy, *Error) {
	ext := strings.ToLower(filepath.Ext(f.Name))
	if s, ok := r.byExtension[ext]; ok {
		return s, nil
	}

	for _, mt := range []string{normalizeMIME(f.ContentType), normalizeMIME(f.SniffedType)} {
		if s, ok := r.byMIME[mt]; ok {
			return s, nil
		}
		if strings.HasPrefix(mt, "text/") {
			if s, ok := r.byMIME["text/plain"]; ok {
				return s, nil
			}
		}
		// Unlisted image subtypes still route to the image strategy so its
		// validator can name the supported formats instead of a generic
		// unsupported-type failure.
		if strings.HasPrefix(mt, "image/") {
			if s, ok := r.byMIME["image/jpeg"]; ok {
				return s, nil
			}
		}
	}

	return nil, NewError(KindUnsupportedFormat,
		fmt.Sprintf("Unsupported file type %q.", f.Name))
}
