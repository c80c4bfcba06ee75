package extract

import "context"

// Strategy is implemented by every file-category handler. Extract returns a
// result or a typed error, never both; the router dispatches each upload to
// exactly one strategy.
type Strategy interface {
	Extract(ctx context.Context, f File) (Result, *Error)
	Category() Category
	AcceptedTypes() []string
	AcceptedExtensions() []string
	Name() string
}
