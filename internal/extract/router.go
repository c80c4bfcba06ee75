package extract

import "context"

// Router is the format router: it resolves an upload to exactly one strategy,
// runs the pre-parse validation, and invokes that strategy. Nothing is routed
// to more than one top-level strategy; fallback ordering inside the PDF chain
// is the chain's own concern.
type Router struct {
	registry  *Registry
	validator *Validator
}

func NewRouter(registry *Registry, validator *Validator) *Router {
	return &Router{registry: registry, validator: validator}
}

// Route returns the result, the category that handled the file, and an error.
// Validation failures are returned before any parsing work starts.
func (r *Router) Route(ctx context.Context, f File) (Result, Category, *Error) {
	if len(f.Data) == 0 {
		return Result{}, "", NewError(KindNoFile, "No file provided")
	}

	strategy, rerr := r.registry.Resolve(f)
	if rerr != nil {
		return Result{}, "", rerr
	}

	if verr := r.validator.Validate(f, strategy); verr != nil {
		return Result{}, strategy.Category(), verr
	}

	res, xerr := strategy.Extract(ctx, f)
	if xerr != nil {
		return Result{}, strategy.Category(), xerr
	}
	return res, strategy.Category(), nil
}
