// Package enrich holds the degrade-on-failure contract used by best-effort
// steps such as reference lookups, per-article fetches and law-id fallbacks.
// A step produces a mo.Result; the caller collapses it with OrElse, which logs
// the failure and substitutes a fallback value.
package enrich

import (
	"github.com/samber/mo"
	"go.uber.org/zap"
)

// Attempt runs fn and wraps its outcome.
func Attempt[T any](fn func() (T, error)) mo.Result[T] {
	v, err := fn()
	return mo.TupleToResult(v, err)
}

// OrElse returns the value held by r, or fallback when r is an error.
// Failures are logged at warn level under the given step name.
func OrElse[T any](logger *zap.Logger, step string, r mo.Result[T], fallback T) T {
	if r.IsError() {
		if logger != nil {
			logger.Warn("enrichment step failed, continuing with fallback",
				zap.String("step", step),
				zap.Error(r.Error()))
		}
		return fallback
	}
	return r.MustGet()
}
