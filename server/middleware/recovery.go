package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/kbukum/viewkit/errors"
	"github.com/kbukum/viewkit/logger"
)

// Recovery turns a panic into a 500 with the standard error body and logs
// the stack.
func Recovery(log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Error("panic recovered", map[string]interface{}{
					logger.FieldError:      fmt.Sprintf("%v", rec),
					logger.FieldRequestID: logger.RequestIDFromContext(r.Context()),
					"stack":                string(debug.Stack()),
					"path":                 r.URL.Path,
					"method":               r.Method,
				})
				writeJSON(w, http.StatusInternalServerError, errors.Internal(fmt.Errorf("%v", rec)).ToResponse())
			}()
			next.ServeHTTP(w, r)
		})
	}
}
