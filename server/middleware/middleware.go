package middleware

import "net/http"

// Middleware wraps an http.Handler. The server applies its chain around the
// root mux, so list endpoints on the Gin engine and handlers mounted beside
// it share one chain.
type Middleware func(http.Handler) http.Handler

// Chain composes mws with the first one outermost.
func Chain(mws ...Middleware) Middleware {
	return func(h http.Handler) http.Handler {
		for i := range mws {
			h = mws[len(mws)-1-i](h)
		}
		return h
	}
}
