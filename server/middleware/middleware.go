package middleware

import (
	"net/http"
)

// Middleware wraps an http.Handler. It is applied at the server level so it
// covers gin routes and any handler mounted next to them.
type Middleware func(http.Handler) http.Handler

// Chain composes middlewares. The first one is the outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
