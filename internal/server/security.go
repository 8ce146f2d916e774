package server

import "net/http"

// pageCSP applies to the HTML pages the server renders itself.
const pageCSP = "default-src 'none'; style-src 'unsafe-inline'; img-src 'self' data:; " +
	"frame-ancestors 'none'; base-uri 'none'"

// downloadCSP applies to every stored file. Files still render inline, but an
// uploaded HTML or SVG document runs in a unique origin with scripts, forms
// and plugins disabled, so it cannot reach the upload form or its key.
const downloadCSP = "sandbox; default-src 'none'; img-src 'self' data:; media-src 'self'; " +
	"style-src 'unsafe-inline'"

// securityHeadersMiddleware adds security headers to all responses.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		next.ServeHTTP(w, r)
	})
}
