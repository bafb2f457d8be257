package middleware

import "net/http"

// BodyLimitMiddleware caps inbound request bodies at maxBytes. Reads past
// the limit fail with *http.MaxBytesError. A non-positive limit disables it.
//
// Example usage:
//
//	handler = BodyLimitMiddleware(32 << 20)(handler)
func BodyLimitMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if maxBytes <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
