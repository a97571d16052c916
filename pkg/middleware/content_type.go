package middleware

import "net/http"

// DefaultJSONContentType marks request bodies sent without a Content-Type as JSON.
// Orthanc Lua scripts post JSON without setting the header.
func DefaultJSONContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") == "" && r.ContentLength != 0 && r.Body != nil && r.Body != http.NoBody {
			r.Header.Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}
