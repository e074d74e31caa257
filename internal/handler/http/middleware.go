package http

import (
	"mime"
	"net/http"
	"strings"

	"github.com/utafrali/EcommerceGo/mediapipeline/pkg/httputil"
)

// RequireContentType rejects requests that carry a body whose media type is
// not one of types with 415. Requests without a body pass through.
func RequireContentType(types ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(types))
	for _, t := range types {
		allowed[t] = struct{}{}
	}
	message := "Content-Type must be " + strings.Join(types, " or ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength == 0 {
				next.ServeHTTP(w, r)
				return
			}
			mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if _, ok := allowed[mediaType]; err != nil || !ok {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "UNSUPPORTED_MEDIA_TYPE", Message: message},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
