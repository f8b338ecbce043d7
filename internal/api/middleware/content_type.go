package middleware

import (
	"mime"
	"net/http"

	"github.com/airexposure/airexposure/internal/api/models"
)

// bodyMethods are the methods whose request body is decoded as JSON.
var bodyMethods = map[string]bool{
	http.MethodPost:  true,
	http.MethodPut:   true,
	http.MethodPatch: true,
}

// ContentTypeJSON defaults the response Content-Type to application/json.
// Handlers may still set their own, e.g. for GeoJSON.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

// RequireJSON answers 415 when a body-carrying request declares a media
// type other than application/json. An absent Content-Type is accepted.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		declared := r.Header.Get("Content-Type")
		if !bodyMethods[r.Method] || declared == "" {
			next.ServeHTTP(w, r)
			return
		}

		mediaType, _, err := mime.ParseMediaType(declared)
		if err != nil || mediaType != "application/json" {
			models.NewUnsupportedMediaType(GetRequestID(r.Context()), "Content-Type must be application/json").
				WithInstance(r.URL.Path).
				Write(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}
