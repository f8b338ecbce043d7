// Package response writes JSON and problem responses with request-ID
// correlation.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/airexposure/airexposure/internal/api/middleware"
	"github.com/airexposure/airexposure/internal/api/models"
)

// Content types written by this package.
const (
	ContentTypeJSON    = "application/json"
	ContentTypeGeoJSON = "application/geo+json"
)

// JSON writes data as JSON. A nil data writes headers only.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	writeHeader(w, r, ContentTypeJSON, status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// GeoJSON writes a GeoJSON document. Unlike JSON, a nil document is written
// as a null body, which clients read as "no boundary".
func GeoJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	writeHeader(w, r, ContentTypeGeoJSON, status)
	_ = json.NewEncoder(w).Encode(data)
}

// NoContent writes a 204 with the request ID header.
func NoContent(w http.ResponseWriter, r *http.Request) {
	setRequestID(w, r)
	w.WriteHeader(http.StatusNoContent)
}

func writeHeader(w http.ResponseWriter, r *http.Request, contentType string, status int) {
	setRequestID(w, r)
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
}

func setRequestID(w http.ResponseWriter, r *http.Request) {
	if requestID := middleware.GetRequestID(r.Context()); requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
}

// Error writes problem with the request path as its instance.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.WithInstance(r.URL.Path).Write(w)
}

// BadRequest writes a 400 with optional field errors.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	Error(w, r, models.NewBadRequest(middleware.GetRequestID(r.Context()), detail, errors))
}

// NotFound writes a 404.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Status(w, r, http.StatusNotFound, detail)
}

// InternalError writes a 500.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Status(w, r, http.StatusInternalServerError, detail)
}

// ServiceUnavailable writes a 503.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Status(w, r, http.StatusServiceUnavailable, detail)
}

// Status writes the standard problem for status.
func Status(w http.ResponseWriter, r *http.Request, status int, detail string) {
	Error(w, r, models.ForStatus(status, middleware.GetRequestID(r.Context()), detail))
}
