// Package handler provides HTTP handlers for the exposure API.
package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/airexposure/airexposure/internal/analysis"
	"github.com/airexposure/airexposure/internal/api/models"
	"github.com/airexposure/airexposure/internal/api/response"
	"github.com/airexposure/airexposure/internal/exposure"
)

// Default query values of the pollution-data endpoint.
const (
	DefaultStartDate = "2023-01-01"
	DefaultEndDate   = "2023-12-31"
)

// Analyzer runs a regional analysis.
type Analyzer interface {
	Analyze(ctx context.Context, req exposure.Request) *exposure.Report
}

// ExposureHandler serves regional pollution analyses.
type ExposureHandler struct {
	analyzer Analyzer
}

// NewExposureHandler creates a new ExposureHandler.
func NewExposureHandler(analyzer Analyzer) *ExposureHandler {
	return &ExposureHandler{analyzer: analyzer}
}

// GetPollutionData handles GET /v1/pollution-data. An unknown region is
// analysed as the default region; malformed dates are the only client error.
func (h *ExposureHandler) GetPollutionData(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start := queryOrDefault(q.Get("start_date"), DefaultStartDate)
	end := queryOrDefault(q.Get("end_date"), DefaultEndDate)

	var fieldErrors []models.FieldError
	if _, err := analysis.ParseDate(start); err != nil {
		fieldErrors = append(fieldErrors, invalidDate("start_date"))
	}
	if _, err := analysis.ParseDate(end); err != nil {
		fieldErrors = append(fieldErrors, invalidDate("end_date"))
	}
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "dates must use the YYYY-MM-DD format", fieldErrors)
		return
	}

	from, to, err := exposure.ParseRange(start, end)
	if err != nil {
		response.BadRequest(w, r, err.Error(), []models.FieldError{{
			Field:   "end_date",
			Message: fmt.Sprintf("must not precede start_date and must be within %d days of it", exposure.MaxRangeDays),
			Code:    "INVALID_RANGE",
		}})
		return
	}

	report := h.analyzer.Analyze(r.Context(), exposure.Request{
		Region: q.Get("region"),
		Start:  from,
		End:    to,
	})
	response.JSON(w, r, http.StatusOK, report)
}

func queryOrDefault(value, def string) string {
	if value = strings.TrimSpace(value); value != "" {
		return value
	}
	return def
}

func invalidDate(field string) models.FieldError {
	return models.FieldError{
		Field:   field,
		Message: "must be a date in YYYY-MM-DD format",
		Code:    "INVALID_DATE",
	}
}
