package handler

import (
	"context"
	"net/http"

	"github.com/paulmach/orb/geojson"

	"github.com/airexposure/airexposure/internal/api/response"
)

// BoundaryLookup finds the GeoJSON outline of a region.
type BoundaryLookup interface {
	Lookup(ctx context.Context, name string) *geojson.FeatureCollection
}

// BoundaryHandler serves region outlines.
type BoundaryHandler struct {
	boundaries    BoundaryLookup
	defaultRegion string
}

// NewBoundaryHandler creates a new BoundaryHandler. An empty region query
// falls back to defaultRegion.
func NewBoundaryHandler(boundaries BoundaryLookup, defaultRegion string) *BoundaryHandler {
	return &BoundaryHandler{boundaries: boundaries, defaultRegion: defaultRegion}
}

// GetRegionBoundary handles GET /v1/region-boundary. Regions without a known
// outline yield a JSON null body with status 200.
func (h *BoundaryHandler) GetRegionBoundary(w http.ResponseWriter, r *http.Request) {
	name := queryOrDefault(r.URL.Query().Get("region"), h.defaultRegion)

	fc := h.boundaries.Lookup(r.Context(), name)
	if fc == nil {
		response.GeoJSON(w, r, http.StatusOK, nil)
		return
	}
	response.GeoJSON(w, r, http.StatusOK, fc)
}
