package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/rs/zerolog"

	"github.com/airexposure/airexposure/internal/api/middleware"
	"github.com/airexposure/airexposure/internal/api/models"
	"github.com/airexposure/airexposure/internal/api/response"
	"github.com/airexposure/airexposure/internal/featureflags"
)

// maxFlagRequestBytes bounds the flag update body.
const maxFlagRequestBytes = 64 << 10

// FlagStore reads and writes capability flags.
type FlagStore interface {
	GetAllFlags(ctx context.Context) map[string]*featureflags.Flag
	SetFlags(ctx context.Context, flags []*featureflags.Flag) error
	InvalidateCache()
}

// FeatureFlagsHandler handles feature flag endpoints.
type FeatureFlagsHandler struct {
	store  FlagStore
	logger zerolog.Logger
}

// NewFeatureFlagsHandler creates a new FeatureFlagsHandler.
func NewFeatureFlagsHandler(store FlagStore, logger zerolog.Logger) *FeatureFlagsHandler {
	return &FeatureFlagsHandler{
		store:  store,
		logger: logger.With().Str("component", "feature_flags_handler").Logger(),
	}
}

// ListFeatureFlags handles GET /v1/admin/feature-flags.
func (h *FeatureFlagsHandler) ListFeatureFlags(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.list(r.Context()))
}

// UpsertFeatureFlags handles PUT /v1/admin/feature-flags. Every update is
// validated before any is stored.
func (h *FeatureFlagsHandler) UpsertFeatureFlags(w http.ResponseWriter, r *http.Request) {
	var req featureflags.FlagUpdateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFlagRequestBytes)).Decode(&req); err != nil {
		response.BadRequest(w, r, "request body must be a JSON flag update", nil)
		return
	}

	if len(req.Updates) == 0 {
		response.BadRequest(w, r, "no flag updates given", []models.FieldError{{
			Field: "updates", Message: "must not be empty", Code: "REQUIRED",
		}})
		return
	}

	flags := make([]*featureflags.Flag, 0, len(req.Updates))
	var fieldErrors []models.FieldError
	for i, u := range req.Updates {
		field := fmt.Sprintf("updates[%d]", i)
		switch err := u.Validate(); {
		case errors.Is(err, featureflags.ErrUnknownFlag):
			fieldErrors = append(fieldErrors, models.FieldError{Field: field + ".key", Message: "unknown flag", Code: "UNKNOWN_FLAG"})
		case err != nil:
			fieldErrors = append(fieldErrors, models.FieldError{Field: field + ".value", Message: err.Error(), Code: "INVALID_VALUE"})
		default:
			flags = append(flags, &featureflags.Flag{Key: u.Key, Value: u.Value})
		}
	}
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid flag update", fieldErrors)
		return
	}

	if err := h.store.SetFlags(r.Context(), flags); err != nil {
		h.logger.Error().Ctx(r.Context()).Err(err).Msg("failed to update feature flags")
		response.InternalError(w, r, "failed to update feature flags")
		return
	}

	keys := make([]string, len(flags))
	for i, f := range flags {
		keys[i] = f.Key
	}
	h.logger.Info().
		Ctx(r.Context()).
		Str("operator", middleware.GetOperator(r.Context())).
		Strs("keys", keys).
		Str("reason", req.Reason).
		Msg("feature flags updated")

	response.JSON(w, r, http.StatusOK, h.list(r.Context()))
}

// InvalidateCache handles POST /v1/admin/feature-flags/invalidate.
func (h *FeatureFlagsHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	h.store.InvalidateCache()
	response.NoContent(w, r)
}

func (h *FeatureFlagsHandler) list(ctx context.Context) featureflags.FlagList {
	all := h.store.GetAllFlags(ctx)
	list := featureflags.FlagList{Items: make([]featureflags.Flag, 0, len(all))}
	for _, f := range all {
		list.Items = append(list.Items, *f)
	}
	sort.Slice(list.Items, func(i, j int) bool { return list.Items[i].Key < list.Items[j].Key })
	return list
}
