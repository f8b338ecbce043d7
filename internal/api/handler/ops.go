package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/airexposure/airexposure/internal/api/models"
	"github.com/airexposure/airexposure/internal/api/response"
	"github.com/airexposure/airexposure/internal/featureflags"
	"github.com/airexposure/airexposure/internal/provider/resilience"
)

// readinessTimeout bounds each dependency check.
const readinessTimeout = 2 * time.Second

// Check probes one dependency.
type Check func(ctx context.Context) error

// FlagLister lists the effective capability flags.
type FlagLister interface {
	GetAllFlags(ctx context.Context) map[string]*featureflags.Flag
}

// OpsConfig configures the OpsHandler. Checks, Registry and Flags are
// optional.
type OpsConfig struct {
	Version   string
	BuildTime string
	Checks    map[string]Check
	Registry  *resilience.Registry
	Flags     FlagLister
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready. It answers 503 when a
// dependency check fails.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	subsystems := h.runChecks(r.Context())

	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}
	status := http.StatusOK
	if len(subsystems) > 0 {
		details := make(map[string]interface{}, len(subsystems))
		for _, s := range subsystems {
			details[s.Name] = s.Status
			if s.Status == models.HealthStatusFail {
				health.Status = models.HealthStatusFail
				status = http.StatusServiceUnavailable
			}
		}
		health.Details = details
	}
	response.JSON(w, r, status, health)
}

// SystemStatus handles GET /v1/ops/status - subsystem, supplier and
// capability status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(time.Now()),
		Subsystems: h.runChecks(r.Context()),
		Suppliers:  []models.SupplierStatus{},
	}

	for _, s := range status.Subsystems {
		if s.Status == models.HealthStatusFail {
			status.Status = models.HealthStatusFail
		}
	}

	for _, supplier := range h.cfg.Registry.Snapshot() {
		status.Suppliers = append(status.Suppliers, models.NewSupplierStatus(*supplier))
	}
	if status.Status == models.HealthStatusOK && h.cfg.Registry.Overall() != resilience.StatusHealthy {
		// Suppliers have synthetic fallbacks, so an open circuit degrades
		// the service rather than failing it.
		status.Status = models.HealthStatusDegraded
	}

	if h.cfg.Flags != nil {
		for key, flag := range h.cfg.Flags.GetAllFlags(r.Context()) {
			if _, isBool := flag.Value.(bool); isBool && !flag.BoolValue(true) {
				status.DisabledFeatures = append(status.DisabledFeatures, key)
			}
		}
		sort.Strings(status.DisabledFeatures)
	}

	response.JSON(w, r, http.StatusOK, status)
}

// runChecks runs the readiness checks in name order.
func (h *OpsHandler) runChecks(ctx context.Context) []models.SubsystemStatus {
	names := make([]string, 0, len(h.cfg.Checks))
	for name := range h.cfg.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	subsystems := make([]models.SubsystemStatus, 0, len(names))
	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, readinessTimeout)
		err := h.cfg.Checks[name](checkCtx)
		cancel()

		s := models.SubsystemStatus{Name: name, Status: models.HealthStatusOK}
		if err != nil {
			detail := err.Error()
			s.Status = models.HealthStatusFail
			s.Detail = &detail
		}
		subsystems = append(subsystems, s)
	}
	return subsystems
}
