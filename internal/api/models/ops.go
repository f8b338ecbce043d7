// Package models holds the wire models of the exposure API that no domain
// package owns: problem details and the ops payloads.
package models

import (
	"time"

	"github.com/airexposure/airexposure/internal/provider/resilience"
)

// HealthStatus is the coarse state reported by the ops endpoints.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "OK"
	HealthStatusDegraded HealthStatus = "DEGRADED"
	HealthStatusFail     HealthStatus = "FAIL"
)

// Timestamp is a time that serialises as RFC 3339 in UTC with whole seconds.
type Timestamp time.Time

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return time.Time(t).UTC().Truncate(time.Second).MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler. null leaves t unchanged.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var v time.Time
	if string(data) == "null" {
		return nil
	}
	if err := v.UnmarshalJSON(data); err != nil {
		return err
	}
	*t = Timestamp(v)
	return nil
}

// Time returns the underlying time.
func (t Timestamp) Time() time.Time { return time.Time(t) }

// Health represents the health status of the service.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemStatus represents the overall system status.
type SystemStatus struct {
	Status           HealthStatus      `json:"status"`
	Time             Timestamp         `json:"time"`
	Subsystems       []SubsystemStatus `json:"subsystems"`
	Suppliers        []SupplierStatus  `json:"suppliers"`
	DisabledFeatures []string          `json:"disabledFeatures,omitempty"`
}

// SubsystemStatus represents the status of a subsystem.
type SubsystemStatus struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail *string      `json:"detail,omitempty"`
}

// SupplierStatus represents the status of an upstream data supplier.
type SupplierStatus struct {
	Supplier      string       `json:"supplier"`
	Status        HealthStatus `json:"status"`
	Circuit       string       `json:"circuit"`
	LastSuccessAt *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *Timestamp   `json:"lastFailureAt,omitempty"`
	Message       *string      `json:"message,omitempty"`
}

// NewSupplierStatus maps a registry entry onto the API model.
func NewSupplierStatus(h resilience.SupplierHealth) SupplierStatus {
	s := SupplierStatus{
		Supplier:      h.Name,
		Status:        HealthStatusFromSupplier(h.Status),
		Circuit:       h.Circuit,
		LastSuccessAt: timestampPtr(h.LastSuccessAt),
		LastFailureAt: timestampPtr(h.LastFailureAt),
	}
	if h.LastError != "" {
		msg := h.LastError
		s.Message = &msg
	}
	return s
}

// HealthStatusFromSupplier converts a registry status.
func HealthStatusFromSupplier(status string) HealthStatus {
	switch status {
	case resilience.StatusHealthy:
		return HealthStatusOK
	case resilience.StatusDegraded:
		return HealthStatusDegraded
	default:
		return HealthStatusFail
	}
}

func timestampPtr(t *time.Time) *Timestamp {
	if t == nil || t.IsZero() {
		return nil
	}
	ts := Timestamp(*t)
	return &ts
}
