// Package worker runs scheduled regional analyses triggered over Pub/Sub and
// publishes one exposure digest per region.
package worker

import (
	"time"

	"github.com/airexposure/airexposure/internal/analysis"
)

// AnalysisConfig holds configuration for the regional analysis job.
type AnalysisConfig struct {
	// Regions are the regions analysed on every run.
	// If empty, uses DefaultRegions.
	Regions []string

	// Concurrency is the number of regions analysed in parallel.
	// Default: 3
	Concurrency int

	// Timeout bounds the analysis of one region.
	// Default: 30 seconds
	Timeout time.Duration

	// LookbackDays is the length of the analysed window, ending yesterday.
	// Default: 30
	LookbackDays int
}

// DefaultAnalysisConfig returns the default analysis configuration.
func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		Regions:      DefaultRegions(),
		Concurrency:  3,
		Timeout:      30 * time.Second,
		LookbackDays: 30,
	}
}

// DefaultRegions returns the regions with known populations, which are the
// ones whose digests carry an affected-population estimate.
func DefaultRegions() []string {
	return []string{"Nagpur", "Delhi", "Mumbai", "London"}
}

// withDefaults fills zero fields from DefaultAnalysisConfig.
func (c AnalysisConfig) withDefaults() AnalysisConfig {
	def := DefaultAnalysisConfig()
	if len(c.Regions) == 0 {
		c.Regions = def.Regions
	}
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.LookbackDays <= 0 {
		c.LookbackDays = def.LookbackDays
	}
	return c
}

// Window returns the analysed date range for a run at now: LookbackDays
// days ending the day before now.
func (c AnalysisConfig) Window(now time.Time) (analysis.Date, analysis.Date) {
	end := analysis.NewDate(now).AddDays(-1)
	return end.AddDays(-(c.LookbackDays - 1)), end
}
