package analysis

import (
	"strings"

	"github.com/airexposure/airexposure/internal/outlier"
)

// Multivariate detector thresholds.
const (
	MinMultivariateDays = 7

	highRatio  = 2.0
	lowRatio   = 0.3
	spikeRatio = 1.5
	// lowMeanFloor keeps near-zero means from flagging every day as low.
	lowMeanFloor = 1.0
)

// Reason fragments attached to multivariate anomalies.
const (
	ReasonHighNO2         = "extremely high NO2"
	ReasonHighPM25        = "extremely high PM2.5"
	ReasonLowNO2          = "unusually low NO2"
	ReasonLowPM25         = "unusually low PM2.5"
	ReasonSimultaneous    = "simultaneous spike in NO2 and PM2.5"
	ReasonUnclear         = "unclear cause"
	multivariateSeparator = ", "
)

// MultivariateConfig configures the isolation-forest detector.
type MultivariateConfig struct {
	// Contamination is the expected share of anomalous days.
	// Default: 0.1
	Contamination float64

	// Seed makes scoring reproducible.
	// Default: 42
	Seed int64
}

// MultivariateAnomaly is one day flagged by the joint NO2/PM2.5 detector.
type MultivariateAnomaly struct {
	Date   Date    `json:"date"`
	NO2    float64 `json:"no2_level"`
	PM25   float64 `json:"pm25_level"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// DetectMultivariate flags days that are jointly unusual in NO2 and PM2.5.
// Fewer than MinMultivariateDays days returns StatusEmpty.
func DetectMultivariate(series []DailyRecord, cfg MultivariateConfig) ([]MultivariateAnomaly, Status) {
	if len(series) < MinMultivariateDays {
		return nil, StatusEmpty
	}
	if cfg.Contamination == 0 {
		cfg.Contamination = 0.1
	}
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}

	no2 := NO2Values(series)
	pm25 := PM25Values(series)
	zNO2 := zScores(no2)
	zPM := zScores(pm25)

	points := make([][]float64, len(series))
	for i := range series {
		points[i] = []float64{zNO2[i], zPM[i]}
	}

	forestCfg := outlier.DefaultConfig()
	forestCfg.Contamination = cfg.Contamination
	forestCfg.Seed = cfg.Seed
	flags, scores := outlier.Fit(points, forestCfg).Outliers(points)

	meanNO2, meanPM := mean(no2), mean(pm25)
	var out []MultivariateAnomaly
	for i, flagged := range flags {
		if !flagged {
			continue
		}
		r := series[i]
		out = append(out, MultivariateAnomaly{
			Date:   r.Date,
			NO2:    r.NO2,
			PM25:   r.PM25,
			Score:  Finite(scores[i]),
			Reason: anomalyReason(r.NO2, r.PM25, meanNO2, meanPM),
		})
	}
	return out, StatusSuccess
}

func anomalyReason(no2, pm25, meanNO2, meanPM float64) string {
	var reasons []string
	if meanNO2 > 0 && no2 > highRatio*meanNO2 {
		reasons = append(reasons, ReasonHighNO2)
	}
	if meanPM > 0 && pm25 > highRatio*meanPM {
		reasons = append(reasons, ReasonHighPM25)
	}
	if meanNO2 > lowMeanFloor && no2 < lowRatio*meanNO2 {
		reasons = append(reasons, ReasonLowNO2)
	}
	if meanPM > lowMeanFloor && pm25 < lowRatio*meanPM {
		reasons = append(reasons, ReasonLowPM25)
	}
	if meanNO2 > 0 && meanPM > 0 && no2 > spikeRatio*meanNO2 && pm25 > spikeRatio*meanPM {
		reasons = append(reasons, ReasonSimultaneous)
	}
	if len(reasons) == 0 {
		return ReasonUnclear
	}
	return strings.Join(reasons, multivariateSeparator)
}
