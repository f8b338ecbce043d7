package insight

import (
	"fmt"
	"strings"

	"github.com/airexposure/airexposure/internal/analysis"
)

// ExplainTrends describes each available trend in one sentence, NO2 first.
// It returns "" when there is no trend.
func ExplainTrends(trends map[string]analysis.TrendResult) string {
	var sentences []string
	for _, p := range []struct{ key, label string }{
		{analysis.TrendKeyNO2, "NO2"},
		{analysis.TrendKeyPM25, "PM2.5"},
	} {
		t, ok := trends[p.key]
		if !ok {
			continue
		}
		sentences = append(sentences, explainTrend(p.label, t))
	}
	return strings.Join(sentences, " ")
}

func explainTrend(label string, t analysis.TrendResult) string {
	if t.Direction == analysis.DirectionStable {
		return fmt.Sprintf("%s levels are stable over the period.", label)
	}
	significance := fmt.Sprintf("not statistically significant (p = %.3f)", t.PValue)
	if t.IsSignificant {
		significance = fmt.Sprintf("statistically significant (p = %.3f)", t.PValue)
	}
	return fmt.Sprintf("%s levels are %s by %.2f µg/m³ per day (R² = %.2f), a trend that is %s.",
		label, t.Direction, abs(t.Slope), t.RSquared, significance)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
