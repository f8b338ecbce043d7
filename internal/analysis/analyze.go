package analysis

// Analyze aggregates the NO2-bearing and PM2.5-bearing samples into a daily
// series, flags z-score anomalies and attaches the summary with its trend
// block. An empty join yields an empty series and a nil summary.
func Analyze(no2, pm25 []Sample) Result {
	days := aggregate(no2, pm25)
	if len(days) == 0 {
		return Result{Series: []DailyRecord{}}
	}

	series := make([]DailyRecord, len(days))
	for i, d := range days {
		series[i] = d.record
	}

	anomalies := DetectAnomalies(series)
	for i := range series {
		series[i].IsAnomaly = anomalies[series[i].Date]
	}

	summary := summarize(days)
	summary.Trend = AnalyzeTrends(series)

	return Result{Series: series, Summary: summary}
}
