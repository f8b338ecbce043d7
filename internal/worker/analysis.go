package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/airexposure/airexposure/internal/analysis"
	"github.com/airexposure/airexposure/internal/exposure"
)

// Analyzer runs one regional analysis.
type Analyzer interface {
	Analyze(ctx context.Context, req exposure.Request) *exposure.Report
}

// AnalysisJob analyses the configured regions and publishes a digest for
// each of them.
type AnalysisJob struct {
	config    AnalysisConfig
	logger    zerolog.Logger
	analyzer  Analyzer
	publisher DigestPublisher
	now       func() time.Time

	metrics *JobMetrics
}

// JobMetrics tracks analysis job statistics.
type JobMetrics struct {
	mu sync.RWMutex

	TotalRuns        int64
	RegionsAnalysed  int64
	RegionsFailed    int64
	RegionsEmpty     int64
	DigestsPublished int64
	LastRunAt        time.Time
	LastRunDuration  time.Duration
	TotalRunDuration time.Duration
}

// AnalysisJobConfig holds configuration for creating an AnalysisJob.
type AnalysisJobConfig struct {
	Config   AnalysisConfig
	Logger   zerolog.Logger
	Analyzer Analyzer

	// Publisher receives the digests. If nil, digests are only logged.
	Publisher DigestPublisher

	// Now overrides the clock. Default: time.Now
	Now func() time.Time
}

// NewAnalysisJob creates a new analysis job.
func NewAnalysisJob(cfg AnalysisJobConfig) *AnalysisJob {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &AnalysisJob{
		config:    cfg.Config.withDefaults(),
		logger:    cfg.Logger.With().Str("component", "analysis_job").Logger(),
		analyzer:  cfg.Analyzer,
		publisher: cfg.Publisher,
		now:       now,
		metrics:   &JobMetrics{},
	}
}

// RunOptions narrows a single run.
type RunOptions struct {
	// Regions overrides the configured regions.
	Regions []string

	// StartDate and EndDate override the lookback window. Both or neither
	// must be set, as YYYY-MM-DD.
	StartDate string
	EndDate   string

	// SkipPublish analyses without publishing digests.
	SkipPublish bool
}

// RunResult contains the result of a run.
type RunResult struct {
	// RunID correlates the log lines of one run.
	RunID        string
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
	TotalRegions int
	Successful   int
	Failed       int
	Empty        int
	Errors       []RegionError
	Digests      []Digest
}

// RegionError represents a failure for one region.
type RegionError struct {
	Region string
	Error  string
}

// Run executes the job. It only fails when the options are invalid; per-region
// failures are reported in the result.
func (j *AnalysisJob) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	start, end, err := j.window(opts)
	if err != nil {
		return nil, err
	}

	regions := opts.Regions
	if len(regions) == 0 {
		regions = j.config.Regions
	}

	startTime := time.Now()
	result := &RunResult{
		RunID:        uuid.NewString(),
		StartTime:    startTime,
		TotalRegions: len(regions),
	}
	logger := j.logger.With().Str("run_id", result.RunID).Logger()

	logger.Info().
		Int("total_regions", result.TotalRegions).
		Int("concurrency", j.config.Concurrency).
		Str("start_date", start.String()).
		Str("end_date", end.String()).
		Msg("starting regional analysis job")

	regionsChan := make(chan string, len(regions))
	resultsChan := make(chan regionResult, len(regions))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.analysisWorker(ctx, regionsChan, resultsChan, start, end, !opts.SkipPublish)
		}()
	}

	for _, r := range regions {
		regionsChan <- r
	}
	close(regionsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for rr := range resultsChan {
		switch {
		case rr.err != nil:
			result.Failed++
			result.Errors = append(result.Errors, RegionError{Region: rr.region, Error: rr.err.Error()})
		case rr.empty:
			result.Empty++
			result.Successful++
		default:
			result.Successful++
		}
		if rr.digest != nil {
			result.Digests = append(result.Digests, *rr.digest)
		}
	}

	// Regions skipped after cancellation never reached a worker.
	if skipped := result.TotalRegions - result.Successful - result.Failed; skipped > 0 {
		result.Failed += skipped
		result.Errors = append(result.Errors, RegionError{
			Error: fmt.Sprintf("%d regions skipped: %v", skipped, context.Cause(ctx)),
		})
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("empty", result.Empty).
		Msg("regional analysis job completed")

	return result, nil
}

func (j *AnalysisJob) window(opts RunOptions) (analysis.Date, analysis.Date, error) {
	if opts.StartDate == "" && opts.EndDate == "" {
		start, end := j.config.Window(j.now())
		return start, end, nil
	}
	start, end, err := exposure.ParseRange(opts.StartDate, opts.EndDate)
	if err != nil {
		return analysis.Date{}, analysis.Date{}, fmt.Errorf("run options: %w", err)
	}
	return start, end, nil
}

type regionResult struct {
	region string
	empty  bool
	digest *Digest
	err    error
}

func (j *AnalysisJob) analysisWorker(ctx context.Context, regions <-chan string, results chan<- regionResult, start, end analysis.Date, publish bool) {
	for name := range regions {
		select {
		case <-ctx.Done():
			return
		default:
			results <- j.analyseRegion(ctx, name, start, end, publish)
		}
	}
}

func (j *AnalysisJob) analyseRegion(ctx context.Context, name string, start, end analysis.Date, publish bool) regionResult {
	regionCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	report := j.analyzer.Analyze(regionCtx, exposure.Request{Region: name, Start: start, End: end})
	if err := regionCtx.Err(); err != nil {
		return regionResult{region: name, err: fmt.Errorf("analysing %s: %w", name, err)}
	}

	digest := NewDigest(report, j.now())
	rr := regionResult{region: report.Region, empty: report.Summary == nil, digest: &digest}

	if !publish {
		return rr
	}
	if j.publisher == nil {
		j.logger.Info().
			Str("region", digest.Region).
			Int("days", digest.Days).
			Int("high_risk_zones", digest.HighRiskZones).
			Msg("digest ready, no publisher configured")
		return rr
	}
	if err := j.publisher.Publish(regionCtx, digest); err != nil {
		rr.err = err
		return rr
	}

	j.metrics.mu.Lock()
	j.metrics.DigestsPublished++
	j.metrics.mu.Unlock()
	return rr
}

func (j *AnalysisJob) updateMetrics(result *RunResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.RegionsAnalysed += int64(result.Successful)
	j.metrics.RegionsFailed += int64(result.Failed)
	j.metrics.RegionsEmpty += int64(result.Empty)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalRunDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *AnalysisJob) GetMetrics() JobMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return JobMetrics{
		TotalRuns:        j.metrics.TotalRuns,
		RegionsAnalysed:  j.metrics.RegionsAnalysed,
		RegionsFailed:    j.metrics.RegionsFailed,
		RegionsEmpty:     j.metrics.RegionsEmpty,
		DigestsPublished: j.metrics.DigestsPublished,
		LastRunAt:        j.metrics.LastRunAt,
		LastRunDuration:  j.metrics.LastRunDuration,
		TotalRunDuration: j.metrics.TotalRunDuration,
	}
}

// MetricsSnapshot returns the current metrics as a map for structured logging.
func (j *AnalysisJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()

	var avg time.Duration
	if m.TotalRuns > 0 {
		avg = m.TotalRunDuration / time.Duration(m.TotalRuns)
	}

	return map[string]interface{}{
		"total_runs":        m.TotalRuns,
		"regions_analysed":  m.RegionsAnalysed,
		"regions_failed":    m.RegionsFailed,
		"regions_empty":     m.RegionsEmpty,
		"digests_published": m.DigestsPublished,
		"last_run_at":       m.LastRunAt,
		"last_run_duration": m.LastRunDuration.String(),
		"avg_run_duration":  avg.String(),
	}
}
