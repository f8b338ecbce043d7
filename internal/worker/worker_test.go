package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airexposure/airexposure/internal/analysis"
	"github.com/airexposure/airexposure/internal/exposure"
	"github.com/airexposure/airexposure/internal/riskzone"
	"github.com/airexposure/airexposure/internal/worker"
)

var fixedNow = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

// fakeAnalyzer returns a fixed report per region. "Empty" has no data and
// "Slow" blocks until its context ends.
type fakeAnalyzer struct {
	mu       sync.Mutex
	requests []exposure.Request
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, req exposure.Request) *exposure.Report {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	report := &exposure.Report{
		Region:      req.Region,
		Start:       req.Start,
		End:         req.End,
		Series:      []analysis.DailyRecord{},
		RiskZones:   []riskzone.Zone{},
		Enrichments: map[string]analysis.Status{exposure.EnrichmentForecast: analysis.StatusEmpty},
	}

	switch req.Region {
	case "Empty":
		return report
	case "Slow":
		<-ctx.Done()
		return report
	}

	report.Series = make([]analysis.DailyRecord, 3)
	report.Summary = &exposure.Summary{Summary: analysis.Summary{
		AvgNO2:              30,
		MaxNO2:              45,
		AvgPM25:             60,
		MaxPM25:             80,
		DaysExceedingWHOPM:  2,
		DaysExceedingWHONO2: 1,
	}}
	report.RiskZones = []riskzone.Zone{
		{RiskLevel: riskzone.LevelHigh, EstimatedAffectedPopulation: 1000},
		{RiskLevel: riskzone.LevelLow, EstimatedAffectedPopulation: 500},
	}
	return report
}

func (f *fakeAnalyzer) Requests() []exposure.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]exposure.Request(nil), f.requests...)
}

type fakePublisher struct {
	mu      sync.Mutex
	digests []worker.Digest
	failFor string
}

func (p *fakePublisher) Publish(_ context.Context, d worker.Digest) error {
	if d.Region == p.failFor {
		return errors.New("publish failed")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.digests = append(p.digests, d)
	return nil
}

func (p *fakePublisher) Published() []worker.Digest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]worker.Digest(nil), p.digests...)
}

func newJob(analyzer worker.Analyzer, publisher worker.DigestPublisher, regions ...string) *worker.AnalysisJob {
	cfg := worker.DefaultAnalysisConfig()
	if len(regions) > 0 {
		cfg.Regions = regions
	}
	cfg.Timeout = 100 * time.Millisecond
	return worker.NewAnalysisJob(worker.AnalysisJobConfig{
		Config:    cfg,
		Logger:    zerolog.Nop(),
		Analyzer:  analyzer,
		Publisher: publisher,
		Now:       clock,
	})
}

func TestDefaultAnalysisConfig(t *testing.T) {
	cfg := worker.DefaultAnalysisConfig()

	assert.Equal(t, []string{"Nagpur", "Delhi", "Mumbai", "London"}, cfg.Regions)
	assert.Equal(t, 3, cfg.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 30, cfg.LookbackDays)
}

func TestAnalysisConfig_Window(t *testing.T) {
	cfg := worker.AnalysisConfig{LookbackDays: 7}

	start, end := cfg.Window(fixedNow)

	assert.Equal(t, "2024-03-08", start.String())
	assert.Equal(t, "2024-03-14", end.String())
}

func TestAnalysisJob_Run_PublishesDigests(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	publisher := &fakePublisher{}
	job := newJob(analyzer, publisher, "Nagpur", "Delhi", "Empty")

	result, err := job.Run(context.Background(), worker.RunOptions{})
	require.NoError(t, err)

	assert.Len(t, result.RunID, 36)
	assert.Equal(t, 3, result.TotalRegions)
	assert.Equal(t, 3, result.Successful)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 1, result.Empty)
	assert.Len(t, result.Digests, 3)
	assert.Len(t, publisher.Published(), 3)

	for _, req := range analyzer.Requests() {
		assert.Equal(t, "2024-02-14", req.Start.String())
		assert.Equal(t, "2024-03-14", req.End.String())
	}

	m := job.GetMetrics()
	assert.Equal(t, int64(1), m.TotalRuns)
	assert.Equal(t, int64(3), m.RegionsAnalysed)
	assert.Equal(t, int64(1), m.RegionsEmpty)
	assert.Equal(t, int64(3), m.DigestsPublished)
}

func TestAnalysisJob_Run_ExplicitRange(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	job := newJob(analyzer, nil)

	result, err := job.Run(context.Background(), worker.RunOptions{
		Regions:   []string{"London"},
		StartDate: "2023-01-01",
		EndDate:   "2023-01-31",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Successful)

	reqs := analyzer.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "London", reqs[0].Region)
	assert.Equal(t, "2023-01-01", reqs[0].Start.String())
	assert.Equal(t, "2023-01-31", reqs[0].End.String())
}

func TestAnalysisJob_Run_InvalidRange(t *testing.T) {
	job := newJob(&fakeAnalyzer{}, nil)

	_, err := job.Run(context.Background(), worker.RunOptions{StartDate: "2023-02-01", EndDate: "2023-01-01"})

	assert.ErrorIs(t, err, exposure.ErrInvalidRange)
}

func TestAnalysisJob_Run_Failures(t *testing.T) {
	publisher := &fakePublisher{failFor: "Delhi"}
	job := newJob(&fakeAnalyzer{}, publisher, "Nagpur", "Delhi", "Slow")

	result, err := job.Run(context.Background(), worker.RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Errors, 2)

	failed := map[string]bool{}
	for _, e := range result.Errors {
		failed[e.Region] = true
	}
	assert.True(t, failed["Delhi"])
	assert.True(t, failed["Slow"])
	assert.Len(t, publisher.Published(), 1)
}

func TestAnalysisJob_Run_SkipPublish(t *testing.T) {
	publisher := &fakePublisher{}
	job := newJob(&fakeAnalyzer{}, publisher, "Nagpur")

	result, err := job.Run(context.Background(), worker.RunOptions{SkipPublish: true})
	require.NoError(t, err)

	assert.Len(t, result.Digests, 1)
	assert.Empty(t, publisher.Published())
}

func TestAnalysisJob_MetricsSnapshot(t *testing.T) {
	job := newJob(&fakeAnalyzer{}, nil, "Nagpur")
	_, err := job.Run(context.Background(), worker.RunOptions{})
	require.NoError(t, err)

	snapshot := job.MetricsSnapshot()

	assert.Equal(t, int64(1), snapshot["total_runs"])
	assert.Equal(t, int64(1), snapshot["regions_analysed"])
	assert.Equal(t, int64(0), snapshot["digests_published"])
	assert.Contains(t, snapshot, "avg_run_duration")
}

func TestNewDigest(t *testing.T) {
	report := (&fakeAnalyzer{}).Analyze(context.Background(), exposure.Request{Region: "Nagpur"})

	d := worker.NewDigest(report, fixedNow)

	assert.Equal(t, "Nagpur", d.Region)
	assert.Equal(t, 3, d.Days)
	require.NotNil(t, d.AvgNO2)
	assert.Equal(t, 30.0, *d.AvgNO2)
	require.NotNil(t, d.MaxPM25)
	assert.Equal(t, 80.0, *d.MaxPM25)
	assert.Equal(t, 1, d.DaysExceedingNO2)
	assert.Equal(t, 2, d.DaysExceedingPM25)
	assert.Equal(t, 1, d.HighRiskZones)
	assert.Equal(t, 1500, d.AffectedPopulation)
	assert.Equal(t, fixedNow, d.GeneratedAt)
}

func TestNewDigest_Empty(t *testing.T) {
	report := (&fakeAnalyzer{}).Analyze(context.Background(), exposure.Request{Region: "Empty"})

	d := worker.NewDigest(report, fixedNow)

	assert.Zero(t, d.Days)
	assert.Nil(t, d.AvgNO2)
	assert.Nil(t, d.MaxPM25)
	assert.Zero(t, d.HighRiskZones)
}
