package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/couchcryptid/crime-district-report/internal/domain"
	"github.com/couchcryptid/crime-district-report/internal/observability"
)

// Extractor reads both input datasets.
type Extractor interface {
	ExtractCodes(ctx context.Context) ([]domain.OffenseCode, error)
	ExtractIncidents(ctx context.Context) ([]domain.Incident, error)
}

// Loader persists or publishes a finished report.
type Loader interface {
	LoadReport(ctx context.Context, report domain.Report) error
}

// Artifact is the output that replaces the previous run's report.
// Stage writes the new artifact aside without touching the previous one.
// Commit swaps the staged artifact into place. Discard drops a staged
// artifact that will not be committed.
type Artifact interface {
	Stage(ctx context.Context, report domain.Report) error
	Commit(ctx context.Context) error
	Discard() error
}

// Pipeline runs the one-shot report job: extract, aggregate, load.
type Pipeline struct {
	extractor Extractor
	artifact  Artifact
	sinks     Loader
	median    domain.MedianEstimator
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New creates a Pipeline with the given stages and observability. The sinks
// receive the report after the artifact is staged and before it is committed.
func New(e Extractor, out Artifact, sinks Loader, median domain.MedianEstimator, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		extractor: e,
		artifact:  out,
		sinks:     sinks,
		median:    median,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run executes the whole job once. Any failure aborts the run before the
// artifact is committed, so the previous output stays in place.
func (p *Pipeline) Run(ctx context.Context) (domain.Report, error) {
	start := clock.Now()
	runID := uuid.New()
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	codes, incidents, err := p.extract(ctx)
	if err != nil {
		return domain.Report{}, err
	}

	rows, err := p.build(ctx, codes, incidents)
	if err != nil {
		return domain.Report{}, err
	}

	report := domain.Report{RunID: runID, Rows: rows, GeneratedAt: clock.Now().UTC()}

	if err := p.load(ctx, report); err != nil {
		return domain.Report{}, err
	}

	p.metrics.DistrictsReported.Set(float64(len(rows)))
	p.metrics.LastSuccess.Set(float64(clock.Now().Unix()))
	p.logger.Info("report complete",
		"run_id", runID.String(),
		"districts", len(rows),
		"duration", clock.Since(start),
	)
	return report, nil
}

func (p *Pipeline) extract(ctx context.Context) ([]domain.OffenseCode, []domain.Incident, error) {
	var codes []domain.OffenseCode
	err := p.timed("extract_codes", func() error {
		var err error
		codes, err = p.extractor.ExtractCodes(ctx)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("extract codes: %w", err)
	}
	p.metrics.CodesRead.Add(float64(len(codes)))

	var incidents []domain.Incident
	err = p.timed("extract_incidents", func() error {
		var err error
		incidents, err = p.extractor.ExtractIncidents(ctx)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("extract incidents: %w", err)
	}
	p.metrics.IncidentsRead.Add(float64(len(incidents)))

	p.logger.Info("inputs loaded", "codes", len(codes), "incidents", len(incidents))
	return codes, incidents, nil
}

func (p *Pipeline) load(ctx context.Context, report domain.Report) error {
	err := p.timed("stage_artifact", func() error {
		return p.artifact.Stage(ctx, report)
	})
	if err != nil {
		return fmt.Errorf("stage artifact: %w", err)
	}

	err = p.timed("load", func() error {
		return p.sinks.LoadReport(ctx, report)
	})
	if err != nil {
		p.discard(report.RunID)
		return fmt.Errorf("load report: %w", err)
	}

	err = p.timed("commit_artifact", func() error {
		return p.artifact.Commit(ctx)
	})
	if err != nil {
		p.discard(report.RunID)
		return fmt.Errorf("commit artifact: %w", err)
	}
	return nil
}

func (p *Pipeline) discard(runID uuid.UUID) {
	if err := p.artifact.Discard(); err != nil {
		p.logger.Warn("discard staged artifact", "run_id", runID.String(), "error", err)
	}
}

// timed runs fn and records its duration under the given stage label.
func (p *Pipeline) timed(stage string, fn func() error) error {
	start := clock.Now()
	p.logger.Debug("stage started", "stage", stage)
	err := fn()
	elapsed := clock.Since(start)
	p.metrics.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	if err != nil {
		p.logger.Debug("stage failed", "stage", stage, "duration", elapsed, "error", err)
		return err
	}
	p.logger.Debug("stage finished", "stage", stage, "duration", elapsed)
	return nil
}

// time is timed for stages that cannot fail.
func (p *Pipeline) time(stage string, fn func()) {
	start := clock.Now()
	fn()
	elapsed := clock.Since(start)
	p.metrics.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	p.logger.Debug("stage finished", "stage", stage, "duration", elapsed)
}

// Loaders runs each loader in order and stops at the first failure. An empty
// Loaders is a valid sink set.
type Loaders []Loader

func (ls Loaders) LoadReport(ctx context.Context, report domain.Report) error {
	for _, l := range ls {
		if err := l.LoadReport(ctx, report); err != nil {
			return err
		}
	}
	return nil
}
