package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/citycat-pipeline/internal/config"
	"github.com/couchcryptid/citycat-pipeline/internal/domain"
	"github.com/couchcryptid/citycat-pipeline/internal/observability"
	"github.com/google/uuid"
)

// Solver runs the flood model against a prepared input directory.
type Solver interface {
	Run(ctx context.Context, runDir string) error
}

// EventPublisher announces finished runs.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.RunEvent) error
}

// ArtifactStore uploads derived files and returns their keys.
type ArtifactStore interface {
	Upload(ctx context.Context, runID string, files []string) ([]string, error)
}

// Options locate the input and output trees and carry the run settings.
type Options struct {
	InputsDir  string
	OutputsDir string
	Params     config.RunParameters
}

// RunDir is the solver working directory.
func (o Options) RunDir() string { return filepath.Join(o.OutputsDir, "run") }

// ParametersDir receives the parameter record.
func (o Options) ParametersDir() string { return filepath.Join(o.OutputsDir, "parameters") }

// Pipeline orchestrates one prepare -> solve -> derive -> publish run.
type Pipeline struct {
	opts      Options
	solver    Solver
	publisher EventPublisher
	store     ArtifactStore
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool

	mu       sync.Mutex
	progress domain.RunProgress
}

// New creates a Pipeline. publisher and store may be nil to skip
// announcing and uploading.
func New(opts Options, solver Solver, publisher EventPublisher, store ArtifactStore, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		opts:      opts,
		solver:    solver,
		publisher: publisher,
		store:     store,
		logger:    logger,
		metrics:   metrics,
		progress:  domain.RunProgress{Stage: domain.StagePending},
	}
}

// CheckReadiness returns nil once the inputs are prepared and no stage has
// failed, or an error describing why the service is not ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if p.ready.Load() {
		return nil
	}
	if pr := p.Progress(); pr.Error != "" {
		return fmt.Errorf("run failed: %s", pr.Error)
	}
	return errors.New("run inputs have not been prepared yet")
}

// Progress returns the current run state.
func (p *Pipeline) Progress() domain.RunProgress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

func (p *Pipeline) setProgress(fn func(*domain.RunProgress)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.progress)
}

// Run executes every stage once and returns the published event. A failed
// stage stops the run; the failure event is still published.
func (p *Pipeline) Run(ctx context.Context) (domain.RunEvent, error) {
	runID := uuid.NewString()
	event := domain.RunEvent{RunID: runID, StartedAt: domain.Now()}
	logger := p.logger.With("run_id", runID)

	p.setProgress(func(pr *domain.RunProgress) {
		*pr = domain.RunProgress{RunID: runID, Stage: domain.StagePending, StartedAt: event.StartedAt}
	})
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)
	logger.Info("run started", "inputs", p.opts.InputsDir, "outputs", p.opts.OutputsDir)

	var (
		prep      *prepared
		artifacts []string
	)
	err := p.stage(ctx, logger, domain.StagePrepare, func(ctx context.Context) error {
		var err error
		prep, err = p.prepare(ctx, logger)
		return err
	})
	if err == nil {
		event.Domain = prep.model.Domain
		event.Run = prep.run
		event.Title = prep.run.Title()
		event.Description = prep.run.Description()
		p.ready.Store(true)

		err = p.stage(ctx, logger, domain.StageSolve, func(ctx context.Context) error {
			start := time.Now()
			err := p.solver.Run(ctx, p.opts.RunDir())
			event.SolverSeconds = time.Since(start).Seconds()
			p.metrics.SolverDuration.Observe(event.SolverSeconds)
			return err
		})
	}
	if err == nil {
		err = p.stage(ctx, logger, domain.StageDerive, func(_ context.Context) error {
			var err error
			artifacts, err = p.derive(prep, logger)
			return err
		})
	}

	event.Status = domain.RunSucceeded
	if err != nil {
		event.Status = domain.RunFailed
		event.Error = err.Error()
		p.ready.Store(false)
		p.setProgress(func(pr *domain.RunProgress) { pr.Error = err.Error() })
	}

	p.setProgress(func(pr *domain.RunProgress) { pr.Stage = domain.StagePublish })
	p.publish(ctx, logger, &event, artifacts)

	if err == nil {
		p.setProgress(func(pr *domain.RunProgress) { pr.Stage = domain.StageDone })
	}
	logger.Info("run finished", "status", event.Status, "artifacts", len(event.Artifacts))
	return event, err
}

// stage runs fn with timing, logging, and failure accounting.
func (p *Pipeline) stage(ctx context.Context, logger *slog.Logger, stage domain.Stage, fn func(context.Context) error) error {
	p.setProgress(func(pr *domain.RunProgress) { pr.Stage = stage })
	label := string(stage)
	logger.Info("stage started", "stage", label)
	start := time.Now()

	err := fn(ctx)
	elapsed := time.Since(start)
	p.metrics.StageDuration.WithLabelValues(label).Observe(elapsed.Seconds())
	if err != nil {
		p.metrics.StageFailures.WithLabelValues(label).Inc()
		logger.Error("stage failed", "stage", label, "error", err)
		return fmt.Errorf("%s: %w", label, err)
	}
	logger.Info("stage finished", "stage", label, "duration", elapsed)
	return nil
}

// publish uploads artifacts and announces the run. Failures here are
// logged and counted but never change the run outcome.
func (p *Pipeline) publish(ctx context.Context, logger *slog.Logger, event *domain.RunEvent, artifacts []string) {
	start := time.Now()
	defer func() {
		p.metrics.StageDuration.WithLabelValues(string(domain.StagePublish)).Observe(time.Since(start).Seconds())
	}()

	for _, a := range artifacts {
		event.Artifacts = append(event.Artifacts, filepath.Base(a))
	}
	if p.store != nil && len(artifacts) > 0 {
		keys, err := p.store.Upload(ctx, event.RunID, artifacts)
		if err != nil {
			p.metrics.StageFailures.WithLabelValues(string(domain.StagePublish)).Inc()
			logger.Warn("artifact upload failed", "error", err, "uploaded", len(keys))
		} else {
			event.Artifacts = keys
			logger.Info("artifacts uploaded", "count", len(keys))
		}
	}

	event.FinishedAt = domain.Now()
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx, *event); err != nil {
		p.metrics.RunsPublished.WithLabelValues("error").Inc()
		logger.Warn("publish run event failed", "error", err)
		return
	}
	p.metrics.RunsPublished.WithLabelValues("success").Inc()
}
