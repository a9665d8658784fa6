package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/marine-qc/internal/domain"
	"github.com/couchcryptid/marine-qc/internal/observability"
)

// Extractor reads one partition by id.
type Extractor interface {
	Extract(ctx context.Context, id string) (*domain.Partition, error)
}

// Loader writes a checked partition to its destination.
type Loader interface {
	Load(ctx context.Context, res *Result) error
}

// SummaryPublisher announces the summary of a checked partition.
type SummaryPublisher interface {
	Publish(ctx context.Context, s domain.Summary) error
}

// FlagSink stores the quality column changes of a checked partition.
type FlagSink interface {
	WriteChanges(ctx context.Context, changes []domain.FlagChange) error
}

// Pipeline drives the extract-check-load cycle over a list of partitions.
type Pipeline struct {
	extractor Extractor
	engine    *Engine
	loader    Loader
	publisher SummaryPublisher
	sink      FlagSink
	reference *domain.Partition
	runID     string
	progress  func(id string, err error)
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool

	mu     sync.Mutex
	status Status
}

// Status is the progress of a run.
type Status struct {
	RunID     string          `json:"run_id"`
	Total     int             `json:"total"`
	Processed int             `json:"processed"`
	Failed    int             `json:"failed"`
	Last      *domain.Summary `json:"last,omitempty"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPublisher publishes every partition summary through sp.
func WithPublisher(sp SummaryPublisher) Option {
	return func(p *Pipeline) { p.publisher = sp }
}

// WithFlagSink stores every flag change in s.
func WithFlagSink(s FlagSink) Option {
	return func(p *Pipeline) { p.sink = s }
}

// WithReference supplies the reference rows used by grouped checks.
func WithReference(ref *domain.Partition) Option {
	return func(p *Pipeline) { p.reference = ref }
}

// WithRunID stamps summaries and flag changes with id.
func WithRunID(id string) Option {
	return func(p *Pipeline) { p.runID = id }
}

// WithProgress calls fn after each partition.
func WithProgress(fn func(id string, err error)) Option {
	return func(p *Pipeline) { p.progress = fn }
}

// New creates a Pipeline with the given stages and observability.
func New(e Extractor, engine *Engine, l Loader, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor: e,
		engine:    engine,
		loader:    l,
		logger:    logger,
		metrics:   metrics,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// CheckReadiness returns nil once at least one partition has been written.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not processed any partitions yet")
	}
	return nil
}

// Status returns the progress of the current or last run.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Pipeline) record(s *domain.Summary, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.Processed++
	if err != nil {
		p.status.Failed++
		return
	}
	p.status.Last = s
}

// Run processes the partitions in order. A failed partition is logged and
// the run continues; the errors of every failed partition are returned
// together. Cancelling ctx stops the run before the next partition.
func (p *Pipeline) Run(ctx context.Context, ids []string) error {
	p.logger.Info("pipeline started", "partitions", len(ids), "run_id", p.runID,
		"failure_policy", p.engine.policy.String())
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)
	p.mu.Lock()
	p.status = Status{RunID: p.runID, Total: len(ids)}
	p.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			p.logger.Info("pipeline stopping", "reason", err)
			errs = append(errs, err)
			break
		}
		sum, err := p.processPartition(ctx, id)
		p.record(sum, err)
		if err != nil {
			p.logger.Error("partition failed", "partition", id, "error", err)
			p.metrics.PartitionsProcessed.WithLabelValues("error").Inc()
			errs = append(errs, fmt.Errorf("partition %s: %w", id, err))
		} else {
			p.metrics.PartitionsProcessed.WithLabelValues("ok").Inc()
		}
		if p.progress != nil {
			p.progress(id, err)
		}
	}
	return errors.Join(errs...)
}

// processPartition runs one extract-check-load cycle. Publishing and sink
// failures are logged and do not fail the partition once it is written.
func (p *Pipeline) processPartition(ctx context.Context, id string) (*domain.Summary, error) {
	start := time.Now()

	part, err := p.extractor.Extract(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	res, err := p.engine.Process(ctx, part, p.reference)
	if err != nil {
		return nil, err
	}
	res.Summary.RunID = p.runID
	for i := range res.Changes {
		res.Changes[i].RunID = p.runID
	}
	if err := p.loader.Load(ctx, res); err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	p.ready.Store(true)
	p.metrics.PartitionDuration.Observe(time.Since(start).Seconds())

	if p.sink != nil && len(res.Changes) > 0 {
		if err := p.sink.WriteChanges(ctx, res.Changes); err != nil {
			p.logger.Warn("write flag changes failed", "partition", id, "changes", len(res.Changes), "error", err)
		}
	}
	if p.publisher != nil {
		if err := p.publisher.Publish(ctx, res.Summary); err != nil {
			p.logger.Warn("publish summary failed", "partition", id, "error", err)
			p.metrics.SummariesPublished.WithLabelValues("error").Inc()
		} else {
			p.metrics.SummariesPublished.WithLabelValues("success").Inc()
		}
	}
	return &res.Summary, nil
}
