package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/marine-qc/internal/domain"
	"github.com/couchcryptid/marine-qc/internal/observability"
	"github.com/couchcryptid/marine-qc/internal/pipeline"
)

// --- mocks ---

type mockExtractor struct {
	partitions map[string]func(t *testing.T) *domain.Partition
	t          *testing.T
}

func (m *mockExtractor) Extract(_ context.Context, id string) (*domain.Partition, error) {
	build, ok := m.partitions[id]
	if !ok {
		return nil, fmt.Errorf("no partition %s", id)
	}
	p := build(m.t)
	p.ID = id
	return p, nil
}

type mockLoader struct {
	loaded []*pipeline.Result
	err    error
}

func (m *mockLoader) Load(_ context.Context, res *pipeline.Result) error {
	if m.err != nil {
		return m.err
	}
	m.loaded = append(m.loaded, res)
	return nil
}

type mockPublisher struct {
	summaries []domain.Summary
	err       error
}

func (m *mockPublisher) Publish(_ context.Context, s domain.Summary) error {
	m.summaries = append(m.summaries, s)
	return m.err
}

type mockSink struct {
	changes []domain.FlagChange
}

func (m *mockSink) WriteChanges(_ context.Context, changes []domain.FlagChange) error {
	m.changes = append(m.changes, changes...)
	return nil
}

func newExtractor(t *testing.T) *mockExtractor {
	return &mockExtractor{t: t, partitions: map[string]func(*testing.T) *domain.Partition{
		"2020-01": individualPartition,
		"2020-02": individualPartition,
	}}
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	engine := pipeline.NewEngine(compile(t, pipeline.DefaultRegistry(), individualChecks), discardLogger(), metrics)
	ldr := &mockLoader{}
	pub := &mockPublisher{}
	sink := &mockSink{}
	var progressed []string

	p := pipeline.New(newExtractor(t), engine, ldr, discardLogger(), metrics,
		pipeline.WithPublisher(pub),
		pipeline.WithFlagSink(sink),
		pipeline.WithRunID("run-1"),
		pipeline.WithProgress(func(id string, err error) {
			assert.NoError(t, err)
			progressed = append(progressed, id)
		}),
	)
	require.Error(t, p.CheckReadiness(context.Background()))

	err := p.Run(context.Background(), []string{"2020-01", "2020-02"})
	require.NoError(t, err)

	assert.Len(t, ldr.loaded, 2)
	assert.Equal(t, []string{"2020-01", "2020-02"}, progressed)
	require.Len(t, pub.summaries, 2)
	assert.Equal(t, "run-1", pub.summaries[0].RunID)
	assert.Equal(t, "2020-02", pub.summaries[1].Partition)
	require.Len(t, sink.changes, 12)
	assert.Equal(t, "run-1", sink.changes[0].RunID)
	require.NoError(t, p.CheckReadiness(context.Background()))
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.PartitionsProcessed.WithLabelValues("ok")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.PipelineRunning), 0)

	st := p.Status()
	assert.Equal(t, "run-1", st.RunID)
	assert.Equal(t, 2, st.Total)
	assert.Equal(t, 2, st.Processed)
	require.NotNil(t, st.Last)
	assert.Equal(t, "2020-02", st.Last.Partition)
}

func TestPipeline_Run_ContinuesPastFailedPartition(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	engine := pipeline.NewEngine(compile(t, pipeline.DefaultRegistry(), individualChecks), discardLogger(), metrics)
	ldr := &mockLoader{}

	p := pipeline.New(newExtractor(t), engine, ldr, discardLogger(), metrics)

	err := p.Run(context.Background(), []string{"missing", "2020-02"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "partition missing")
	assert.Len(t, ldr.loaded, 1)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.PartitionsProcessed.WithLabelValues("error")), 0)
	assert.Equal(t, 1, p.Status().Failed)
	assert.Equal(t, 2, p.Status().Processed)
}

func TestPipeline_Run_LoadError(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	engine := pipeline.NewEngine(compile(t, pipeline.DefaultRegistry(), individualChecks), discardLogger(), metrics)
	pub := &mockPublisher{}

	p := pipeline.New(newExtractor(t), engine, &mockLoader{err: errors.New("disk full")}, discardLogger(), metrics,
		pipeline.WithPublisher(pub))

	err := p.Run(context.Background(), []string{"2020-01"})
	require.ErrorContains(t, err, "disk full")
	assert.Empty(t, pub.summaries, "nothing is published for an unwritten partition")
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_PublishErrorIsNotFatal(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	engine := pipeline.NewEngine(compile(t, pipeline.DefaultRegistry(), individualChecks), discardLogger(), metrics)
	ldr := &mockLoader{}

	p := pipeline.New(newExtractor(t), engine, ldr, discardLogger(), metrics,
		pipeline.WithPublisher(&mockPublisher{err: errors.New("broker down")}))

	require.NoError(t, p.Run(context.Background(), []string{"2020-01"}))
	assert.Len(t, ldr.loaded, 1)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.SummariesPublished.WithLabelValues("error")), 0)
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	engine := pipeline.NewEngine(compile(t, pipeline.DefaultRegistry(), individualChecks), discardLogger(), metrics)
	ldr := &mockLoader{}
	p := pipeline.New(newExtractor(t), engine, ldr, discardLogger(), metrics)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Run(ctx, []string{"2020-01"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, ldr.loaded)
}
