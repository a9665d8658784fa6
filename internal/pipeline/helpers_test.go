package pipeline_test

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/marine-qc/internal/climatology"
	"github.com/couchcryptid/marine-qc/internal/config"
	"github.com/couchcryptid/marine-qc/internal/domain"
	"github.com/couchcryptid/marine-qc/internal/observability"
	"github.com/couchcryptid/marine-qc/internal/pipeline"
)

const headerColumns = "report_id|primary_station_id|report_timestamp|latitude|longitude|report_quality|location_quality|report_time_quality|history"

var frozen = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// freezeClock pins history stamps for the duration of a test.
func freezeClock(t *testing.T) {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(frozen))
	t.Cleanup(func() { domain.SetClock(nil) })
}

// table builds a table from pipe-delimited lines, the first naming columns.
func table(t *testing.T, name string, lines ...string) *domain.Table {
	t.Helper()
	cols := strings.Split(lines[0], "|")
	rows := make([][]string, 0, len(lines)-1)
	for _, l := range lines[1:] {
		rows = append(rows, strings.Split(l, "|"))
	}
	tbl, err := domain.NewTable(name, cols, rows)
	require.NoError(t, err)
	return tbl
}

func partition(header *domain.Table, obs ...*domain.Table) *domain.Partition {
	return &domain.Partition{ID: "2020-01", Header: header, Observations: obs}
}

// fields serves climatology fields from memory keyed by file name.
type fields map[string]*climatology.Field

func (f fields) Field(ref climatology.Ref) (*climatology.Field, error) {
	if fld, ok := f[ref.File]; ok {
		return fld, nil
	}
	return climatology.Missing(), nil
}

func parseChecks(t *testing.T, doc string) *config.Checks {
	t.Helper()
	cfg, err := config.ParseChecks(strings.NewReader(doc))
	require.NoError(t, err)
	return cfg
}

func compile(t *testing.T, reg *pipeline.Registry, doc string) *pipeline.Plan {
	t.Helper()
	plan, err := pipeline.Compile(parseChecks(t, doc), reg, fields{})
	require.NoError(t, err)
	return plan
}

func newEngine(t *testing.T, reg *pipeline.Registry, doc string, opts ...pipeline.EngineOption) *pipeline.Engine {
	t.Helper()
	return pipeline.NewEngine(compile(t, reg, doc), discardLogger(), observability.NewMetricsForTesting(), opts...)
}

// cell reads column c of report id in the named table.
func cell(t *testing.T, p *domain.Partition, tableName, id, c string) string {
	t.Helper()
	tbl, ok := p.Table(tableName)
	require.True(t, ok, "table %s", tableName)
	i, ok := tbl.Lookup(id)
	require.True(t, ok, "report %s", id)
	return tbl.Cell(i, c)
}
