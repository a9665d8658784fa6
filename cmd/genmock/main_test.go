package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/marine-qc/internal/adapter/psv"
	"github.com/couchcryptid/marine-qc/internal/domain"
)

func defaults() args {
	return args{Month: "2020-02", Ships: 4, Reports: 20, Tables: []string{"sst", "at"}, FaultRate: 0.2, Seed: 3}
}

func TestGenerate_Deterministic(t *testing.T) {
	a, err := generate(defaults())
	require.NoError(t, err)
	b, err := generate(defaults())
	require.NoError(t, err)

	assert.Equal(t, a.header, b.header)
	assert.Len(t, a.header, 80)
	assert.Len(t, a.observations["at"], 80)
	assert.Equal(t, domain.ReportQualityBlacklisted, a.header[0].ReportQuality)
	assert.Equal(t, "SHIP", a.header[20].StationID)
}

func TestGenerate_Invalid(t *testing.T) {
	cases := map[string]func(*args){
		"month":     func(a *args) { a.Month = "2020/02" },
		"no ships":  func(a *args) { a.Ships = 0 },
		"too many":  func(a *args) { a.Reports = 200 },
		"bad table": func(a *args) { a.Tables = []string{"wind"} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			a := defaults()
			mutate(&a)
			_, err := generate(a)
			assert.Error(t, err)
		})
	}
}

func TestRun_WritesReadablePartition(t *testing.T) {
	a := defaults()
	a.Out = t.TempDir()
	require.NoError(t, run(a))

	p, err := psv.NewReader(a.Out, nil, slog.New(slog.NewTextHandler(io.Discard, nil))).
		Extract(context.Background(), "2020-02")
	require.NoError(t, err)
	require.NoError(t, p.Validate())
	assert.Equal(t, []string{"at", "sst"}, p.TableNames())
	assert.Equal(t, 80, p.Header.Len())
	assert.True(t, p.Header.HasColumn(domain.ColHistory))
}
