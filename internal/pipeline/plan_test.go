package pipeline_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/marine-qc/internal/climatology"
	"github.com/couchcryptid/marine-qc/internal/domain"
	"github.com/couchcryptid/marine-qc/internal/observability"
	"github.com/couchcryptid/marine-qc/internal/pipeline"
)

func TestCompile_Errors(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want error
	}{
		{
			name: "unknown function",
			doc: `
individual:
  observations:
    sst:
      x: {func: no_such_check, names: {value: observation_value}}
`,
			want: pipeline.ErrUnknownCheck,
		},
		{
			name: "unknown input",
			doc: `
individual:
  observations:
    sst:
      x: {func: value_check, names: {value: observation_value, other: y}}
`,
			want: pipeline.ErrUnknownInput,
		},
		{
			name: "missing input",
			doc: `
individual:
  observations:
    sst:
      x: {func: hard_limit_check, arguments: {limits: [0, 1]}}
`,
			want: pipeline.ErrMissingInput,
		},
		{
			name: "unknown argument",
			doc: `
individual:
  observations:
    sst:
      x: {func: hard_limit_check, names: {value: v}, arguments: {limits: [0, 1], lmits: 2}}
`,
			want: pipeline.ErrInvalidArguments,
		},
		{
			name: "undeclared table",
			doc: `
tables: [sst]
individual:
  observations:
    at:
      x: {func: value_check, names: {value: observation_value}}
`,
			want: pipeline.ErrUnknownTable,
		},
		{
			name: "track check in individual stage",
			doc: `
individual:
  observations:
    sst:
      x: {func: speed_check, names: {lat: latitude, lon: longitude, date: date_time}}
`,
			want: pipeline.ErrWrongStage,
		},
		{
			name: "combined sequential",
			doc: `
sequential:
  observations:
    at:
      x: {func: saturated_runs_check, names: {at: at.observation_value, dpt: dpt.observation_value, date: date_time}}
`,
			want: pipeline.ErrCombinedSequential,
		},
		{
			name: "header check without target",
			doc: `
individual:
  header:
    x: {func: hard_limit_check, names: {value: latitude}, arguments: {limits: [-90, 90]}}
`,
			want: pipeline.ErrInvalidArguments,
		},
		{
			name: "unknown climatology",
			doc: `
individual:
  observations:
    sst:
      x:
        func: climatology_check
        names: {value: observation_value, lat: latitude, lon: longitude, date: date_time}
        arguments: {climatology: sst_mean}
`,
			want: pipeline.ErrUnknownClimatology,
		},
		{
			name: "divide by zero",
			doc: `
individual:
  preprocessing:
    sst: {observation_value: {op: "/", operand: 0}}
`,
			want: pipeline.ErrInvalidArguments,
		},
		{
			name: "reference without grouped checks",
			doc: `
grouped:
  reference: {table: sst, path: buoys}
`,
			want: pipeline.ErrUnknownTable,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := pipeline.Compile(parseChecks(t, tc.doc), pipeline.DefaultRegistry(), fields{})
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestCompile_ReportsEveryError(t *testing.T) {
	_, err := pipeline.Compile(parseChecks(t, `
individual:
  observations:
    sst:
      a: {func: no_such_check}
      b: {func: value_check}
`), pipeline.DefaultRegistry(), fields{})
	require.ErrorIs(t, err, pipeline.ErrUnknownCheck)
	require.ErrorIs(t, err, pipeline.ErrMissingInput)
	assert.Contains(t, err.Error(), "individual.observations.sst.a")
	assert.Contains(t, err.Error(), "individual.observations.sst.b")
}

func TestCompile_Climatology(t *testing.T) {
	mean, err := climatology.NewField(1, 180, 360, make([]float64, 180*360))
	require.NoError(t, err)

	plan, err := pipeline.Compile(parseChecks(t, `
climatologies:
  sst_mean: {file: mean.nc, variable: sst}
individual:
  observations:
    sst:
      x:
        func: climatology_check
        names: {value: observation_value, lat: latitude, lon: longitude, date: date_time}
        arguments: {climatology: sst_mean, limit: 5}
`), pipeline.DefaultRegistry(), fields{"mean.nc": mean})
	require.NoError(t, err)
	assert.Nil(t, plan.Reference())

	e := pipeline.NewEngine(plan, discardLogger(), observability.NewMetricsForTesting())
	p := partition(
		table(t, domain.HeaderTable, headerColumns,
			"R1|SHIPA|2020-01-01 00:00:00|10|20|0|0|0|",
			"R2|SHIPA|2020-01-01 06:00:00|10|20|0|0|0|",
		),
		table(t, "sst", "report_id|observation_value|latitude|longitude|date_time|quality_flag",
			"R1|10|10|20|2020-01-01 00:00:00|0",
			"R2|2|10|20|2020-01-01 06:00:00|0",
		),
	)
	res, err := e.Process(context.Background(), p, nil)
	require.NoError(t, err)
	assert.Equal(t, "1", cell(t, res.Partition, "sst", "R1", domain.ColQualityFlag))
	assert.Equal(t, "0", cell(t, res.Partition, "sst", "R2", domain.ColQualityFlag))
}

func TestRegistry_Register(t *testing.T) {
	reg := pipeline.NewRegistry()
	row := func(pipeline.Args, pipeline.Env) (pipeline.RowCheck, error) { return nil, nil }

	require.NoError(t, reg.Register("a", pipeline.Definition{Row: row}))
	assert.Error(t, reg.Register("a", pipeline.Definition{Row: row}), "duplicate")
	assert.Error(t, reg.Register("b", pipeline.Definition{}), "no factory")

	_, ok := reg.Lookup("a")
	assert.True(t, ok)
	assert.Equal(t, []string{"a"}, reg.Names())
}

func TestDefaultRegistry_Names(t *testing.T) {
	names := pipeline.DefaultRegistry().Names()
	for _, n := range []string{
		"hard_limit_check", "climatology_plus_stdev_check", "position_check", "speed_check",
		"sst_tail_check", "mds_buddy_check", "bayesian_buddy_check",
	} {
		assert.Contains(t, names, n)
	}
}
