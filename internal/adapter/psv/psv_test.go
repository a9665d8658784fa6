package psv_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/marine-qc/internal/adapter/psv"
	"github.com/couchcryptid/marine-qc/internal/domain"
	"github.com/couchcryptid/marine-qc/internal/pipeline"
)

const (
	headerPSV = `report_id|primary_station_id|report_timestamp|latitude|longitude|report_quality|location_quality|report_time_quality|history
R1|SHIPA|2020-01-01 00:00:00|10.5|20|0|0|0|
R2|SHIPB|2020-01-01 06:00:00|null|20|0|0|0|first pass
`
	sstPSV = `report_id|observation_value|quality_flag|note
R1|290.15|0|"quoted|cell"
R2||0|
`
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	}
}

func TestReadTable(t *testing.T) {
	tbl, err := psv.ReadTable(strings.NewReader(sstPSV), "sst")
	require.NoError(t, err)

	assert.Equal(t, []string{"report_id", "observation_value", "quality_flag", "note"}, tbl.Columns)
	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, "quoted|cell", tbl.Cell(0, "note"))
	assert.InDelta(t, 290.15, tbl.Float(0, "observation_value"), 1e-9)
	i, ok := tbl.Lookup("R2")
	require.True(t, ok)
	assert.Empty(t, tbl.Cell(i, "observation_value"))
}

func TestReadTable_Errors(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"ragged row":     "report_id|a\nR1|1|2\n",
		"no report_id":   "id|a\nR1|1\n",
		"duplicate rows": "report_id|a\nR1|1\nR1|2\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := psv.ReadTable(strings.NewReader(body), "sst")
			assert.Error(t, err)
		})
	}
}

func TestWriteTable_RoundTrip(t *testing.T) {
	tbl, err := psv.ReadTable(strings.NewReader(sstPSV), "sst")
	require.NoError(t, err)

	var b strings.Builder
	require.NoError(t, psv.WriteTable(&b, tbl))

	again, err := psv.ReadTable(strings.NewReader(b.String()), "sst")
	require.NoError(t, err)
	assert.Equal(t, tbl.Rows, again.Rows)
	assert.True(t, strings.HasPrefix(b.String(), "report_id|observation_value|quality_flag|note\n"))
}

func TestPartitionIDs(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"header-2020-01.psv":                "",
		"header-2020-02.psv":                "",
		"2021/header-2021-01.psv":           "",
		"observations-sst-2020-01.psv":      "",
		"notes.txt":                         "",
		"2021/observations-sst-2021-01.psv": "",
	})

	ids, err := psv.PartitionIDs(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"2020-01", "2020-02"}, ids)

	ids, err = psv.PartitionIDs(dir, "**/header-*.psv")
	require.NoError(t, err)
	assert.Equal(t, []string{"2020-01", "2020-02", "2021-01"}, ids)
}

func TestReader_Extract(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		psv.HeaderFile("2020-01"):             headerPSV,
		psv.ObservationFile("sst", "2020-01"): sstPSV,
		psv.ObservationFile("at", "2020-01"):  "report_id|observation_value|quality_flag\nR1|285|0\n",
		psv.ObservationFile("sst", "2020-02"): sstPSV,
		"observations-sst-extra-2020-01.psv":  sstPSV,
	})

	p, err := psv.NewReader(dir, nil, discardLogger()).Extract(context.Background(), "2020-01")
	require.NoError(t, err)
	assert.Equal(t, "2020-01", p.ID)
	assert.Equal(t, 2, p.Header.Len())
	assert.Equal(t, []string{"at", "sst"}, p.TableNames())
	require.NoError(t, p.Validate())

	p, err = psv.NewReader(dir, []string{"sst"}, discardLogger()).Extract(context.Background(), "2020-01")
	require.NoError(t, err)
	assert.Equal(t, []string{"sst"}, p.TableNames())

	_, err = psv.NewReader(dir, nil, discardLogger()).Extract(context.Background(), "1999-01")
	assert.ErrorContains(t, err, "read header")
}

func TestWriter_Load(t *testing.T) {
	in, out := t.TempDir(), filepath.Join(t.TempDir(), "out")
	writeFiles(t, in, map[string]string{
		psv.HeaderFile("2020-01"):             headerPSV,
		psv.ObservationFile("sst", "2020-01"): sstPSV,
	})
	p, err := psv.NewReader(in, nil, discardLogger()).Extract(context.Background(), "2020-01")
	require.NoError(t, err)

	sst, _ := p.Table("sst")
	sst.SetCell(0, domain.ColQualityFlag, "1")
	changes := []domain.FlagChange{{
		RunID: "run-1", Partition: "2020-01", Table: "sst", ReportID: "R1",
		Column: domain.ColQualityFlag, Stage: "individual", Check: "hard_limit", From: "0", To: 1,
	}}

	w := psv.NewWriter(out, true, discardLogger())
	require.NoError(t, w.Load(context.Background(), &pipeline.Result{Partition: p, Changes: changes}))

	back, err := psv.NewReader(out, nil, discardLogger()).Extract(context.Background(), "2020-01")
	require.NoError(t, err)
	sst, _ = back.Table("sst")
	assert.Equal(t, "1", sst.Cell(0, domain.ColQualityFlag))
	assert.Equal(t, "quoted|cell", sst.Cell(0, "note"))
	assert.Equal(t, "first pass", back.Header.Cell(1, domain.ColHistory))

	audit, err := psv.ReadAudit(filepath.Join(out, psv.AuditFile("2020-01")))
	require.NoError(t, err)
	assert.Equal(t, changes, audit)
}

func TestReadReference(t *testing.T) {
	dir := t.TempDir()
	cols := "report_id|observation_value|quality_flag\n"
	writeFiles(t, dir, map[string]string{
		"2020/observations-sst-2020-01.psv": cols + "B1|290|0\n",
		"2020/observations-sst-2020-02.psv": cols + "B2|291|1\n",
		"observations-at-2020-01.psv":       cols + "B3|280|0\n",
	})

	ref, err := psv.ReadReference(dir, "sst")
	require.NoError(t, err)
	assert.Nil(t, ref.Header)
	tbl, ok := ref.Table("sst")
	require.True(t, ok)
	assert.Equal(t, 2, tbl.Len())

	_, err = psv.ReadReference(dir, "dpt")
	assert.ErrorContains(t, err, "no dpt tables")

	writeFiles(t, dir, map[string]string{"observations-sst-2020-03.psv": "report_id|quality_flag\nB4|0\n"})
	_, err = psv.ReadReference(dir, "sst")
	assert.ErrorContains(t, err, "differ")
}
