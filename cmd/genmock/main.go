// Command genmock writes a synthetic partition of ship tracks as psv files
// for local runs and tests. Faults are injected at a configurable rate so
// that every stage of the checks has something to flag.
//
// Usage:
//
//	go run ./cmd/genmock --out data/ --month 2020-01 --ships 20 --seed 7
package main

import (
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/gocarina/gocsv"

	"github.com/couchcryptid/marine-qc/internal/adapter/psv"
	"github.com/couchcryptid/marine-qc/internal/domain"
)

type args struct {
	Out       string   `arg:"--out,required" help:"directory the partition is written to"`
	Month     string   `arg:"--month" default:"2020-01" help:"partition month as YYYY-MM"`
	Ships     int      `arg:"--ships" default:"10" help:"number of ship tracks"`
	Reports   int      `arg:"--reports" default:"40" help:"reports per ship, six hours apart"`
	Tables    []string `arg:"--table,separate" help:"observation table to write; repeatable (default: sst, at, dpt)"`
	FaultRate float64  `arg:"--fault-rate" default:"0.05" help:"share of reports with an injected fault"`
	Seed      uint64   `arg:"--seed" default:"1" help:"random seed"`
}

type headerRow struct {
	ReportID        string  `csv:"report_id"`
	StationID       string  `csv:"primary_station_id"`
	Timestamp       string  `csv:"report_timestamp"`
	Latitude        float64 `csv:"latitude"`
	Longitude       float64 `csv:"longitude"`
	ReportQuality   int     `csv:"report_quality"`
	LocationQuality int     `csv:"location_quality"`
	TimeQuality     int     `csv:"report_time_quality"`
	History         string  `csv:"history"`
}

type observationRow struct {
	ReportID    string  `csv:"report_id"`
	Value       string  `csv:"observation_value"`
	Latitude    float64 `csv:"latitude"`
	Longitude   float64 `csv:"longitude"`
	DateTime    string  `csv:"date_time"`
	QualityFlag int     `csv:"quality_flag"`
}

// mock is one generated partition.
type mock struct {
	id           string
	header       []headerRow
	observations map[string][]observationRow
}

// baseValue is the climatological centre of each table, in the units the
// checks expect.
var baseValue = map[string]float64{
	"sst": 18,
	"at":  17,
	"dpt": 13,
	"slp": 1013,
}

func main() {
	var a args
	arg.MustParse(&a)
	if err := run(a); err != nil {
		log.Fatal(err)
	}
}

func run(a args) error {
	m, err := generate(a)
	if err != nil {
		return err
	}
	if err := write(a.Out, m); err != nil {
		return err
	}
	log.Printf("partition %s: %d reports, %d tables", m.id, len(m.header), len(m.observations))
	return nil
}

func generate(a args) (*mock, error) {
	start, err := time.Parse("2006-01", a.Month)
	if err != nil {
		return nil, fmt.Errorf("invalid month %q: %w", a.Month, err)
	}
	if a.Ships <= 0 || a.Reports <= 0 {
		return nil, fmt.Errorf("ships and reports must be positive")
	}
	if maxReports := start.AddDate(0, 1, 0).Sub(start) / (6 * time.Hour); a.Reports > int(maxReports) {
		return nil, fmt.Errorf("%d reports six hours apart do not fit in %s", a.Reports, a.Month)
	}
	if len(a.Tables) == 0 {
		a.Tables = []string{"sst", "at", "dpt"}
	}
	for _, t := range a.Tables {
		if _, ok := baseValue[t]; !ok {
			return nil, fmt.Errorf("unknown table %q", t)
		}
	}

	rng := rand.New(rand.NewPCG(a.Seed, a.Seed^0x9e3779b97f4a7c15))
	m := &mock{id: a.Month, observations: make(map[string][]observationRow, len(a.Tables))}

	for s := range a.Ships {
		station := fmt.Sprintf("SHIP%03d", s+1)
		quality := domain.ReportQualityPassed
		switch {
		case s == 0 && a.Ships > 2:
			quality = domain.ReportQualityBlacklisted
		case s == 1 && a.Ships > 2:
			station = "SHIP"
		}

		lat := rng.Float64()*100 - 50
		lon := rng.Float64() * 360
		heading := rng.Float64() * 2 * math.Pi
		// Degrees per six hours at roughly 12 knots.
		step := 72.0 / 60

		for r := range a.Reports {
			id := fmt.Sprintf("%s-%04d", station, r+1)
			ts := start.Add(time.Duration(r) * 6 * time.Hour)
			lat = math.Max(-80, math.Min(80, lat+step*math.Cos(heading)))
			lon = math.Mod(lon+step*math.Sin(heading)+360, 360)

			h := headerRow{
				ReportID:      id,
				StationID:     station,
				Timestamp:     ts.Format(domain.TimeLayout),
				Latitude:      round(lat, 2),
				Longitude:     round(lon, 2),
				ReportQuality: quality,
			}
			fault := rng.Float64() < a.FaultRate
			if fault && rng.IntN(2) == 0 {
				h.Latitude = 91 + rng.Float64()*5
			}
			m.header = append(m.header, h)

			for _, t := range a.Tables {
				v := baseValue[t] - math.Abs(lat)/10 + rng.NormFloat64()
				value := strconv.FormatFloat(round(v, 1), 'f', 1, 64)
				if fault && rng.IntN(2) == 0 {
					switch rng.IntN(2) {
					case 0:
						value = ""
					default:
						value = strconv.FormatFloat(baseValue[t]+80, 'f', 1, 64)
					}
				}
				m.observations[t] = append(m.observations[t], observationRow{
					ReportID:  id,
					Value:     value,
					Latitude:  h.Latitude,
					Longitude: h.Longitude,
					DateTime:  h.Timestamp,
				})
			}
		}
	}
	return m, nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func write(dir string, m *mock) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := writeRows(filepath.Join(dir, psv.HeaderFile(m.id)), &m.header); err != nil {
		return err
	}
	for t, rows := range m.observations {
		if err := writeRows(filepath.Join(dir, psv.ObservationFile(t, m.id)), &rows); err != nil {
			return err
		}
	}
	return nil
}

func writeRows(path string, rows any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	w.Comma = psv.Sep
	if err := gocsv.MarshalCSV(rows, gocsv.NewSafeCSVWriter(w)); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
