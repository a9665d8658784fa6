// Command marineqc runs the configured quality control checks over
// partitions stored as psv files and writes the flagged partitions to an
// output directory.
//
// Usage:
//
//	marineqc -o checked/ data/
//	marineqc -o checked/ --glob '**/header-2020-*.psv' --audit data/
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alexflint/go-arg"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"

	httpadapter "github.com/couchcryptid/marine-qc/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/marine-qc/internal/adapter/kafka"
	"github.com/couchcryptid/marine-qc/internal/adapter/postgres"
	"github.com/couchcryptid/marine-qc/internal/adapter/psv"
	"github.com/couchcryptid/marine-qc/internal/climatology"
	"github.com/couchcryptid/marine-qc/internal/config"
	"github.com/couchcryptid/marine-qc/internal/observability"
	"github.com/couchcryptid/marine-qc/internal/pipeline"
)

type args struct {
	Input      string   `arg:"positional,required" help:"directory holding the partition files"`
	Output     string   `arg:"-o,--output,required" help:"directory the checked partitions are written to"`
	Glob       string   `arg:"--glob" default:"header-*.psv" help:"header files to check, relative to the input directory"`
	Partitions []string `arg:"-p,--partition,separate" help:"partition id to check; repeatable, overrides --glob"`
	Tables     []string `arg:"-t,--table,separate" help:"observation table to load; repeatable (default: all)"`
	Audit      bool     `arg:"--audit" help:"write a CSV of flag changes next to each partition"`
	EnvFile    string   `arg:"--env" default:".env" help:"environment file loaded before the configuration"`
	NoProgress bool     `arg:"--no-progress" help:"hide the progress bar"`
}

func (args) Description() string {
	return "Marine observation quality control over psv partitions."
}

func main() {
	var a args
	arg.MustParse(&a)

	if err := godotenv.Load(a.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("failed to load env file", "path", a.EnvFile, "error", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, a, cfg, logger, metrics); err != nil {
		logger.Error("marineqc failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, a args, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
	checks, err := config.LoadChecks(cfg.ChecksFile)
	if err != nil {
		return err
	}
	store := climatology.NewStore(cfg.ClimatologyDir, climatology.NetCDFLoader{}, cfg.ClimatologyCacheSize, logger,
		climatology.WithCacheCounter(metrics.ClimatologyCache))
	plan, err := pipeline.Compile(checks, pipeline.DefaultRegistry(), store)
	if err != nil {
		return fmt.Errorf("compile %s: %w", cfg.ChecksFile, err)
	}
	if missing := store.Fallbacks(); len(missing) > 0 {
		logger.Warn("checks on missing climatologies leave rows untested", "climatologies", len(missing))
	}
	policy, err := pipeline.ParseFailurePolicy(cfg.FailurePolicy)
	if err != nil {
		return err
	}
	engine := pipeline.NewEngine(plan, logger, metrics, pipeline.WithFailurePolicy(policy))

	ids := a.Partitions
	if len(ids) == 0 {
		ids, err = psv.PartitionIDs(a.Input, a.Glob)
		if err != nil {
			return err
		}
	}
	if len(ids) == 0 {
		return fmt.Errorf("no partitions match %s in %s", a.Glob, a.Input)
	}

	runID := uuid.NewString()
	opts := []pipeline.Option{pipeline.WithRunID(runID)}

	if r := plan.Reference(); r != nil {
		path := r.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(filepath.Dir(cfg.ChecksFile), path)
		}
		ref, err := psv.ReadReference(path, r.Table)
		if err != nil {
			return err
		}
		logger.Info("reference data loaded", "table", r.Table, "path", path)
		opts = append(opts, pipeline.WithReference(ref))
	}

	if cfg.PublishEnabled() {
		publisher := kafkaadapter.NewPublisher(cfg, logger)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Error("kafka publisher close error", "error", err)
			}
		}()
		opts = append(opts, pipeline.WithPublisher(publisher))
		logger.Info("summary publishing enabled", "topic", cfg.KafkaSummaryTopic)
	}

	if cfg.DatabaseURL != "" {
		sink, pool, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.PublishRetries, logger)
		if err != nil {
			return err
		}
		defer pool.Close()
		opts = append(opts, pipeline.WithFlagSink(sink))
		logger.Info("postgres flag sink enabled")
	}

	if !a.NoProgress {
		bar := newBar(len(ids))
		opts = append(opts, pipeline.WithProgress(func(string, error) { _ = bar.Add(1) }))
	}

	p := pipeline.New(
		psv.NewReader(a.Input, a.Tables, logger),
		engine,
		psv.NewWriter(a.Output, a.Audit, logger),
		logger, metrics, opts...,
	)

	if cfg.HTTPAddr != "" {
		srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
		}()
	}

	err = p.Run(ctx, ids)
	st := p.Status()
	logger.Info("run complete", "run_id", runID, "partitions", st.Processed, "failed", st.Failed)
	return err
}

func newBar(size int) *progressbar.ProgressBar {
	return progressbar.NewOptions(size,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
		progressbar.OptionSetDescription("partitions"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
