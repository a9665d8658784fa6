package psv

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/couchcryptid/marine-qc/internal/domain"
	"github.com/couchcryptid/marine-qc/internal/pipeline"
)

// AuditFile names the flag change CSV written next to partition id.
func AuditFile(id string) string {
	return "flags-" + id + ".csv"
}

// Writer stores checked partitions in a directory.
// It implements pipeline.Loader.
type Writer struct {
	dir    string
	audit  bool
	logger *slog.Logger
}

// NewWriter writes partitions under dir, creating it when needed. With audit
// set each partition also gets a CSV of its flag changes.
func NewWriter(dir string, audit bool, logger *slog.Logger) *Writer {
	return &Writer{dir: dir, audit: audit, logger: logger}
}

// Load writes every table of the checked partition.
func (w *Writer) Load(ctx context.Context, res *pipeline.Result) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	p := res.Partition
	if err := writeFile(filepath.Join(w.dir, HeaderFile(p.ID)), p.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, t := range p.Observations {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeFile(filepath.Join(w.dir, ObservationFile(t.Name, p.ID)), t); err != nil {
			return fmt.Errorf("write %s: %w", t.Name, err)
		}
	}
	if w.audit {
		if err := WriteAudit(filepath.Join(w.dir, AuditFile(p.ID)), res.Changes); err != nil {
			return err
		}
	}
	w.logger.Debug("partition written", "partition", p.ID, "tables", len(p.Observations)+1, "changes", len(res.Changes))
	return nil
}

// WriteAudit exports flag changes as CSV with a header line.
func WriteAudit(path string, changes []domain.FlagChange) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create audit: %w", err)
	}
	if changes == nil {
		changes = []domain.FlagChange{}
	}
	if err := gocsv.MarshalFile(&changes, f); err != nil {
		f.Close()
		return fmt.Errorf("write audit: %w", err)
	}
	return f.Close()
}

// ReadAudit loads an audit file written by WriteAudit.
func ReadAudit(path string) ([]domain.FlagChange, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audit: %w", err)
	}
	defer f.Close()
	var changes []domain.FlagChange
	if err := gocsv.UnmarshalFile(f, &changes); err != nil {
		return nil, fmt.Errorf("read audit: %w", err)
	}
	return changes, nil
}
