package psv

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/couchcryptid/marine-qc/internal/domain"
)

// Reader loads partitions from a directory.
// It implements pipeline.Extractor.
type Reader struct {
	dir    string
	tables []string
	logger *slog.Logger
}

// NewReader reads partitions under dir. When tables is not empty only those
// observation tables are loaded.
func NewReader(dir string, tables []string, logger *slog.Logger) *Reader {
	return &Reader{dir: dir, tables: tables, logger: logger}
}

// Extract reads the header and observation tables of partition id.
func (r *Reader) Extract(ctx context.Context, id string) (*domain.Partition, error) {
	header, err := readFile(filepath.Join(r.dir, HeaderFile(id)), domain.HeaderTable)
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	files, err := observationTables(r.dir, id)
	if err != nil {
		return nil, fmt.Errorf("list observation tables: %w", err)
	}

	p := &domain.Partition{ID: id, Header: header}
	names := slices.Sorted(maps.Keys(files))
	for _, name := range names {
		if len(r.tables) > 0 && !slices.Contains(r.tables, name) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, err := readFile(files[name], name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		p.Observations = append(p.Observations, t)
	}
	r.logger.Debug("partition read", "partition", id, "reports", header.Len(), "tables", len(p.Observations))
	return p, nil
}

// ReadReference merges every observations-<table>-*.psv file below dir into
// one reference partition holding only that table. Files are merged in path
// order and must share their columns.
func ReadReference(dir, table string) (*domain.Partition, error) {
	matches, err := doublestar.Glob(os.DirFS(dir), "**/observations-"+table+"-*"+ext, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob reference: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("reference %s: no %s tables", dir, table)
	}
	slices.Sort(matches)

	var (
		cols []string
		rows [][]string
	)
	for _, m := range matches {
		t, err := readFile(filepath.Join(dir, m), table)
		if err != nil {
			return nil, fmt.Errorf("reference %s: %w", m, err)
		}
		if cols == nil {
			cols = t.Columns
		} else if !slices.Equal(cols, t.Columns) {
			return nil, fmt.Errorf("reference %s: columns %s differ from %s",
				m, strings.Join(t.Columns, "|"), strings.Join(cols, "|"))
		}
		rows = append(rows, t.Rows...)
	}
	t, err := domain.NewTable(table, cols, rows)
	if err != nil {
		return nil, fmt.Errorf("reference %s: %w", dir, err)
	}
	return &domain.Partition{ID: "reference", Observations: []*domain.Table{t}}, nil
}
