package psv

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/couchcryptid/marine-qc/internal/domain"
)

const ext = ".psv"

// HeaderFile names the header file of partition id.
func HeaderFile(id string) string {
	return "header-" + id + ext
}

// ObservationFile names the file of observation table name in partition id.
func ObservationFile(name, id string) string {
	return "observations-" + name + "-" + id + ext
}

// PartitionIDs lists the partition ids with a header file matching pattern
// under dir. The pattern is a doublestar glob over header file paths
// relative to dir, e.g. "**/header-2020-*.psv". Ids are sorted.
func PartitionIDs(dir, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = HeaderFile("*")
	}
	matches, err := doublestar.Glob(os.DirFS(dir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		base := filepath.Base(m)
		if !strings.HasPrefix(base, "header-") || !strings.HasSuffix(base, ext) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(strings.TrimPrefix(base, "header-"), ext))
	}
	slices.Sort(ids)
	return slices.Compact(ids), nil
}

// observationTables maps table name to file for partition id in dir.
func observationTables(dir, id string) (map[string]string, error) {
	suffix := "-" + id + ext
	matches, err := doublestar.Glob(os.DirFS(dir), "observations-*"+suffix, doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(matches))
	for _, m := range matches {
		name := strings.TrimSuffix(strings.TrimPrefix(m, "observations-"), suffix)
		// Table names carry no dash; a dashed match belongs to a longer id.
		if name == "" || strings.Contains(name, "-") {
			continue
		}
		out[name] = filepath.Join(dir, m)
	}
	return out, nil
}

func readFile(path, name string) (*domain.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTable(f, name)
}

// writeFile writes t to path through a temporary file so a failed write
// never leaves a truncated table behind.
func writeFile(path string, t *domain.Table) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".psv-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	if err = WriteTable(tmp, t); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
