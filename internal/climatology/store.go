// Package climatology looks up climate normals and standard deviations on
// regular lat/lon grids with a static, pentad or daily time axis.
package climatology

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultCacheSize is the number of fields a Store keeps loaded.
const DefaultCacheSize = 16

// Ref names one variable in one climatology file.
type Ref struct {
	File     string `yaml:"file"`
	Variable string `yaml:"variable"`
}

// Store loads climatology fields on demand and keeps the most recently used
// ones in memory.
type Store struct {
	dir     string
	loader  Loader
	cache   *fieldCache
	logger  *slog.Logger
	lookups *prometheus.CounterVec
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithCacheCounter counts lookups in c by result: hit, miss or fallback.
func WithCacheCounter(c *prometheus.CounterVec) StoreOption {
	return func(s *Store) { s.lookups = c }
}

// NewStore resolves relative file names against dir.
func NewStore(dir string, loader Loader, cacheSize int, logger *slog.Logger, opts ...StoreOption) *Store {
	s := &Store{
		dir:    dir,
		loader: loader,
		logger: logger,
	}
	for _, o := range opts {
		o(s)
	}
	s.cache = newFieldCache(cacheSize, s.count)
	return s
}

func (s *Store) count(result string) {
	if s.lookups != nil {
		s.lookups.WithLabelValues(result).Inc()
	}
}

// Field returns the field ref points to. A file that does not exist yields
// an all-missing field and a warning; checks built on a missing field leave
// their rows untested.
func (s *Store) Field(ref Ref) (*Field, error) {
	return s.cache.resolve(ref, s.load)
}

func (s *Store) load(ref Ref) (*Field, origin, error) {
	if ref.File == "" {
		s.logger.Warn("climatology has no file, using missing field", "variable", ref.Variable)
		return Missing(), fromFallback, nil
	}
	path := ref.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.dir, path)
	}
	switch _, err := os.Stat(path); {
	case errors.Is(err, fs.ErrNotExist):
		s.logger.Warn("climatology file not found, using missing field", "path", path, "variable", ref.Variable)
		return Missing(), fromFallback, nil
	case err != nil:
		return nil, fromFile, fmt.Errorf("stat climatology %s: %w", path, err)
	}
	f, err := s.loader.Load(path, ref.Variable)
	if err != nil {
		return nil, fromFile, fmt.Errorf("load climatology %s: %w", path, err)
	}
	s.logger.Debug("climatology loaded", "path", path, "variable", ref.Variable,
		"ntime", f.NTime, "nlat", f.NLat, "nlon", f.NLon)
	return f, fromFile, nil
}

// Cached returns the number of fields currently held in memory.
func (s *Store) Cached() int { return s.cache.len() }

// Fallbacks lists the cached refs that resolved to a missing field.
func (s *Store) Fallbacks() []Ref { return s.cache.fallbacks() }
