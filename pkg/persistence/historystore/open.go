package historystore

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Settings configures the search history.
type Settings struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Open returns the SQLite store at s.Path, or an in-memory store when history is
// disabled or no path is set.
func Open(s Settings) (SearchStore, error) {
	if !s.Enabled || s.Path == "" {
		return NewInMemorySearchStore(0), nil
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return nil, errors.Wrap(err, "sqlite search store: create directory")
	}
	dsn, err := SQLiteSearchDSNForFile(s.Path)
	if err != nil {
		return nil, err
	}
	return NewSQLiteSearchStore(dsn)
}
