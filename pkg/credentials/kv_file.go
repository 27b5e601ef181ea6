package credentials

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// FileKV stores credentials as a flat YAML map. The file is re-read on every
// operation so several clarinet processes sharing it see each other's writes;
// concurrent writers race and the last write wins.
type FileKV struct {
	mu   sync.Mutex
	path string
}

var _ KV = &FileKV{}

func NewFileKV(path string) (*FileKV, error) {
	if path == "" {
		return nil, errors.New("file credential store: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "file credential store: create directory")
	}
	return &FileKV{path: path}, nil
}

func (f *FileKV) Path() string { return f.path }

func (f *FileKV) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (f *FileKV) Set(_ context.Context, key string, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.load()
	if err != nil {
		return err
	}
	values[key] = value
	return f.save(values)
}

func (f *FileKV) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return f.save(values)
}

func (f *FileKV) Close() error { return nil }

func (f *FileKV) load() (map[string]string, error) {
	b, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "file credential store: read")
	}
	values := map[string]string{}
	if err := yaml.Unmarshal(b, &values); err != nil {
		return nil, errors.Wrapf(err, "file credential store: parse %s", f.path)
	}
	if values == nil {
		values = map[string]string{}
	}
	return values, nil
}

func (f *FileKV) save(values map[string]string) error {
	b, err := yaml.Marshal(values)
	if err != nil {
		return errors.Wrap(err, "file credential store: marshal")
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".credentials-*.yaml")
	if err != nil {
		return errors.Wrap(err, "file credential store: create temp file")
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "file credential store: chmod")
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "file credential store: write")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "file credential store: close")
	}
	return errors.Wrap(os.Rename(tmpName, f.path), "file credential store: rename")
}
