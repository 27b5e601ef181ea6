package credentials

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Driver names accepted by Open.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Settings selects and configures the KV driver behind a Store.
type Settings struct {
	Driver    string `yaml:"driver"`
	Path      string `yaml:"path"`
	RedisAddr string `yaml:"redis-addr"`
}

// Open builds a Store on the driver named in s.
func Open(ctx context.Context, s Settings) (*Store, error) {
	var (
		kv  KV
		err error
	)
	switch strings.ToLower(strings.TrimSpace(s.Driver)) {
	case "", DriverFile:
		kv, err = NewFileKV(s.Path)
	case DriverSQLite:
		var dsn string
		dsn, err = SQLiteDSNForFile(s.Path)
		if err == nil {
			err = errors.Wrap(os.MkdirAll(filepath.Dir(s.Path), 0o700), "sqlite credential store: create directory")
		}
		if err == nil {
			kv, err = NewSQLiteKV(dsn)
		}
	case DriverRedis:
		kv, err = NewRedisKVFromAddr(ctx, s.RedisAddr)
	case DriverMemory:
		kv = NewMemoryKV()
	default:
		return nil, errors.Errorf("unknown credentials driver %q (known: file, sqlite, redis, memory)", s.Driver)
	}
	if err != nil {
		return nil, err
	}
	return NewStore(kv), nil
}
