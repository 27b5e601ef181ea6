// Package logging moves the global zerolog logger off the terminal for the
// interactive commands. Level, format and --log-file handling come from
// clay.InitLogger.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// UseFile points log.Logger at path, creating its directory, and keeps the
// global level set by clay.InitLogger. The caller closes the returned file.
func UseFile(path string, jsonFormat bool) (io.Closer, error) {
	if path == "" {
		return nil, errors.New("log file: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "create log directory")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, errors.Wrapf(err, "open log file %s", path)
	}

	var out io.Writer = f
	if !jsonFormat {
		out = zerolog.ConsoleWriter{Out: f, NoColor: true, TimeFormat: "15:04:05"}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return f, nil
}
