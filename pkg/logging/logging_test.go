package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

func TestUseFile_WritesJSONToFile(t *testing.T) {
	prev := log.Logger
	prevLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	path := filepath.Join(t.TempDir(), "logs", "clarinet.log")
	closer, err := UseFile(path, true)
	require.NoError(t, err)
	log.Debug().Str("session_id", "s-1").Msg("hello")
	require.NoError(t, closer.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(b), `"session_id":"s-1"`)
	require.Contains(t, string(b), `"message":"hello"`)
}

func TestUseFile_KeepsGlobalLevel(t *testing.T) {
	prev := log.Logger
	prevLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	path := filepath.Join(t.TempDir(), "clarinet.log")
	closer, err := UseFile(path, false)
	require.NoError(t, err)
	log.Info().Msg("quiet")
	log.Warn().Msg("loud")
	require.NoError(t, closer.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(b), "quiet")
	require.Contains(t, string(b), "loud")
}

func TestUseFile_RejectsEmptyPath(t *testing.T) {
	_, err := UseFile("", false)
	require.Error(t, err)
}
