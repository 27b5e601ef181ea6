package credentials

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStore_MissingValuesFallBackToDefaults(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryKV())

	key, ok, err := s.APIKey(ctx, OpenRouter)
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, key)

	model, err := s.Model(ctx, OpenRouter)
	require.NoError(t, err)
	require.Equal(t, "deepseek/deepseek-r1-0528:free", model)

	baseURL, err := s.BaseURL(ctx, Ollama)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:11434", baseURL)

	baseURL, err = s.BaseURL(ctx, OpenRouter)
	require.NoError(t, err)
	require.Empty(t, baseURL)
}

func TestStore_HasAPIKeyTrimsWhitespace(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryKV())

	require.NoError(t, s.SetAPIKey(ctx, OpenRouter, "   "))
	has, err := s.HasAPIKey(ctx, OpenRouter)
	require.NoError(t, err)
	require.False(t, has)

	require.NoError(t, s.SetAPIKey(ctx, OpenRouter, "sk-test"))
	has, err = s.HasAPIKey(ctx, OpenRouter)
	require.NoError(t, err)
	require.True(t, has)

	has, err = s.HasAPIKey(ctx, Ollama)
	require.NoError(t, err)
	require.False(t, has)
}

func TestStore_UsesProviderScopedKeys(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	s := NewStore(kv)

	require.NoError(t, s.SetAPIKey(ctx, Ollama, "ollama-key"))
	require.NoError(t, s.SetModel(ctx, Ollama, "mistral"))
	require.NoError(t, s.SetBaseURL(ctx, Ollama, "http://gpu:11434"))

	v, ok, err := kv.Get(ctx, "apiKey_ollama")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "ollama-key", v)

	v, _, _ = kv.Get(ctx, "model_ollama")
	require.Equal(t, "mistral", v)
	v, _, _ = kv.Get(ctx, "baseUrl_ollama")
	require.Equal(t, "http://gpu:11434", v)

	_, ok, err = kv.Get(ctx, "apiKey_openrouter")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStore_LookupAndReset(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryKV())

	require.NoError(t, s.Save(ctx, Credentials{Provider: OpenRouter, APIKey: " sk-1 ", Model: "gpt", BaseURL: "https://or.example"}))
	c, err := s.Lookup(ctx, OpenRouter)
	require.NoError(t, err)
	require.Equal(t, Credentials{Provider: OpenRouter, APIKey: "sk-1", Model: "gpt", BaseURL: "https://or.example"}, c)
	require.True(t, c.HasAPIKey())

	require.NoError(t, s.ResetModel(ctx, OpenRouter))
	require.NoError(t, s.ResetBaseURL(ctx, OpenRouter))
	c, err = s.Lookup(ctx, OpenRouter)
	require.NoError(t, err)
	require.Equal(t, OpenRouter.DefaultModel(), c.Model)
	require.Empty(t, c.BaseURL)

	require.NoError(t, s.Save(ctx, Credentials{Provider: OpenRouter}))
	_, ok, err := s.APIKey(ctx, OpenRouter)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStore_All(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryKV())
	require.NoError(t, s.SetAPIKey(ctx, Ollama, "k"))

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "k", all[Ollama].APIKey)
	require.False(t, all[OpenRouter].HasAPIKey())
}

func TestParseProvider(t *testing.T) {
	p, err := ParseProvider(" OpenRouter ")
	require.NoError(t, err)
	require.Equal(t, OpenRouter, p)
	require.Equal(t, "OpenRouter", p.Label())

	_, err = ParseProvider("anthropic")
	require.Error(t, err)
	require.Contains(t, err.Error(), "openrouter, ollama")
}

func TestMaskValue(t *testing.T) {
	require.Equal(t, "", MaskValue(""))
	require.Equal(t, "********", MaskValue("short"))
	require.Equal(t, "sk-*****xyz", MaskValue("sk-abcdefxyz"))
	require.Equal(t, "********", MaskValue("ключ-ёж"))
	require.Equal(t, "клю*****ёжи", MaskValue("ключ-секрет-ёжи"))
}

func exerciseKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := kv.Get(ctx, "apiKey_openrouter")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, kv.Set(ctx, "apiKey_openrouter", "a"))
	require.NoError(t, kv.Set(ctx, "apiKey_openrouter", "b"))
	v, ok, err := kv.Get(ctx, "apiKey_openrouter")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "b", v)

	require.NoError(t, kv.Delete(ctx, "apiKey_openrouter"))
	require.NoError(t, kv.Delete(ctx, "apiKey_openrouter"))
	_, ok, err = kv.Get(ctx, "apiKey_openrouter")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryKV_Behavior(t *testing.T) {
	exerciseKV(t, NewMemoryKV())
}

func TestFileKV_Behavior(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.yaml")
	kv, err := NewFileKV(path)
	require.NoError(t, err)
	exerciseKV(t, kv)

	require.NoError(t, kv.Set(context.Background(), "model_ollama", "llama3.2"))
	st, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), st.Mode().Perm())
}

func TestFileKV_SeesWritesFromOtherInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "credentials.yaml")
	a, err := NewFileKV(path)
	require.NoError(t, err)
	b, err := NewFileKV(path)
	require.NoError(t, err)

	require.NoError(t, a.Set(ctx, "apiKey_ollama", "from-a"))
	v, ok, err := b.Get(ctx, "apiKey_ollama")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "from-a", v)

	require.NoError(t, b.Set(ctx, "apiKey_ollama", "from-b"))
	v, _, err = a.Get(ctx, "apiKey_ollama")
	require.NoError(t, err)
	require.Equal(t, "from-b", v)
}

func TestFileKV_RejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- not\n- a map\n"), 0o600))
	kv, err := NewFileKV(path)
	require.NoError(t, err)
	_, _, err = kv.Get(context.Background(), "apiKey_ollama")
	require.Error(t, err)
}

func TestSQLiteKV_Behavior(t *testing.T) {
	dsn, err := SQLiteDSNForFile(filepath.Join(t.TempDir(), "credentials.db"))
	require.NoError(t, err)
	kv, err := NewSQLiteKV(dsn)
	require.NoError(t, err)
	defer func() { _ = kv.Close() }()
	exerciseKV(t, kv)
}

func TestOpen_SQLiteCreatesMissingParentDirectories(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "fresh-home", ".clarinet", "credentials.db")

	s, err := Open(ctx, Settings{Driver: DriverSQLite, Path: path})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	require.NoError(t, s.SetAPIKey(ctx, OpenRouter, "sk-new-home"))

	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestSQLiteKV_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dsn, err := SQLiteDSNForFile(filepath.Join(t.TempDir(), "credentials.db"))
	require.NoError(t, err)

	kv, err := NewSQLiteKV(dsn)
	require.NoError(t, err)
	require.NoError(t, NewStore(kv).SetAPIKey(ctx, OpenRouter, "persisted"))
	require.NoError(t, kv.Close())

	kv, err = NewSQLiteKV(dsn)
	require.NoError(t, err)
	defer func() { _ = kv.Close() }()
	has, err := NewStore(kv).HasAPIKey(ctx, OpenRouter)
	require.NoError(t, err)
	require.True(t, has)
}

func TestRedisKV_PrefixesKeys(t *testing.T) {
	kv := NewRedisKV(nil)
	require.Equal(t, "clarinet:credentials:apiKey_ollama", kv.key(Key(fieldAPIKey, Ollama)))
}
