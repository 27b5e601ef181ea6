package credentials

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// KV is the durable key-value storage behind a Store. Get on a missing key
// returns ok=false and no error.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

const (
	fieldAPIKey  = "apiKey"
	fieldModel   = "model"
	fieldBaseURL = "baseUrl"
)

// Key builds the storage key for a provider field, e.g. apiKey_openrouter.
func Key(field string, p Provider) string {
	return field + "_" + string(p)
}

// Credentials is everything needed to start a search with a provider.
type Credentials struct {
	Provider Provider `yaml:"provider" json:"provider"`
	APIKey   string   `yaml:"api-key" json:"api_key"`
	Model    string   `yaml:"model" json:"model"`
	BaseURL  string   `yaml:"base-url" json:"base_url"`
}

// HasAPIKey reports whether the key is set to something other than whitespace.
func (c Credentials) HasAPIKey() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// Store reads and writes per-provider credentials. Model and base url fall back to
// the provider defaults when unset. Values are stored unencrypted.
type Store struct {
	kv KV
}

func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

func (s *Store) Close() error {
	if s == nil || s.kv == nil {
		return nil
	}
	return s.kv.Close()
}

func (s *Store) APIKey(ctx context.Context, p Provider) (string, bool, error) {
	v, ok, err := s.kv.Get(ctx, Key(fieldAPIKey, p))
	if err != nil {
		return "", false, errors.Wrapf(err, "read api key for %s", p)
	}
	return v, ok, nil
}

func (s *Store) SetAPIKey(ctx context.Context, p Provider, key string) error {
	return errors.Wrapf(s.kv.Set(ctx, Key(fieldAPIKey, p), key), "write api key for %s", p)
}

func (s *Store) DeleteAPIKey(ctx context.Context, p Provider) error {
	return errors.Wrapf(s.kv.Delete(ctx, Key(fieldAPIKey, p)), "delete api key for %s", p)
}

// HasAPIKey reports whether a non-blank key is stored for p.
func (s *Store) HasAPIKey(ctx context.Context, p Provider) (bool, error) {
	v, ok, err := s.APIKey(ctx, p)
	if err != nil {
		return false, err
	}
	return ok && strings.TrimSpace(v) != "", nil
}

func (s *Store) Model(ctx context.Context, p Provider) (string, error) {
	return s.withDefault(ctx, Key(fieldModel, p), p.DefaultModel())
}

func (s *Store) SetModel(ctx context.Context, p Provider, model string) error {
	return errors.Wrapf(s.kv.Set(ctx, Key(fieldModel, p), model), "write model for %s", p)
}

// ResetModel removes the stored model so the provider default applies again.
func (s *Store) ResetModel(ctx context.Context, p Provider) error {
	return errors.Wrapf(s.kv.Delete(ctx, Key(fieldModel, p)), "delete model for %s", p)
}

func (s *Store) BaseURL(ctx context.Context, p Provider) (string, error) {
	return s.withDefault(ctx, Key(fieldBaseURL, p), p.DefaultBaseURL())
}

func (s *Store) SetBaseURL(ctx context.Context, p Provider, baseURL string) error {
	return errors.Wrapf(s.kv.Set(ctx, Key(fieldBaseURL, p), baseURL), "write base url for %s", p)
}

func (s *Store) ResetBaseURL(ctx context.Context, p Provider) error {
	return errors.Wrapf(s.kv.Delete(ctx, Key(fieldBaseURL, p)), "delete base url for %s", p)
}

// Lookup returns the full credentials of p with defaults applied.
func (s *Store) Lookup(ctx context.Context, p Provider) (Credentials, error) {
	key, _, err := s.APIKey(ctx, p)
	if err != nil {
		return Credentials{}, err
	}
	model, err := s.Model(ctx, p)
	if err != nil {
		return Credentials{}, err
	}
	baseURL, err := s.BaseURL(ctx, p)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{Provider: p, APIKey: key, Model: model, BaseURL: baseURL}, nil
}

// Save writes every field of c. An empty api key deletes the stored key.
func (s *Store) Save(ctx context.Context, c Credentials) error {
	if strings.TrimSpace(c.APIKey) == "" {
		if err := s.DeleteAPIKey(ctx, c.Provider); err != nil {
			return err
		}
	} else if err := s.SetAPIKey(ctx, c.Provider, strings.TrimSpace(c.APIKey)); err != nil {
		return err
	}
	if err := s.SetModel(ctx, c.Provider, c.Model); err != nil {
		return err
	}
	return s.SetBaseURL(ctx, c.Provider, c.BaseURL)
}

// All returns the credentials of every known provider.
func (s *Store) All(ctx context.Context) (map[Provider]Credentials, error) {
	ret := make(map[Provider]Credentials, len(providers))
	for _, p := range providers {
		c, err := s.Lookup(ctx, p)
		if err != nil {
			return nil, err
		}
		ret[p] = c
	}
	return ret, nil
}

// An empty stored value also falls back to the default.
func (s *Store) withDefault(ctx context.Context, key string, def string) (string, error) {
	v, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return "", errors.Wrapf(err, "read %s", key)
	}
	if !ok || v == "" {
		return def, nil
	}
	return v, nil
}
