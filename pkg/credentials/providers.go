package credentials

import (
	"strings"

	"github.com/pkg/errors"
)

// Provider identifies an LLM backend the search service can use on the user's behalf.
type Provider string

const (
	OpenRouter Provider = "openrouter"
	Ollama     Provider = "ollama"
)

var providers = []Provider{OpenRouter, Ollama}

var labels = map[Provider]string{
	OpenRouter: "OpenRouter",
	Ollama:     "Ollama",
}

var defaultModels = map[Provider]string{
	OpenRouter: "deepseek/deepseek-r1-0528:free",
	Ollama:     "llama3.2",
}

// An empty default base url means the backend picks one.
var defaultBaseURLs = map[Provider]string{
	OpenRouter: "",
	Ollama:     "http://localhost:11434",
}

// Providers lists the known providers in display order.
func Providers() []Provider {
	return append([]Provider(nil), providers...)
}

func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := labels[p]; !ok {
		return "", errors.Errorf("unknown provider %q (known: %s)", s, strings.Join(providerNames(), ", "))
	}
	return p, nil
}

func (p Provider) String() string { return string(p) }

func (p Provider) Label() string {
	if l, ok := labels[p]; ok {
		return l
	}
	return string(p)
}

func (p Provider) DefaultModel() string { return defaultModels[p] }

func (p Provider) DefaultBaseURL() string { return defaultBaseURLs[p] }

func providerNames() []string {
	ret := make([]string, 0, len(providers))
	for _, p := range providers {
		ret = append(ret, string(p))
	}
	return ret
}

// MaskValue hides a secret for display, keeping a short prefix and suffix of long values.
func MaskValue(value string) string {
	if value == "" {
		return ""
	}
	r := []rune(value)
	if len(r) <= 8 {
		return "********"
	}
	return string(r[:3]) + "*****" + string(r[len(r)-3:])
}
