package lsp

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Endpoint maps language ids to WebSocket URLs. Each supported language has
// a path joined onto a shared base URL; a language with no path is
// unsupported and must be rejected before any network activity.
type Endpoint struct {
	base  *url.URL
	paths map[string]string
}

// NewEndpoint parses the base URL and fixes the language path table.
// http and https bases are rewritten to ws and wss.
func NewEndpoint(base string, paths map[string]string) (*Endpoint, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint base %q: %w", base, err)
	}

	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("endpoint base %q: unsupported scheme %q", base, u.Scheme)
	}

	table := make(map[string]string, len(paths))
	for lang, path := range paths {
		table[lang] = path
	}
	return &Endpoint{base: u, paths: table}, nil
}

// Supports reports whether a language id has a configured path.
func (e *Endpoint) Supports(language string) bool {
	_, ok := e.paths[language]
	return ok
}

// Languages lists the supported language ids, sorted.
func (e *Endpoint) Languages() []string {
	out := make([]string, 0, len(e.paths))
	for lang := range e.paths {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// URL resolves the WebSocket URL for a language id.
func (e *Endpoint) URL(language string) (string, error) {
	path, ok := e.paths[language]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedLanguage, language)
	}

	u := *e.base
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(path, "/")
	return u.String(), nil
}
