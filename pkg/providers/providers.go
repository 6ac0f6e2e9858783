package providers

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
)

//go:embed providers.json
var bundled []byte

// Provider is a search site. SearchURL is a prefix the encoded query is
// appended to.
type Provider struct {
	Name      string `json:"name"`
	SearchURL string `json:"searchUrl"`
}

// QueryURL returns the search URL for query. Spaces become %20.
func (p Provider) QueryURL(query string) string {
	return p.SearchURL + strings.ReplaceAll(url.QueryEscape(strings.TrimSpace(query)), "+", "%20")
}

// Decode parses a JSON array of providers, dropping entries without a name
// or search URL.
func Decode(data []byte) ([]Provider, error) {
	var list []Provider
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, err
	}
	out := list[:0]
	for _, p := range list {
		if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.SearchURL) == "" {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Load reads the provider list from path, or the bundled list when path is
// empty. On failure it returns an empty list together with the error so the
// caller can log it and carry on.
func Load(path string) ([]Provider, error) {
	data := bundled
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return []Provider{}, fmt.Errorf("read providers: %w", err)
		}
	}
	list, err := Decode(data)
	if err != nil {
		return []Provider{}, fmt.Errorf("decode providers: %w", err)
	}
	return list, nil
}

// Find looks a provider up by name, ignoring case.
func Find(list []Provider, name string) (Provider, bool) {
	for _, p := range list {
		if strings.EqualFold(p.Name, strings.TrimSpace(name)) {
			return p, true
		}
	}
	return Provider{}, false
}
