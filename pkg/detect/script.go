package detect

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"
)

//go:embed detector.js
var detectorSource string

var detectorTmpl = template.Must(template.New("detector").Parse(detectorSource))

// Transports the page script can post through.
const (
	TransportWebKit = "webkit"
	TransportBridge = "bridge"
)

// DefaultKeywords mark player regions. A click inside an element whose class
// or id contains one of them resets the gate.
var DefaultKeywords = []string{"video", "player", "thumbnail", "play-button", "episode"}

const DefaultScanInterval = 2500 * time.Millisecond

// ScriptOptions configure the rendered page script.
type ScriptOptions struct {
	Transport    string
	ScanInterval time.Duration
	Keywords     []string

	// Bridge transport only.
	Endpoint  string // channel URL the script POSTs envelopes to
	BrowseURL string // prefix that takes a percent-encoded target URL
	CloseURL  string // beaconed on pagehide; empty leaves the session open
}

// Script renders the page script for opts.
func Script(opts ScriptOptions) (string, error) {
	if opts.Transport == "" {
		opts.Transport = TransportWebKit
	}
	if opts.Transport != TransportWebKit && opts.Transport != TransportBridge {
		return "", fmt.Errorf("unknown transport %q", opts.Transport)
	}
	if opts.Transport == TransportBridge && (opts.Endpoint == "" || opts.BrowseURL == "") {
		return "", fmt.Errorf("bridge transport needs an endpoint and a browse url")
	}
	if opts.ScanInterval <= 0 {
		opts.ScanInterval = DefaultScanInterval
	}
	keywords := make([]string, 0, len(opts.Keywords))
	for _, k := range opts.Keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keywords = append(keywords, k)
		}
	}
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}

	kw, err := json.Marshal(keywords)
	if err != nil {
		return "", err
	}
	endpoint, _ := json.Marshal(opts.Endpoint)
	browse, _ := json.Marshal(opts.BrowseURL)
	closeURL, _ := json.Marshal(opts.CloseURL)

	var buf bytes.Buffer
	err = detectorTmpl.Execute(&buf, struct {
		Transport          string
		ScanIntervalMillis int64
		Keywords           string
		Endpoint           string
		Browse             string
		Close              string
	}{
		Transport:          opts.Transport,
		ScanIntervalMillis: opts.ScanInterval.Milliseconds(),
		Keywords:           string(kw),
		Endpoint:           string(endpoint),
		Browse:             string(browse),
		Close:              string(closeURL),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
