package video

import (
	"errors"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/weppos/publicsuffix-go/publicsuffix"
)

// UntitledVideo is used whenever a page has no usable title.
const UntitledVideo = "Untitled Video"

var ErrRelativeURL = errors.New("video url is not absolute")

// FileExtensions are the extensions recognised as directly playable. A
// navigation or pop-up to one of these skips script-based detection.
var FileExtensions = []string{"mp4", "mov", "m4v", "m3u8"}

// FoundVideo is the validated output of detection.
type FoundVideo struct {
	ID             string   `json:"id"`
	PageTitle      string   `json:"pageTitle"`
	VideoURL       *url.URL `json:"-"`
	LastPlayedTime float64  `json:"lastPlayedTime"`
}

// NewFoundVideo builds a FoundVideo. The URL must already be absolute:
// resolution against the page happens before construction.
func NewFoundVideo(title string, u *url.URL, lastPlayed float64) (FoundVideo, error) {
	if u == nil || !u.IsAbs() {
		return FoundVideo{}, ErrRelativeURL
	}
	return FoundVideo{
		ID:             uuid.NewString(),
		PageTitle:      NormalizeTitle(title),
		VideoURL:       u,
		LastPlayedTime: lastPlayed,
	}, nil
}

// URLString returns the absolute video URL as a string.
func (v FoundVideo) URLString() string {
	if v.VideoURL == nil {
		return ""
	}
	return v.VideoURL.String()
}

// NormalizeTitle trims the page title and substitutes UntitledVideo when
// nothing is left.
func NormalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return UntitledVideo
	}
	return title
}

// IsVideoFile reports whether the URL path ends in a known video extension.
func IsVideoFile(u *url.URL) bool {
	if u == nil {
		return false
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(u.Path)), ".")
	if ext == "" {
		return false
	}
	for _, e := range FileExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// NormalizeInput turns what a user typed into a browsable URL. Input without
// an http(s) scheme gets https:// prepended; a result without a host is
// rejected.
func NormalizeInput(input string) (*url.URL, bool) {
	s := strings.TrimSpace(input)
	if s == "" {
		return nil, false
	}
	lower := strings.ToLower(s)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return nil, false
	}
	return u, true
}

// Site returns the registrable domain of the video host, e.g.
// "cdn.media.example.co.uk" -> "example.co.uk". Hosts publicsuffix cannot
// handle (IPs, localhost) are returned as-is.
func Site(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	host := u.Hostname()
	if !strings.Contains(host, ".") {
		return host
	}
	domain, err := publicsuffix.Domain(host)
	if err != nil {
		return host
	}
	return domain
}
