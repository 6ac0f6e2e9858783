package detect

import (
	"net/url"
	"strings"

	"github.com/scrimm/scrimm/pkg/video"
)

// Gate is the one-shot detection gate of a page view.
type Gate struct {
	Accepted bool
}

// Decide is the host-side arbitration for a single message. It never fails:
// a candidate that cannot be resolved leaves the gate untouched and yields no
// video.
func Decide(g Gate, msg Message, pageURL *url.URL, title string) (Gate, *video.FoundVideo) {
	switch msg.Kind {
	case KindReset:
		return Gate{}, nil
	case KindCandidate:
		if g.Accepted {
			return g, nil
		}
		u, ok := ResolveCandidate(msg.URL, pageURL)
		if !ok {
			return g, nil
		}
		v, err := video.NewFoundVideo(title, u, 0)
		if err != nil {
			return g, nil
		}
		return Gate{Accepted: true}, &v
	}
	return g, nil
}

// ResolveCandidate turns a raw candidate into an absolute http(s) URL.
// Absolute http(s) strings are used as-is, anything else is resolved
// against the page URL.
func ResolveCandidate(raw string, pageURL *url.URL) (*url.URL, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return nil, false
	}
	if !ref.IsAbs() {
		if pageURL == nil || !pageURL.IsAbs() {
			return nil, false
		}
		ref = pageURL.ResolveReference(ref)
	}
	if !isWebScheme(ref.Scheme) || ref.Host == "" {
		return nil, false
	}
	return ref, true
}

func isWebScheme(s string) bool {
	s = strings.ToLower(s)
	return s == "http" || s == "https"
}

// Coordinator holds the gate for the current page view. It is not safe for
// concurrent use; the owning session drives it from a single goroutine.
type Coordinator struct {
	gate Gate
}

// Handle applies msg and returns the accepted video, if any.
func (c *Coordinator) Handle(msg Message, pageURL *url.URL, title string) *video.FoundVideo {
	var v *video.FoundVideo
	c.gate, v = Decide(c.gate, msg, pageURL, title)
	return v
}

// Reset reopens the gate. Reopening an open gate is a no-op.
func (c *Coordinator) Reset() {
	c.gate = Gate{}
}

// Accepted reports whether the current page view already produced a video.
func (c *Coordinator) Accepted() bool {
	return c.gate.Accepted
}
