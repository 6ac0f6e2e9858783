package detect

import (
	"encoding/base64"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
)

var (
	// quoted media references inside inline scripts, absolute or relative
	quotedMediaRe = regexp.MustCompile(`["']([^"'\s<>]+?\.(?:m3u8|mpd|mp4|m4v|mov|webm)(?:[?#][^"'\s<>]*)?)["']`)
	base64TokenRe = regexp.MustCompile(`[A-Za-z0-9+/_-]{40,}={0,2}`)
	manifestURLRe = regexp.MustCompile(`https?://[^\s"'<>\\]+?\.m3u8[^\s"'<>\\]*`)
	mediaValueRe  = regexp.MustCompile(`(?i)\.(?:m3u8|mpd|mp4|m4v|mov|webm)(?:[?#]|$)`)
)

// structured-data keys that declare the media itself
var structuredKeys = map[string]bool{
	"contentUrl": true,
	"embedUrl":   true,
}

// Hit is a raw URL together with the vector that surfaced it.
type Hit struct {
	URL    string
	Vector SourceVector
}

// Message converts the hit into a channel message.
func (c Hit) Message() Message {
	return Candidate(c.URL, c.Vector)
}

// Scanner is the static counterpart of the page script. It collects
// candidates from a parsed document and de-duplicates them the way the page
// script's foundUrls set does.
type Scanner struct {
	found map[string]bool
	out   []Hit
}

func NewScanner() *Scanner {
	return &Scanner{found: make(map[string]bool)}
}

// ScanHTML parses r and returns the hits in emission order.
func ScanHTML(r io.Reader) ([]Hit, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}
	s := NewScanner()
	s.Scan(doc)
	return s.Hits(), nil
}

// Scan runs every static vector over doc. Order: DOM, structured data,
// inline script references, deep scan.
func (s *Scanner) Scan(doc *goquery.Document) {
	s.scanDOM(doc)
	s.scanStructured(doc)
	doc.Find("script").Each(func(_ int, sel *goquery.Selection) {
		if _, external := sel.Attr("src"); external {
			return
		}
		typ, _ := sel.Attr("type")
		if strings.EqualFold(typ, "application/ld+json") {
			return
		}
		text := sel.Text()
		s.scanScriptRefs(text)
		s.scanBase64(text)
	})
}

// Hits returns what was emitted so far.
func (s *Scanner) Hits() []Hit {
	out := make([]Hit, len(s.out))
	copy(out, s.out)
	return out
}

func (s *Scanner) emit(raw string, vector SourceVector) {
	raw = strings.TrimSpace(raw)
	if !Emittable(raw) || s.found[raw] {
		return
	}
	s.found[raw] = true
	s.out = append(s.out, Hit{URL: raw, Vector: vector})
}

// Emittable reports whether a raw URL may leave the page. Page-local
// references (blob:, data:, javascript:) are not resolvable by the host.
func Emittable(raw string) bool {
	if raw == "" {
		return false
	}
	lower := strings.ToLower(raw)
	for _, p := range []string{"blob:", "data:", "javascript:", "about:"} {
		if strings.HasPrefix(lower, p) {
			return false
		}
	}
	return true
}

func (s *Scanner) scanDOM(doc *goquery.Document) {
	doc.Find("video").Each(func(_ int, v *goquery.Selection) {
		if src, ok := v.Attr("src"); ok {
			s.emit(src, VectorDOMMutation)
		}
		v.Find("source").Each(func(_ int, src *goquery.Selection) {
			if u, ok := src.Attr("src"); ok {
				s.emit(u, VectorDOMMutation)
			}
		})
	})
}

func (s *Scanner) scanStructured(doc *goquery.Document) {
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		raw := sel.Text()
		if !gjson.Valid(raw) {
			return
		}
		walkJSON(gjson.Parse(raw), func(key string, val gjson.Result) {
			if structuredKeys[key] && val.Type == gjson.String {
				s.emit(val.String(), VectorStructuredData)
			}
		})
	})

	doc.Find(`meta[property="og:video"], meta[property="og:video:url"], meta[property="og:video:secure_url"]`).Each(func(_ int, sel *goquery.Selection) {
		if c, ok := sel.Attr("content"); ok {
			s.emit(c, VectorStructuredData)
		}
	})

	doc.Find("#__NEXT_DATA__").Each(func(_ int, sel *goquery.Selection) {
		raw := sel.Text()
		if !gjson.Valid(raw) {
			return
		}
		walkJSON(gjson.Parse(raw), func(_ string, val gjson.Result) {
			if val.Type == gjson.String && mediaValueRe.MatchString(val.String()) {
				s.emit(val.String(), VectorStructuredData)
			}
		})
	})
}

func (s *Scanner) scanScriptRefs(text string) {
	text = strings.ReplaceAll(text, `\/`, "/")
	for _, m := range quotedMediaRe.FindAllStringSubmatch(text, -1) {
		s.emit(m[1], VectorNetworkFetch)
	}
}

func (s *Scanner) scanBase64(text string) {
	for _, tok := range base64TokenRe.FindAllString(text, -1) {
		decoded, ok := decodeBase64(tok)
		if !ok || !strings.Contains(decoded, ".m3u8") {
			continue
		}
		for _, u := range manifestURLRe.FindAllString(decoded, -1) {
			s.emit(u, VectorDeepScan)
		}
	}
}

func decodeBase64(tok string) (string, bool) {
	encs := []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding}
	for _, enc := range encs {
		if b, err := enc.DecodeString(tok); err == nil {
			return string(b), true
		}
	}
	return "", false
}

// walkJSON visits every key/value pair in res depth-first. Array elements
// are visited with an empty key.
func walkJSON(res gjson.Result, fn func(key string, val gjson.Result)) {
	res.ForEach(func(k, v gjson.Result) bool {
		fn(k.String(), v)
		if v.IsObject() || v.IsArray() {
			walkJSON(v, fn)
		}
		return true
	})
}
