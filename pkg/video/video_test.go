package video

import (
	"net/url"
	"testing"
)

func mustParse(t *testing.T, s string) *url.URL {
	t.Helper()
	u, err := url.Parse(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return u
}

func TestNewFoundVideo_RejectsRelative(t *testing.T) {
	if _, err := NewFoundVideo("t", mustParse(t, "/media/x.m3u8"), 0); err != ErrRelativeURL {
		t.Fatalf("expected ErrRelativeURL, got %v", err)
	}
	if _, err := NewFoundVideo("t", nil, 0); err != ErrRelativeURL {
		t.Fatalf("expected ErrRelativeURL for nil url, got %v", err)
	}
}

func TestNewFoundVideo_TitleAndID(t *testing.T) {
	u := mustParse(t, "https://site.example/v.mp4")
	a, err := NewFoundVideo("   ", u, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.PageTitle != UntitledVideo {
		t.Fatalf("expected placeholder title, got %q", a.PageTitle)
	}
	b, _ := NewFoundVideo("  Episode 1 ", u, 12.5)
	if b.PageTitle != "Episode 1" || b.LastPlayedTime != 12.5 {
		t.Fatalf("unexpected video %+v", b)
	}
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("expected distinct non-empty ids, got %q and %q", a.ID, b.ID)
	}
}

func TestIsVideoFile(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"https://a.example/v/clip.mp4", true},
		{"https://a.example/v/clip.MOV", true},
		{"https://a.example/v/clip.m4v?token=1", true},
		{"https://a.example/live/index.m3u8", true},
		{"https://a.example/watch/1", false},
		{"https://a.example/clip.mp4.html", false},
		{"https://a.example/", false},
	}
	for _, tt := range tests {
		if got := IsVideoFile(mustParse(t, tt.in)); got != tt.want {
			t.Errorf("IsVideoFile(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeInput(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"example.com/watch", "https://example.com/watch", true},
		{"  HTTP://example.com ", "http://example.com", true},
		{"https://", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		u, ok := NormalizeInput(tt.in)
		if ok != tt.ok {
			t.Fatalf("NormalizeInput(%q) ok = %v, want %v", tt.in, ok, tt.ok)
		}
		if ok && u.String() != tt.want {
			t.Errorf("NormalizeInput(%q) = %q, want %q", tt.in, u.String(), tt.want)
		}
	}
}

func TestSite(t *testing.T) {
	if got := Site("https://cdn.media.example.co.uk/a.m3u8"); got != "example.co.uk" {
		t.Fatalf("expected example.co.uk, got %q", got)
	}
	if got := Site("http://localhost:8080/a.mp4"); got != "localhost" {
		t.Fatalf("expected localhost, got %q", got)
	}
	if got := Site("not a url"); got != "" {
		t.Fatalf("expected empty site, got %q", got)
	}
}
