package detect

import (
	"net/url"
	"testing"

	"github.com/scrimm/scrimm/pkg/video"
)

func pageURL(t *testing.T, s string) *url.URL {
	t.Helper()
	u, err := url.Parse(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return u
}

func TestResolveCandidate(t *testing.T) {
	page := pageURL(t, "https://site.example/watch/1")
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"/media/x.m3u8", "https://site.example/media/x.m3u8", true},
		{"media/x.mp4", "https://site.example/watch/media/x.mp4", true},
		{"//cdn.example/a.m3u8", "https://cdn.example/a.m3u8", true},
		{"https://cdn.example/a.mp4?t=1", "https://cdn.example/a.mp4?t=1", true},
		{"HTTP://cdn.example/a.mp4", "http://cdn.example/a.mp4", true},
		{"blob:https://site.example/1234", "", false},
		{"data:video/mp4;base64,AAAA", "", false},
		{"http://[::1", "", false},
		{"   ", "", false},
	}
	for _, tt := range tests {
		got, ok := ResolveCandidate(tt.raw, page)
		if ok != tt.ok {
			t.Fatalf("ResolveCandidate(%q) ok = %v, want %v", tt.raw, ok, tt.ok)
		}
		if ok && got.String() != tt.want {
			t.Errorf("ResolveCandidate(%q) = %q, want %q", tt.raw, got.String(), tt.want)
		}
	}
}

func TestResolveCandidate_RelativeWithoutPage(t *testing.T) {
	if _, ok := ResolveCandidate("/media/x.m3u8", nil); ok {
		t.Fatalf("expected relative candidate without page url to be discarded")
	}
}

func TestDecide_FirstValidCandidateWins(t *testing.T) {
	page := pageURL(t, "https://site.example/watch/1")
	msgs := []Message{
		Candidate("http://[::1", VectorDOMMutation),
		Candidate("/media/x.m3u8", VectorNetworkFetch),
		Candidate("https://cdn.example/other.mp4", VectorDOMMutation),
		Candidate("/media/y.m3u8", VectorNetworkXHR),
	}

	var g Gate
	var found []*video.FoundVideo
	for _, m := range msgs {
		var v *video.FoundVideo
		g, v = Decide(g, m, page, "Episode 1")
		if v != nil {
			found = append(found, v)
		}
	}
	if len(found) != 1 {
		t.Fatalf("expected exactly one found video, got %d", len(found))
	}
	if got := found[0].URLString(); got != "https://site.example/media/x.m3u8" {
		t.Fatalf("unexpected video url %q", got)
	}
	if found[0].PageTitle != "Episode 1" || found[0].LastPlayedTime != 0 {
		t.Fatalf("unexpected video %+v", found[0])
	}
	if !g.Accepted {
		t.Fatalf("expected gate to be closed")
	}
}

func TestDecide_ResetReopensGate(t *testing.T) {
	page := pageURL(t, "https://site.example/watch/1")

	g, v := Decide(Gate{}, Candidate("/a.m3u8", ""), page, "")
	if v == nil || v.PageTitle != video.UntitledVideo {
		t.Fatalf("expected first video with placeholder title, got %+v", v)
	}
	if _, v = Decide(g, Candidate("/b.m3u8", ""), page, ""); v != nil {
		t.Fatalf("expected candidate to be discarded while gate is closed")
	}

	g, v = Decide(g, Reset(), page, "")
	if v != nil || g.Accepted {
		t.Fatalf("expected reset to reopen gate without a video")
	}
	g, _ = Decide(g, Reset(), page, "")
	if g.Accepted {
		t.Fatalf("expected repeated reset to be a no-op")
	}

	_, v = Decide(g, Candidate("/b.m3u8", ""), page, "Next")
	if v == nil || v.URLString() != "https://site.example/b.m3u8" {
		t.Fatalf("expected second video after reset, got %+v", v)
	}
}

func TestCoordinator(t *testing.T) {
	page := pageURL(t, "https://site.example/watch/1")
	var c Coordinator
	if v := c.Handle(Candidate("/a.mp4", ""), page, "A"); v == nil {
		t.Fatalf("expected video")
	}
	if !c.Accepted() {
		t.Fatalf("expected gate closed")
	}
	if v := c.Handle(Candidate("/b.mp4", ""), page, "A"); v != nil {
		t.Fatalf("expected discard")
	}
	c.Reset()
	if c.Accepted() {
		t.Fatalf("expected gate open after reset")
	}
}
