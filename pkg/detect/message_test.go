package detect

import (
	"errors"
	"testing"
)

func TestDecodeMessage(t *testing.T) {
	m, err := DecodeMessage([]byte(`{"name":"videoPlayback","body":"/a.m3u8","vector":"network-xhr"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Kind != KindCandidate || m.URL != "/a.m3u8" || m.Vector != VectorNetworkXHR {
		t.Fatalf("unexpected message %+v", m)
	}

	m, err = DecodeMessage([]byte(`{"name":"resetDetector","body":false}`))
	if err != nil || m.Kind != KindReset {
		t.Fatalf("expected reset regardless of body, got %+v, %v", m, err)
	}

	m, err = DecodeMessage([]byte(`{"name":"videoPlayback","body":"/b.mp4","title":"  Episode 5 "}`))
	if err != nil || m.Title != "Episode 5" {
		t.Fatalf("expected trimmed page title, got %+v, %v", m, err)
	}

	m, err = DecodeMessage([]byte(`{"name":"resetDetector","body":true,"title":"Episode 5"}`))
	if err != nil || m.Title != "" {
		t.Fatalf("reset must not carry a title, got %+v, %v", m, err)
	}

	m, err = DecodeMessage([]byte(`{"name":"videoPlayback","body":"x.mp4","vector":"bogus"}`))
	if err != nil || m.Vector != "" {
		t.Fatalf("expected unknown vector to be dropped, got %+v, %v", m, err)
	}
}

func TestDecodeMessage_Errors(t *testing.T) {
	tests := []struct {
		in   string
		want error
	}{
		{`not json`, ErrBadPayload},
		{`{"name":"videoPlayback","body":42}`, ErrBadPayload},
		{`{"name":"somethingElse","body":"x"}`, ErrUnknownMessage},
	}
	for _, tt := range tests {
		if _, err := DecodeMessage([]byte(tt.in)); !errors.Is(err, tt.want) {
			t.Errorf("DecodeMessage(%s) error = %v, want %v", tt.in, err, tt.want)
		}
	}
}

func TestMessageEncode(t *testing.T) {
	for _, m := range []Message{
		Candidate("https://a.example/x.m3u8", VectorDeepScan),
		Candidate("https://a.example/y.mp4", "").WithTitle(`Ep "6"`),
		Reset(),
	} {
		data, err := m.Encode()
		if err != nil {
			t.Fatalf("encode %+v: %v", m, err)
		}
		got, err := DecodeMessage(data)
		if err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
		if got != m {
			t.Fatalf("expected %+v, got %+v", m, got)
		}
	}
	if _, err := (Message{}).Encode(); !errors.Is(err, ErrUnknownMessage) {
		t.Fatalf("expected ErrUnknownMessage for zero message, got %v", err)
	}
}
