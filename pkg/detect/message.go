package detect

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Wire names used by the page script.
const (
	NameCandidate = "videoPlayback"
	NameReset     = "resetDetector"
)

// Kind is the Message Channel variant.
type Kind int

const (
	KindCandidate Kind = iota + 1
	KindReset
)

func (k Kind) String() string {
	switch k {
	case KindCandidate:
		return "candidate"
	case KindReset:
		return "reset"
	}
	return "unknown"
}

// SourceVector names how the page script found a candidate.
type SourceVector string

const (
	VectorNetworkFetch       SourceVector = "network-fetch"
	VectorNetworkXHR         SourceVector = "network-xhr"
	VectorMediaSourceBinding SourceVector = "media-source-binding"
	VectorDOMMutation        SourceVector = "dom-mutation"
	VectorStructuredData     SourceVector = "structured-data"
	VectorDeepScan           SourceVector = "deep-scan"
)

var knownVectors = map[SourceVector]bool{
	VectorNetworkFetch:       true,
	VectorNetworkXHR:         true,
	VectorMediaSourceBinding: true,
	VectorDOMMutation:        true,
	VectorStructuredData:     true,
	VectorDeepScan:           true,
}

var (
	ErrUnknownMessage = errors.New("unknown message name")
	ErrBadPayload     = errors.New("bad message payload")
)

// Message is one page-to-host message. URL and Vector are only set for
// candidates; Vector is informational and may be empty. Title is the page's
// document.title when the message was posted, empty when the transport does
// not carry it.
type Message struct {
	Kind   Kind
	URL    string
	Vector SourceVector
	Title  string
}

// Candidate builds a candidate message.
func Candidate(rawURL string, vector SourceVector) Message {
	return Message{Kind: KindCandidate, URL: rawURL, Vector: vector}
}

// WithTitle returns m carrying the page title it was posted under.
func (m Message) WithTitle(title string) Message {
	m.Title = strings.TrimSpace(title)
	return m
}

// Reset builds a gate reset message.
func Reset() Message {
	return Message{Kind: KindReset}
}

const (
	candidateEnvelope = `{"name":"videoPlayback","body":""}`
	resetEnvelope     = `{"name":"resetDetector","body":true}`
)

// Encode renders m as the JSON envelope the bridge transport posts:
// {"name": "videoPlayback", "body": "<url>", "vector": "...", "title": "..."}.
func (m Message) Encode() ([]byte, error) {
	switch m.Kind {
	case KindCandidate:
		out, err := sjson.SetBytes([]byte(candidateEnvelope), "body", m.URL)
		if err == nil && m.Vector != "" {
			out, err = sjson.SetBytes(out, "vector", string(m.Vector))
		}
		if err == nil && m.Title != "" {
			out, err = sjson.SetBytes(out, "title", m.Title)
		}
		return out, err
	case KindReset:
		return []byte(resetEnvelope), nil
	}
	return nil, fmt.Errorf("encode %v: %w", m.Kind, ErrUnknownMessage)
}

// DecodeMessage parses a JSON envelope. The resetDetector body is ignored:
// presence of the name is the signal.
func DecodeMessage(data []byte) (Message, error) {
	if !gjson.ValidBytes(data) {
		return Message{}, ErrBadPayload
	}
	res := gjson.ParseBytes(data)
	m, err := FromWire(res.Get("name").String(), res.Get("body"), SourceVector(res.Get("vector").String()))
	if err != nil || m.Kind != KindCandidate {
		return m, err
	}
	return m.WithTitle(res.Get("title").String()), nil
}

// FromWire maps a message handler name and its body to a Message.
func FromWire(name string, body gjson.Result, vector SourceVector) (Message, error) {
	switch name {
	case NameCandidate:
		if body.Type != gjson.String {
			return Message{}, fmt.Errorf("%s: %w", name, ErrBadPayload)
		}
		if !knownVectors[vector] {
			vector = ""
		}
		return Candidate(body.String(), vector), nil
	case NameReset:
		return Reset(), nil
	}
	return Message{}, fmt.Errorf("%q: %w", name, ErrUnknownMessage)
}
