package valueobjects

import (
	"encoding/json"
	"strings"
)

// Payload is the type-specific body of a node. Upstream ingestion owns its
// shape; the core only reads well-known text fields out of it.
type Payload map[string]interface{}

// Well-known payload keys
const (
	PayloadContent    = "content"
	PayloadText       = "text"
	PayloadURL        = "url"
	PayloadTranscript = "transcript"
	PayloadCaption    = "caption"
	PayloadTitle      = "title"
)

// NewTextPayload builds a payload holding a single content string
func NewTextPayload(content string) Payload {
	return Payload{PayloadContent: content}
}

// String returns the trimmed string stored under key, or "" if absent or not a string
func (p Payload) String(key string) string {
	if p == nil {
		return ""
	}
	v, ok := p[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

// FirstString returns the first non-empty string among keys
func (p Payload) FirstString(keys ...string) string {
	for _, k := range keys {
		if s := p.String(k); s != "" {
			return s
		}
	}
	return ""
}

// Clone returns a shallow copy
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// JSON encodes the payload for row storage
func (p Payload) JSON() (string, error) {
	if p == nil {
		return "{}", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ParsePayload decodes a stored payload; an empty string yields an empty payload
func ParsePayload(raw string) (Payload, error) {
	if strings.TrimSpace(raw) == "" {
		return Payload{}, nil
	}
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, err
	}
	if p == nil {
		p = Payload{}
	}
	return p, nil
}
