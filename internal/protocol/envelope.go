package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Request is an inbound message.
type Request struct {
	ID      string          `json:"id,omitempty"`
	Type    Kind            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response answers a Request with the authoritative post-operation state.
type Response struct {
	ID      string `json:"id,omitempty"`
	Type    Kind   `json:"type"`
	OK      bool   `json:"ok"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Message is a service -> page push.
type Message struct {
	Type    Kind `json:"type"`
	Payload any  `json:"payload,omitempty"`
}

// DecodeRequest parses an inbound message. Unknown and service-only types are rejected.
func DecodeRequest(data []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		if errors.Is(err, ErrUnknownKind) {
			return Request{}, err
		}
		return Request{}, fmt.Errorf("decode message: %w", err)
	}
	if req.Type == "" {
		return Request{}, fmt.Errorf("%w: missing type", ErrUnknownKind)
	}
	if !req.Type.Inbound() {
		return Request{}, fmt.Errorf("%w: %s", ErrWrongDirection, req.Type)
	}
	return req, nil
}

// HasPayload reports whether a non-null payload was sent.
func (r Request) HasPayload() bool {
	p := bytes.TrimSpace(r.Payload)
	return len(p) > 0 && !bytes.Equal(p, []byte("null"))
}

// Decode unmarshals the payload into v. A missing payload is an error.
func (r Request) Decode(v any) error {
	if !r.HasPayload() {
		return fmt.Errorf("%w: %s requires a payload", ErrBadPayload, r.Type)
	}
	if err := json.Unmarshal(r.Payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return nil
}

// Reply builds a successful response to r.
func (r Request) Reply(payload any) Response {
	return Response{ID: r.ID, Type: r.Type, OK: true, Payload: payload}
}

// Fail builds a failed response to r.
func (r Request) Fail(err error) Response {
	return Response{ID: r.ID, Type: r.Type, OK: false, Error: err.Error()}
}
