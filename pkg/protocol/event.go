package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMissingData is returned when a message frame has no payload.
	ErrMissingData = errors.New("message frame has no data")
	// ErrMissingField is returned when a message payload lacks from or message.
	ErrMissingField = errors.New("message payload is missing a field")
)

// Event is a decoded inbound frame.
type Event interface {
	event()
}

// RosterReplaced carries the full list of online names.
type RosterReplaced struct {
	Names []string
}

// MessageReceived carries one message attributed by the server.
type MessageReceived struct {
	From string
	Body string
}

// Unrecognized is any frame whose kind this client does not handle.
type Unrecognized struct {
	Kind Kind
}

func (RosterReplaced) event()  {}
func (MessageReceived) event() {}
func (Unrecognized) event()    {}

// DecodeError reports an inbound frame that could not be decoded.
type DecodeError struct {
	Raw string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode frame %q: %v", e.Raw, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decode parses raw with c and converts the frame to an Event. Every failure
// is a *DecodeError carrying raw.
func Decode(c Codec, raw []byte) (Event, error) {
	f, err := c.Unmarshal(raw)
	if err != nil {
		return nil, &DecodeError{Raw: string(raw), Err: err}
	}
	ev, err := DecodeEvent(f)
	if err != nil {
		return nil, &DecodeError{Raw: string(raw), Err: err}
	}
	return ev, nil
}

// DecodeEvent converts an already parsed frame to an Event.
func DecodeEvent(f Frame) (Event, error) {
	switch f.Kind {
	case KindUsers:
		names := f.DataList
		if names == nil {
			names = []string{}
		}
		return RosterReplaced{Names: names}, nil
	case KindMessage:
		if f.Data == nil {
			return nil, ErrMissingData
		}
		var p struct {
			From    *string `json:"from"`
			Message *string `json:"message"`
		}
		if err := json.Unmarshal([]byte(*f.Data), &p); err != nil {
			return nil, fmt.Errorf("failed to decode message payload: %w", err)
		}
		if p.From == nil || p.Message == nil {
			return nil, ErrMissingField
		}
		return MessageReceived{From: *p.From, Body: *p.Message}, nil
	default:
		return Unrecognized{Kind: f.Kind}, nil
	}
}
