// Package protocol implements the room chat wire protocol: frames carrying a
// kind tag, an optional roster list and an optional string payload.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Kind tags a frame.
type Kind string

const (
	KindUsers    Kind = "users"
	KindRegister Kind = "register"
	KindMessage  Kind = "message"
)

// String returns the wire representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// Frame is one unit of wire data exchanged with the server.
//
// DataList carries the full roster and is only set for KindUsers. Data
// carries the registering name for KindRegister or a nested message payload
// for KindMessage. A nil field is encoded as null.
type Frame struct {
	Kind     Kind     `json:"messageType"`
	DataList []string `json:"dataArray"`
	Data     *string  `json:"data"`
}

// DataString returns Data, or "" when absent.
func (f Frame) DataString() string {
	if f.Data == nil {
		return ""
	}
	return *f.Data
}

// Payload is the nested body of a message frame. Inbound payloads carry both
// fields; outbound payloads leave From empty because the server attributes
// the sender.
type Payload struct {
	From    string `json:"from,omitempty"`
	Message string `json:"message"`
}

// EncodeRegister builds the frame announcing name to the server.
func EncodeRegister(name string) Frame {
	return Frame{
		Kind: KindRegister,
		Data: &name,
	}
}

// EncodeMessage builds the frame submitting body to the room.
func EncodeMessage(body string) (Frame, error) {
	data, err := json.Marshal(Payload{Message: body})
	if err != nil {
		return Frame{}, fmt.Errorf("failed to encode message payload: %w", err)
	}
	s := string(data)
	return Frame{
		Kind: KindMessage,
		Data: &s,
	}, nil
}
