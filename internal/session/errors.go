package session

import (
	"errors"
	"fmt"

	"github.com/omochice/roomchat/pkg/protocol"
)

var (
	// ErrEmptyName is returned when a session is created without a name.
	ErrEmptyName = errors.New("self name must not be empty")
	// ErrNilTransport is returned when a session is created without a transport.
	ErrNilTransport = errors.New("transport must not be nil")
)

// SendError reports an outbound frame the transport did not deliver.
type SendError struct {
	Kind protocol.Kind
	Err  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("failed to send %s frame: %v", e.Kind, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}
