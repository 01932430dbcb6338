// Package session keeps the local view of a chat room in sync with the
// server: who is online and what has been said.
package session

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/omochice/roomchat/pkg/protocol"
)

// Transport delivers encoded frames to the server.
type Transport interface {
	Send(frame []byte) error
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Synchronizer) {
		s.logger = l
	}
}

// WithCodec sets the frame codec. The default is protocol.JSON.
func WithCodec(c protocol.Codec) Option {
	return func(s *Synchronizer) {
		s.codec = c
	}
}

// WithErrorHandler registers h before the register frame is sent, so a
// failed registration is observable.
func WithErrorHandler(h func(error)) Option {
	return func(s *Synchronizer) {
		s.errorHandlers = append(s.errorHandlers, h)
	}
}

// WithChangeListener registers fn as OnChange does, before any frame can be
// applied.
func WithChangeListener(fn func(State)) Option {
	return func(s *Synchronizer) {
		s.listeners = append(s.listeners, fn)
	}
}

// Synchronizer owns the room state of one session. Inbound frames are applied
// with HandleInbound; user actions are sent with SubmitMessage.
type Synchronizer struct {
	id        string
	selfName  string
	transport Transport
	codec     protocol.Codec
	logger    zerolog.Logger

	mu       sync.Mutex
	users    []UserProfile
	messages []ChatMessage
	closed   bool

	hmu           sync.RWMutex
	listeners     []func(State)
	errorHandlers []func(error)
}

// New creates a session for selfName and sends its register frame. A failed
// registration is reported but does not fail construction.
func New(transport Transport, selfName string, opts ...Option) (*Synchronizer, error) {
	if transport == nil {
		return nil, ErrNilTransport
	}
	if strings.TrimSpace(selfName) == "" {
		return nil, ErrEmptyName
	}

	s := &Synchronizer{
		id:        uuid.NewString(),
		selfName:  selfName,
		transport: transport,
		codec:     protocol.JSON,
		logger:    zerolog.Nop(),
		users:     []UserProfile{},
		messages:  []ChatMessage{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("session", s.id).Str("user", selfName).Logger()

	if err := s.send(protocol.EncodeRegister(selfName)); err != nil {
		s.report(err)
	} else {
		s.logger.Debug().Msg("registered")
	}
	return s, nil
}

// ID returns the session id used in logs.
func (s *Synchronizer) ID() string {
	return s.id
}

// SelfName returns the name the session registered with.
func (s *Synchronizer) SelfName() string {
	return s.selfName
}

// HandleInbound decodes raw and applies it to the state. Frames that fail to
// decode are reported and dropped; they never stop the session.
func (s *Synchronizer) HandleInbound(raw []byte) {
	ev, err := protocol.Decode(s.codec, raw)
	if err != nil {
		if !s.Closed() {
			s.report(err)
		}
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	changed := s.apply(ev)
	st := s.snapshot()
	s.mu.Unlock()

	if changed {
		s.notify(st)
	}
}

// apply must be called with mu held.
func (s *Synchronizer) apply(ev protocol.Event) bool {
	switch ev := ev.(type) {
	case protocol.RosterReplaced:
		names := lo.Uniq(lo.Compact(ev.Names))
		if len(names) != len(ev.Names) {
			s.logger.Debug().Strs("names", ev.Names).Msg("dropped empty or duplicate names from roster")
		}
		s.users = lo.Map(names, func(name string, _ int) UserProfile {
			return newUserProfile(name)
		})
		s.logger.Debug().Int("users", len(s.users)).Msg("roster replaced")
		return true
	case protocol.MessageReceived:
		s.messages = append(s.messages, ChatMessage{From: ev.From, Body: ev.Body})
		s.logger.Debug().Str("from", ev.From).Int("messages", len(s.messages)).Msg("message received")
		return true
	case protocol.Unrecognized:
		s.logger.Debug().Str("kind", ev.Kind.String()).Msg("ignored frame")
		return false
	default:
		return false
	}
}

// SubmitMessage sends body to the room. Blank bodies are ignored. The message
// is not added to the local history; it appears once the server echoes it.
func (s *Synchronizer) SubmitMessage(body string) error {
	if strings.TrimSpace(body) == "" || s.Closed() {
		return nil
	}

	f, err := protocol.EncodeMessage(body)
	if err != nil {
		serr := &SendError{Kind: protocol.KindMessage, Err: err}
		s.report(serr)
		return serr
	}
	if err := s.send(f); err != nil {
		s.report(err)
		return err
	}
	return nil
}

func (s *Synchronizer) send(f protocol.Frame) error {
	data, err := s.codec.Marshal(f)
	if err != nil {
		return &SendError{Kind: f.Kind, Err: err}
	}
	if err := s.transport.Send(data); err != nil {
		return &SendError{Kind: f.Kind, Err: err}
	}
	return nil
}

// State returns a snapshot of the session.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// snapshot must be called with mu held. Users is replaced wholesale and
// messages only grow, so capping the slices is enough to isolate readers.
func (s *Synchronizer) snapshot() State {
	return State{
		SelfName: s.selfName,
		Users:    s.users[:len(s.users):len(s.users)],
		Messages: s.messages[:len(s.messages):len(s.messages)],
	}
}

// OnChange registers fn to be called with the new state after every change.
// Listeners run on the goroutine that applied the change, in no particular
// order.
func (s *Synchronizer) OnChange(fn func(State)) {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// OnError registers fn to be called with every decode and send failure.
func (s *Synchronizer) OnError(fn func(error)) {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	s.errorHandlers = append(s.errorHandlers, fn)
}

// Close stops the session. Later inbound frames and submits are ignored.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.logger.Debug().Msg("closed")
}

// Closed reports whether Close was called.
func (s *Synchronizer) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Synchronizer) notify(st State) {
	s.hmu.RLock()
	listeners := s.listeners
	s.hmu.RUnlock()

	for _, fn := range listeners {
		fn(st)
	}
}

func (s *Synchronizer) report(err error) {
	var decodeErr *protocol.DecodeError
	switch {
	case errors.As(err, &decodeErr):
		s.logger.Warn().Err(decodeErr.Err).Str("raw", decodeErr.Raw).Msg("dropped malformed frame")
	default:
		s.logger.Error().Err(err).Msg("send failed")
	}

	s.hmu.RLock()
	handlers := s.errorHandlers
	s.hmu.RUnlock()

	for _, fn := range handlers {
		fn(err)
	}
}
