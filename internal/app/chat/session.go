/*
Package chat contains the client-side chat state and the session that keeps it in sync.

This file defines the Session, which owns one State for the lifetime of a chat view. It
registers the username with the server, subscribes to the transport's inbound stream,
applies every inbound frame in delivery order, and turns user input into outbound frames.
*/
package chat

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"wschat/internal/app/protocol"
	"wschat/internal/pkg/errs"
	"wschat/internal/pkg/logx"
	"wschat/internal/pkg/metrics"
	"wschat/internal/pkg/randx"
)

// Bridge is the duplex channel a Session talks through.
type Bridge interface {
	// Send hands one serialized frame to the transport without blocking.
	Send(frame string) error

	// Subscribe registers handler for inbound frames, in delivery order.
	// Delivery may be lossy: a bridge can drop frames for a handler that falls behind.
	// Send may call handlers before it returns.
	// The returned function removes the handler.
	Subscribe(handler func(frame string)) (unsubscribe func())
}

// Phase is the lifecycle stage of a Session.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseRegistering
	PhaseActive
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseRegistering:
		return "registering"
	case PhaseActive:
		return "active"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Option configures a Session.
type Option func(*Session)

// WithOnChange sets the callback invoked with a state snapshot after every inbound
// frame that requires a re-render. It runs on the delivering goroutine, outside the
// session lock.
func WithOnChange(fn func(State)) Option {
	return func(s *Session) {
		s.onChange = fn
	}
}

// WithMetrics sets the collectors that count applied frames and decode failures.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// Session is one chat view's state plus its link to the transport.
// State and phase changes are serialized through mu.
type Session struct {
	id       string
	username string
	bridge   Bridge

	mu          sync.Mutex
	state       State
	phase       Phase
	unsubscribe func()

	onChange func(State)
	metrics  *metrics.Metrics

	// structured logger with session context.
	logger zerolog.Logger
}

// NewSession starts a session for username over bridge.
//
// The username is registered exactly as given; callers check it with
// user.ValidateUsername beforehand. The session subscribes to the bridge and then sends
// one register envelope; registration is fire-and-forget, so a failed send is logged and
// the session still becomes active.
func NewSession(username string, bridge Bridge, opts ...Option) (*Session, error) {
	if bridge == nil {
		return nil, errors.New("chat: nil bridge")
	}

	id := randx.SessionID()
	s := &Session{
		id:       id,
		username: username,
		bridge:   bridge,
		state:    NewState(),
		phase:    PhaseUninitialized,
		logger: logx.Logger().With().
			Str("component", "session").
			Str("session_id", id).
			Str("username", username).
			Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setPhase(PhaseRegistering)

	unsubscribe := bridge.Subscribe(func(frame string) {
		s.ApplyInbound(frame)
	})

	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	s.register()

	s.setPhase(PhaseActive)
	s.logger.Info().Msg("Chat session active.")

	return s, nil
}

func (s *Session) setPhase(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseClosed {
		return
	}
	s.phase = p
}

// register sends the register envelope.
func (s *Session) register() {
	frame, err := protocol.Encode(protocol.NewRegister(s.username))
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode register envelope.")
		return
	}

	if err := s.bridge.Send(frame); err != nil {
		s.logger.Warn().Err(err).Msg("Register envelope was not sent.")
		return
	}

	s.logger.Debug().Msg("Register envelope sent.")
}

// ApplyInbound applies one raw inbound frame and reports whether the view must re-render.
//
// Frames that fail to decode, at either the envelope or the nested payload layer, are
// logged, counted and dropped: the state is unchanged and false is returned. Frames that
// arrive after Close are ignored.
func (s *Session) ApplyInbound(raw string) bool {
	s.mu.Lock()

	if s.phase == PhaseClosed {
		s.mu.Unlock()
		return false
	}

	next, rerender, err := s.apply(raw)
	if err != nil {
		s.mu.Unlock()
		s.reportDecodeFailure(raw, err)
		return false
	}

	s.state = next

	var snapshot State
	notify := rerender && s.onChange != nil
	if notify {
		snapshot = s.state.Clone()
	}

	s.mu.Unlock()

	if notify {
		s.onChange(snapshot)
	}
	return rerender
}

func (s *Session) apply(raw string) (State, bool, error) {
	env, err := protocol.Decode(raw)
	if err != nil {
		return s.state, false, err
	}

	next, rerender, err := ApplyEnvelope(s.state, env)
	if err != nil {
		return s.state, false, err
	}

	s.metrics.Inbound(env.Kind.String())
	if env.Kind == protocol.KindRegister {
		s.logger.Debug().Msg("Ignoring inbound register envelope.")
	}
	return next, rerender, nil
}

func (s *Session) reportDecodeFailure(raw string, err error) {
	layer := protocol.LayerEnvelope
	var decodeErr *protocol.DecodeError
	if errors.As(err, &decodeErr) {
		layer = decodeErr.Layer
	}

	s.metrics.DecodeFailure(string(layer))

	s.logger.Warn().
		Err(err).
		Str("layer", string(layer)).
		Int("code", errs.CodeOf(err)).
		Str("frame", raw).
		Msg("Dropping inbound frame that failed to decode.")
}

// Submit sends text typed by the user as a chat message.
//
// Whitespace-only text is a no-op and returns (false, nil). A successful hand-off returns
// (true, nil). In both cases the caller clears its input. A transport failure returns
// (false, err) and the caller keeps the input. Submit never changes the state: the
// message appears once the server echoes it back.
func (s *Session) Submit(text string) (bool, error) {
	s.mu.Lock()
	closed := s.phase == PhaseClosed
	s.mu.Unlock()

	if closed {
		return false, errs.NewError(errs.ErrSessionClosed)
	}

	env, ok := PrepareOutbound(text)
	if !ok {
		return false, nil
	}

	frame, err := protocol.Encode(env)
	if err != nil {
		return false, fmt.Errorf("encode message: %w", err)
	}

	// Send runs unlocked: a bridge may echo the frame to ApplyInbound before returning.
	if err := s.bridge.Send(frame); err != nil {
		s.logger.Warn().Err(err).Int("code", errs.CodeOf(err)).Msg("Failed to send chat message.")
		return false, fmt.Errorf("send message: %w", err)
	}

	return true, nil
}

// State returns a copy of the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Username returns the username the session registered with.
func (s *Session) Username() string {
	return s.username
}

// ID returns the session's log correlation ID.
func (s *Session) ID() string {
	return s.id
}

// Close ends the session and removes its subscription. It is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.phase == PhaseClosed {
		s.mu.Unlock()
		return
	}
	s.phase = PhaseClosed
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}

	s.logger.Info().Msg("Chat session closed.")
}
