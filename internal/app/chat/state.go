/*
Package chat contains the client-side chat state and the session that keeps it in sync.

This file defines the reducer: State holds the online roster and the message log, Apply
folds one inbound frame into a new State and tells whether the view must re-render, and
PrepareOutbound turns typed text into the envelope to send.
*/
package chat

import (
	"strings"

	"wschat/internal/app/protocol"
	"wschat/internal/app/user"
)

// Message is one entry of the message log.
type Message struct {
	Sender string `json:"sender"`
	Body   string `json:"body"`
}

// State is the render-relevant view of a chat session.
// The roster is replaced wholesale on each snapshot; the log only grows.
type State struct {
	Users    []user.Profile
	Messages []Message
}

// NewState returns the empty state a session starts with.
func NewState() State {
	return State{}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := State{}
	if s.Users != nil {
		out.Users = append([]user.Profile(nil), s.Users...)
	}
	if s.Messages != nil {
		out.Messages = append([]Message(nil), s.Messages...)
	}
	return out
}

// Apply decodes raw and folds it into state.
//
// A users snapshot replaces the roster and a message is appended to the log; both
// request a re-render. A register frame is ignored. On any decode failure the input
// state is returned untouched together with a *protocol.DecodeError whose Layer tells
// whether the envelope or the nested message payload was invalid.
//
// Apply never writes to the slices of the state it is given.
func Apply(state State, raw string) (State, bool, error) {
	env, err := protocol.Decode(raw)
	if err != nil {
		return state, false, err
	}
	return ApplyEnvelope(state, env)
}

// ApplyEnvelope folds an already decoded envelope into state. See Apply.
func ApplyEnvelope(state State, env protocol.Envelope) (State, bool, error) {
	switch env.Kind {
	case protocol.KindUsers:
		users := make([]user.Profile, 0, len(env.PayloadList))
		for _, name := range env.PayloadList {
			users = append(users, user.NewProfile(name))
		}
		state.Users = users
		return state, true, nil

	case protocol.KindMessage:
		payload, err := protocol.DecodeMessagePayload(env.Payload)
		if err != nil {
			return state, false, err
		}
		n := len(state.Messages)
		// cap == len: append must not write into the caller's backing array
		state.Messages = append(state.Messages[:n:n], Message{Sender: payload.From, Body: payload.Message})
		return state, true, nil

	default:
		// register only travels client to server
		return state, false, nil
	}
}

// PrepareOutbound builds the outbound message envelope for text typed by the user.
// It returns false when text is empty or whitespace only. The envelope carries text
// exactly as typed; the log only gains the message once the server echoes it back.
func PrepareOutbound(text string) (protocol.Envelope, bool) {
	if strings.TrimSpace(text) == "" {
		return protocol.Envelope{}, false
	}
	return protocol.NewMessage(text), true
}
