package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"wschat/internal/pkg/errs"
)

// ErrDecode matches every *DecodeError through errors.Is.
var ErrDecode = errors.New("protocol: decode failed")

// Layer tells which level of a frame failed to decode.
type Layer string

const (
	// LayerEnvelope is the outer messageType/dataArray/data document.
	LayerEnvelope Layer = "envelope"

	// LayerPayload is the nested {from, message} document of a message envelope.
	LayerPayload Layer = "payload"
)

// DecodeError reports a frame that does not match the protocol.
type DecodeError struct {
	Layer  Layer
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol: invalid %s: %s: %v", e.Layer, e.Reason, e.Err)
	}
	return fmt.Sprintf("protocol: invalid %s: %s", e.Layer, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is matches ErrDecode and the errs code of the failing layer.
func (e *DecodeError) Is(target error) bool {
	if target == ErrDecode {
		return true
	}
	var customErr *errs.CustomError
	if errors.As(target, &customErr) {
		return customErr.Code == e.Code()
	}
	return false
}

// Code returns the errs code for the failing layer.
func (e *DecodeError) Code() int {
	if e.Layer == LayerPayload {
		return errs.ErrPayloadMalformed
	}
	return errs.ErrEnvelopeMalformed
}

// wireEnvelope is the JSON shape on the wire. Pointers distinguish null from empty.
type wireEnvelope struct {
	MessageType Kind      `json:"messageType"`
	DataArray   *[]string `json:"dataArray"`
	Data        *string   `json:"data"`
}

// Encode serializes env into its canonical wire form.
// A users envelope with a nil list encodes an empty array.
func Encode(env Envelope) (string, error) {
	w := wireEnvelope{MessageType: env.Kind}

	switch env.Kind {
	case KindUsers:
		list := env.PayloadList
		if list == nil {
			list = []string{}
		}
		w.DataArray = &list
	case KindRegister, KindMessage:
		data := env.Payload
		w.Data = &data
	default:
		return "", fmt.Errorf("protocol: cannot encode unknown message type %q", env.Kind)
	}

	b, err := json.Marshal(w)
	if err != nil {
		return "", fmt.Errorf("protocol: failed to encode envelope: %w", err)
	}
	return string(b), nil
}

// MustEncode is Encode for envelopes built with the New* constructors; it panics on error.
func MustEncode(env Envelope) string {
	s, err := Encode(env)
	if err != nil {
		panic(err)
	}
	return s
}

// Decode parses raw and checks that the payload required by its kind is present
// and that a users roster names nobody twice.
// Every failure is a *DecodeError with Layer LayerEnvelope.
func Decode(raw string) (Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return Envelope{}, &DecodeError{Layer: LayerEnvelope, Reason: "invalid JSON document", Err: err}
	}

	if !w.MessageType.Valid() {
		return Envelope{}, &DecodeError{
			Layer:  LayerEnvelope,
			Reason: fmt.Sprintf("unknown messageType %q", w.MessageType),
		}
	}

	env := Envelope{Kind: w.MessageType}

	switch w.MessageType {
	case KindUsers:
		if w.DataArray == nil {
			return Envelope{}, &DecodeError{Layer: LayerEnvelope, Reason: "users envelope without dataArray"}
		}
		if name, ok := firstDuplicate(*w.DataArray); ok {
			return Envelope{}, &DecodeError{
				Layer:  LayerEnvelope,
				Reason: fmt.Sprintf("duplicate username %q", name),
			}
		}
		env.PayloadList = *w.DataArray
	case KindRegister, KindMessage:
		if w.Data == nil {
			return Envelope{}, &DecodeError{
				Layer:  LayerEnvelope,
				Reason: fmt.Sprintf("%s envelope without data", w.MessageType),
			}
		}
		env.Payload = *w.Data
	}

	return env, nil
}

func firstDuplicate(names []string) (string, bool) {
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			return name, true
		}
		seen[name] = struct{}{}
	}
	return "", false
}
