package protocol

import (
	"encoding/json"
	"fmt"
)

// MessagePayload is the nested document of a server-to-client message envelope.
type MessagePayload struct {
	From    string `json:"from"`
	Message string `json:"message"`
}

// wirePayload keeps both keys required on decode.
type wirePayload struct {
	From    *string `json:"from"`
	Message *string `json:"message"`
}

// EncodeMessagePayload serializes p for use as a message envelope's data.
func EncodeMessagePayload(p MessagePayload) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("protocol: failed to encode message payload: %w", err)
	}
	return string(b), nil
}

// DecodeMessagePayload parses the data of a message envelope.
// Both "from" and "message" must be present strings; failures are *DecodeError
// with Layer LayerPayload.
func DecodeMessagePayload(data string) (MessagePayload, error) {
	var w wirePayload
	if err := json.Unmarshal([]byte(data), &w); err != nil {
		return MessagePayload{}, &DecodeError{Layer: LayerPayload, Reason: "invalid JSON document", Err: err}
	}

	switch {
	case w.From == nil:
		return MessagePayload{}, &DecodeError{Layer: LayerPayload, Reason: `missing "from"`}
	case w.Message == nil:
		return MessagePayload{}, &DecodeError{Layer: LayerPayload, Reason: `missing "message"`}
	}

	return MessagePayload{From: *w.From, Message: *w.Message}, nil
}
