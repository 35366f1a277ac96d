/*
Package protocol implements the chat wire protocol shared by the client and the relay.

Every frame is a JSON envelope with three keys, always present:

	{"messageType": "users" | "register" | "message", "dataArray": [...] | null, "data": "..." | null}

A users envelope carries the full roster in dataArray. A register envelope carries the
registering username in data and only travels from client to server. A message envelope
carries a nested JSON document {"from": ..., "message": ...} serialized into data.
*/
package protocol

// Kind is the envelope discriminator. Its value is the lowercase wire token.
type Kind string

const (
	// KindUsers carries the authoritative roster snapshot.
	KindUsers Kind = "users"

	// KindRegister announces the client's username once at session start.
	KindRegister Kind = "register"

	// KindMessage carries one chat message as a nested payload.
	KindMessage Kind = "message"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindUsers, KindRegister, KindMessage:
		return true
	default:
		return false
	}
}

// String returns the wire token.
func (k Kind) String() string {
	return string(k)
}

// Envelope is the decoded protocol unit.
// PayloadList is meaningful for KindUsers; Payload for KindRegister and KindMessage.
type Envelope struct {
	Kind        Kind
	PayloadList []string
	Payload     string
}

// NewUsers builds a roster snapshot envelope.
func NewUsers(names []string) Envelope {
	return Envelope{Kind: KindUsers, PayloadList: names}
}

// NewRegister builds the registration envelope for username.
func NewRegister(username string) Envelope {
	return Envelope{Kind: KindRegister, Payload: username}
}

// NewMessage builds a message envelope whose payload is data.
// Client-to-server frames carry the raw text; server-to-client frames carry
// an encoded MessagePayload.
func NewMessage(data string) Envelope {
	return Envelope{Kind: KindMessage, Payload: data}
}
