/*
Package errs provides custom error types and application-level error code constants.

These codes identify protocol, session, transport and relay failures so they can be told
apart in logs, metrics and the relay's JSON responses.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007
)

// 2xxx: Wire Protocol Errors
const (
	// ErrEnvelopeMalformed indicates that an inbound frame is not a valid protocol envelope.
	ErrEnvelopeMalformed = 2101

	// ErrPayloadMalformed indicates that a message envelope carried an invalid nested payload.
	ErrPayloadMalformed = 2102

	// ErrUnsupportedMessageType indicates a message type the receiver does not handle.
	ErrUnsupportedMessageType = 2103
)

// 3xxx: User and Session Errors
const (
	// ErrInvalidUsername indicates that the username does not satisfy the entry rules.
	ErrInvalidUsername = 3001

	// ErrSessionClosed indicates an operation on a chat session that has been torn down.
	ErrSessionClosed = 3002

	// ErrSessionKicked indicates that the connection was replaced by a newer one with the same name.
	ErrSessionKicked = 3004

	// ErrNotRegistered indicates a chat message sent before the peer registered a username.
	ErrNotRegistered = 3005
)

// 4xxx: Transport Errors
const (
	// ErrSendQueueFull indicates that the outbound queue had no room for the frame.
	ErrSendQueueFull = 4001

	// ErrTransportClosed indicates that the connection is closed or was never opened.
	ErrTransportClosed = 4002

	// ErrSendRateLimited indicates that the outbound rate limiter rejected the frame.
	ErrSendRateLimited = 4003

	// ErrDialFailed indicates that the websocket connection could not be established.
	ErrDialFailed = 4004
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified internal error.
	ErrUnknown = 5000
)
