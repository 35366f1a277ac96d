/*
Package errs provides custom error types and application-level error code constants.

This file maps every error code to its CustomError template.
*/
package errs

import "net/http"

// errorMap stores the CustomError template for each application error code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrRateLimitExceeded: {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Wire Protocol Errors
	ErrEnvelopeMalformed:      {Code: ErrEnvelopeMalformed, Message: "Malformed protocol envelope."},
	ErrPayloadMalformed:       {Code: ErrPayloadMalformed, Message: "Malformed message payload."},
	ErrUnsupportedMessageType: {Code: ErrUnsupportedMessageType, Message: "Unsupported message type: %s."},

	// 3xxx: User and Session Errors
	ErrInvalidUsername: {Code: ErrInvalidUsername, Message: "Username should be at least %d characters."},
	ErrSessionClosed:   {Code: ErrSessionClosed, Message: "Chat session is closed."},
	ErrSessionKicked:   {Code: ErrSessionKicked, Message: "You were signed in from another connection."},
	ErrNotRegistered:   {Code: ErrNotRegistered, Message: "Register a username before sending messages."},

	// 4xxx: Transport Errors
	ErrSendQueueFull:   {Code: ErrSendQueueFull, Message: "Outbound queue is full."},
	ErrTransportClosed: {Code: ErrTransportClosed, Message: "Not connected to the chat server."},
	ErrSendRateLimited: {Code: ErrSendRateLimited, Message: "Sending too fast. Slow down."},
	ErrDialFailed:      {Code: ErrDialFailed, Message: "Could not connect to the chat server."},

	// 5xxx: Internal System Errors
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
