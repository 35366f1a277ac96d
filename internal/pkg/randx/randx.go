/*
Package randx provides functions for generating random identifiers.

It generates UUIDs that correlate a chat session or a relay peer across log lines, and
random guest usernames for clients started without one.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

const (
	// Base62Chars defines the character set used for Base62 encoding (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the total number of characters in the Base62 character set (62).
	Base62Len = int64(len(Base62Chars))

	// GuestNamePrefix is the prefix of generated guest usernames.
	GuestNamePrefix = "guest_"

	// GuestNameRawLength is the length of the random Base62 part of a guest username.
	GuestNameRawLength = 6
)

// SessionID returns a UUID v4 string identifying one chat session.
func SessionID() string {
	return uuid.New().String()
}

// PeerID returns a UUID v4 string identifying one relay connection.
func PeerID() string {
	return uuid.New().String()
}

// GuestName generates a username made of GuestNamePrefix and random Base62 characters.
func GuestName() (string, error) {
	result := make([]byte, GuestNameRawLength)

	for i := range GuestNameRawLength {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number for guest name: %w", err)
		}
		result[i] = Base62Chars[num.Int64()]
	}

	return GuestNamePrefix + string(result), nil
}
