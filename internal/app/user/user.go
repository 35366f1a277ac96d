/*
Package user contains the identity of chat participants as the client sees them.

It defines the Profile shown in the roster and next to messages, the deterministic
avatar derivation, and the username rule applied before a session starts.
*/
package user

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"wschat/internal/pkg/errs"
)

const (
	// AvatarURLTemplate is the avatar service URL; %s is the path-escaped username.
	AvatarURLTemplate = "https://avatars.dicebear.com/api/adventurer-neutral/%s.svg"

	// MinUsernameLength is the minimum username length, in characters.
	MinUsernameLength = 3
)

// Profile represents a participant as displayed by the client.
type Profile struct {

	// Name is the username, unique within one roster snapshot.
	Name string `json:"name"`

	// AvatarURL is derived from Name by AvatarURL.
	AvatarURL string `json:"avatarUrl"`
}

// NewProfile builds the profile for name with its derived avatar.
func NewProfile(name string) Profile {
	return Profile{Name: name, AvatarURL: AvatarURL(name)}
}

// AvatarURL derives the avatar image URL for username. It is a pure function of the name.
func AvatarURL(username string) string {
	return fmt.Sprintf(AvatarURLTemplate, url.PathEscape(username))
}

// ValidateUsername checks the entry rule: at least MinUsernameLength characters
// once surrounding whitespace is ignored.
func ValidateUsername(username string) error {
	if utf8.RuneCountInString(strings.TrimSpace(username)) < MinUsernameLength {
		return errs.NewError(errs.ErrInvalidUsername, MinUsernameLength)
	}
	return nil
}
