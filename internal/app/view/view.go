/*
Package view projects chat state into a display tree.

Render is a pure function of a chat.State: it never mutates the state and the same
state always yields the same tree. The tree is independent of any drawing technology;
Terminal draws it for the terminal surface.
*/
package view

import (
	"wschat/internal/app/chat"
	"wschat/internal/app/user"
)

const (
	// Title is the application name shown in the header.
	Title = "wschat"

	// ConnectedBadge is the connection label shown in the header.
	ConnectedBadge = "Connected"

	// OnlineStatus is the status shown for every roster entry.
	OnlineStatus = "Online"

	// TimestampLabel is the relative time shown for every message.
	TimestampLabel = "just now"

	// RosterPlaceholder replaces the roster when nobody is online.
	RosterPlaceholder = "Waiting for users to connect..."

	// LogPlaceholder replaces the message log when it is empty.
	LogPlaceholder = "No messages yet"

	// LogHint accompanies LogPlaceholder.
	LogHint = "Start the conversation by typing a message below."
)

// Tree is the display tree for one state.
type Tree struct {
	Header Header
	Roster Roster
	Log    Log
}

// Header is the top bar.
type Header struct {
	Title string
	Badge string
}

// Roster is the online users panel. When Entries is empty, Placeholder is set.
type Roster struct {
	Entries     []UserEntry
	Placeholder string
}

// Empty reports whether the roster shows its placeholder.
func (r Roster) Empty() bool {
	return len(r.Entries) == 0
}

// UserEntry is one online user.
type UserEntry struct {
	Name      string
	AvatarURL string
	Status    string
}

// Log is the message panel. When Entries is empty, Placeholder and Hint are set.
type Log struct {
	Entries     []MessageEntry
	Placeholder string
	Hint        string
}

// Empty reports whether the log shows its placeholder.
func (l Log) Empty() bool {
	return len(l.Entries) == 0
}

// MessageEntry is one message with its resolved author.
type MessageEntry struct {
	Author user.Profile

	// Fallback is true when the sender was not in the roster and Author was derived
	// from the sender name alone.
	Fallback bool

	Content   Content
	Timestamp string
}

// Render builds the display tree for state.
func Render(state chat.State) Tree {
	return Tree{
		Header: Header{Title: Title, Badge: ConnectedBadge},
		Roster: renderRoster(state.Users),
		Log:    renderLog(state),
	}
}

func renderRoster(users []user.Profile) Roster {
	if len(users) == 0 {
		return Roster{Placeholder: RosterPlaceholder}
	}

	entries := make([]UserEntry, 0, len(users))
	for _, u := range users {
		entries = append(entries, UserEntry{
			Name:      u.Name,
			AvatarURL: u.AvatarURL,
			Status:    OnlineStatus,
		})
	}
	return Roster{Entries: entries}
}

func renderLog(state chat.State) Log {
	if len(state.Messages) == 0 {
		return Log{Placeholder: LogPlaceholder, Hint: LogHint}
	}

	entries := make([]MessageEntry, 0, len(state.Messages))
	for _, m := range state.Messages {
		author, found := resolveAuthor(state.Users, m.Sender)
		entries = append(entries, MessageEntry{
			Author:    author,
			Fallback:  !found,
			Content:   ClassifyBody(m.Body),
			Timestamp: TimestampLabel,
		})
	}
	return Log{Entries: entries}
}

// resolveAuthor looks sender up by exact name. A sender who has left is given a
// profile derived from the name; the roster itself is not touched.
func resolveAuthor(users []user.Profile, sender string) (user.Profile, bool) {
	for _, u := range users {
		if u.Name == sender {
			return u, true
		}
	}
	return user.NewProfile(sender), false
}
