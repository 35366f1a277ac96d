package chat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wschat/internal/app/chat"
	"wschat/internal/app/protocol"
	"wschat/internal/app/user"
)

func usersFrame(t *testing.T, names ...string) string {
	t.Helper()
	frame, err := protocol.Encode(protocol.NewUsers(names))
	require.NoError(t, err)
	return frame
}

func messageFrame(t *testing.T, from, body string) string {
	t.Helper()
	payload, err := protocol.EncodeMessagePayload(protocol.MessagePayload{From: from, Message: body})
	require.NoError(t, err)
	frame, err := protocol.Encode(protocol.NewMessage(payload))
	require.NoError(t, err)
	return frame
}

func TestApply_UsersReplacesRoster(t *testing.T) {
	state := chat.NewState()

	state, rerender, err := chat.Apply(state, usersFrame(t, "alice", "bob"))
	require.NoError(t, err)
	assert.True(t, rerender)
	assert.Equal(t, []user.Profile{user.NewProfile("alice"), user.NewProfile("bob")}, state.Users)

	state, rerender, err = chat.Apply(state, usersFrame(t, "carol"))
	require.NoError(t, err)
	assert.True(t, rerender)
	assert.Equal(t, []user.Profile{user.NewProfile("carol")}, state.Users, "snapshots replace, never merge")
}

func TestApply_UsersScenario(t *testing.T) {
	state, rerender, err := chat.Apply(chat.NewState(),
		`{"messageType":"users","dataArray":["alice","bob"],"data":null}`)
	require.NoError(t, err)
	require.True(t, rerender)

	require.Len(t, state.Users, 2)
	assert.Equal(t, "alice", state.Users[0].Name)
	assert.Equal(t, "bob", state.Users[1].Name)
	assert.Equal(t, "https://avatars.dicebear.com/api/adventurer-neutral/alice.svg", state.Users[0].AvatarURL)
}

func TestApply_EmptyRosterStillRerenders(t *testing.T) {
	state := chat.State{Users: []user.Profile{user.NewProfile("alice")}}

	state, rerender, err := chat.Apply(state, usersFrame(t))
	require.NoError(t, err)
	assert.True(t, rerender)
	assert.Empty(t, state.Users)
}

func TestApply_UsersIsIdempotent(t *testing.T) {
	frame := usersFrame(t, "alice", "bob")

	once, _, err := chat.Apply(chat.NewState(), frame)
	require.NoError(t, err)

	twice, rerender, err := chat.Apply(once, frame)
	require.NoError(t, err)

	assert.True(t, rerender, "identical snapshots are not diffed")
	assert.Equal(t, once.Users, twice.Users)
}

func TestApply_MessageAppends(t *testing.T) {
	state := chat.NewState()

	for i, body := range []string{"first", "second", "third"} {
		next, rerender, err := chat.Apply(state, messageFrame(t, "alice", body))
		require.NoError(t, err)
		assert.True(t, rerender)
		require.Len(t, next.Messages, i+1)
		assert.Equal(t, chat.Message{Sender: "alice", Body: body}, next.Messages[len(next.Messages)-1])
		state = next
	}

	assert.Equal(t, "first", state.Messages[0].Body)
	assert.Equal(t, "third", state.Messages[2].Body)
}

func TestApply_GifMessageScenario(t *testing.T) {
	raw := `{"messageType":"message","dataArray":null,"data":"{\"from\":\"alice\",\"message\":\"hello.gif\"}"}`

	state, rerender, err := chat.Apply(chat.NewState(), raw)
	require.NoError(t, err)
	assert.True(t, rerender)
	assert.Equal(t, []chat.Message{{Sender: "alice", Body: "hello.gif"}}, state.Messages)
}

func TestApply_MessageDoesNotTouchRoster(t *testing.T) {
	state := chat.State{Users: []user.Profile{user.NewProfile("bob")}}

	next, _, err := chat.Apply(state, messageFrame(t, "alice", "hi"))
	require.NoError(t, err)
	assert.Equal(t, state.Users, next.Users)
}

func TestApply_DoesNotWriteInputState(t *testing.T) {
	base := chat.State{Messages: make([]chat.Message, 1, 8)}
	base.Messages[0] = chat.Message{Sender: "alice", Body: "one"}

	a, _, err := chat.Apply(base, messageFrame(t, "bob", "two"))
	require.NoError(t, err)
	b, _, err := chat.Apply(base, messageFrame(t, "carol", "three"))
	require.NoError(t, err)

	assert.Len(t, base.Messages, 1)
	assert.Equal(t, "two", a.Messages[1].Body)
	assert.Equal(t, "three", b.Messages[1].Body)
}

func TestApply_RegisterIsNoOp(t *testing.T) {
	state := chat.State{Users: []user.Profile{user.NewProfile("alice")}}

	next, rerender, err := chat.Apply(state, `{"messageType":"register","dataArray":null,"data":"mallory"}`)
	require.NoError(t, err)
	assert.False(t, rerender)
	assert.Equal(t, state, next)
}

func TestApply_MalformedEnvelopeLeavesStateUnchanged(t *testing.T) {
	state := chat.State{
		Users:    []user.Profile{user.NewProfile("alice")},
		Messages: []chat.Message{{Sender: "alice", Body: "hi"}},
	}
	before := state.Clone()

	next, rerender, err := chat.Apply(state, "not json")
	require.Error(t, err)
	assert.False(t, rerender)
	assert.Equal(t, before, next)
	assert.Equal(t, before, state)

	var decodeErr *protocol.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, protocol.LayerEnvelope, decodeErr.Layer)
}

func TestApply_MalformedPayloadIsRecoverable(t *testing.T) {
	state := chat.State{Messages: []chat.Message{{Sender: "alice", Body: "hi"}}}

	next, rerender, err := chat.Apply(state, `{"messageType":"message","dataArray":null,"data":"plain text"}`)
	require.Error(t, err)
	assert.False(t, rerender)
	assert.Equal(t, state, next)

	var decodeErr *protocol.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, protocol.LayerPayload, decodeErr.Layer)
}

func TestPrepareOutbound(t *testing.T) {
	for _, text := range []string{"", "   ", "\t\n"} {
		_, ok := chat.PrepareOutbound(text)
		assert.False(t, ok, "%q", text)
	}

	env, ok := chat.PrepareOutbound(" hi ")
	require.True(t, ok)
	assert.Equal(t, protocol.KindMessage, env.Kind)
	assert.Equal(t, " hi ", env.Payload)
}

func TestState_CloneIsIndependent(t *testing.T) {
	s := chat.State{
		Users:    []user.Profile{user.NewProfile("alice")},
		Messages: []chat.Message{{Sender: "alice", Body: "hi"}},
	}

	c := s.Clone()
	c.Users[0].Name = "changed"
	c.Messages[0].Body = "changed"

	assert.Equal(t, "alice", s.Users[0].Name)
	assert.Equal(t, "hi", s.Messages[0].Body)
}
