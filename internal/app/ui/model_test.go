package ui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wschat/internal/app/chat"
	"wschat/internal/app/user"
	"wschat/internal/pkg/errs"
)

type fakeSession struct {
	submitted []string
	err       error
	state     chat.State
}

func (f *fakeSession) Submit(text string) (bool, error) {
	f.submitted = append(f.submitted, text)
	if f.err != nil {
		return false, f.err
	}
	_, ok := chat.PrepareOutbound(text)
	return ok, nil
}

func (f *fakeSession) State() chat.State { return f.state.Clone() }

func (f *fakeSession) Username() string { return "alice" }

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return next.(Model)
}

func pressEnter(t *testing.T, m Model) Model {
	t.Helper()
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model)
}

func TestModel_EnterSubmitsAndClears(t *testing.T) {
	session := &fakeSession{}
	m := New(Options{Session: session})

	m = typeText(t, m, " hi ")
	require.Equal(t, " hi ", m.input.Value())

	m = pressEnter(t, m)

	assert.Equal(t, []string{" hi "}, session.submitted)
	assert.Empty(t, m.input.Value())
	assert.Empty(t, m.status)
}

func TestModel_WhitespaceSubmitClears(t *testing.T) {
	session := &fakeSession{}
	m := New(Options{Session: session})

	m = typeText(t, m, "   ")
	m = pressEnter(t, m)

	assert.Equal(t, []string{"   "}, session.submitted)
	assert.Empty(t, m.input.Value())
}

func TestModel_SendFailureKeepsInput(t *testing.T) {
	session := &fakeSession{err: errs.NewError(errs.ErrSendQueueFull)}
	m := New(Options{Session: session})

	m = typeText(t, m, "hello")
	m = pressEnter(t, m)

	assert.Equal(t, "hello", m.input.Value())
	assert.Equal(t, "Outbound queue is full.", m.status)
	assert.Contains(t, m.View(), "Outbound queue is full.")
}

func TestModel_StateMsgRedraws(t *testing.T) {
	session := &fakeSession{}
	m := New(Options{Session: session})

	assert.Contains(t, m.View(), "Waiting for users to connect...")
	assert.Contains(t, m.View(), "No messages yet")

	next, _ := m.Update(StateMsg{State: chat.State{
		Users:    []user.Profile{user.NewProfile("alice")},
		Messages: []chat.Message{{Sender: "alice", Body: "hello"}},
	}})
	m = next.(Model)

	out := m.View()
	assert.Contains(t, out, "wschat")
	assert.Contains(t, out, "Connected")
	assert.Contains(t, out, "hello")
	assert.NotContains(t, out, "No messages yet")
}

func TestModel_DisconnectBlocksSubmit(t *testing.T) {
	session := &fakeSession{}
	m := New(Options{Session: session})

	next, _ := m.Update(DisconnectedMsg{Err: errs.NewError(errs.ErrSessionKicked)})
	m = next.(Model)

	m = typeText(t, m, "hello")
	m = pressEnter(t, m)

	assert.Empty(t, session.submitted)
	assert.Equal(t, "hello", m.input.Value())
	assert.Contains(t, m.status, "signed in from another connection")
	assert.Equal(t, errs.ErrSessionKicked, errs.CodeOf(m.DisconnectErr()))
}

func TestModel_QuitKeys(t *testing.T) {
	m := New(Options{Session: &fakeSession{}})

	for _, key := range []tea.KeyType{tea.KeyCtrlC, tea.KeyEsc} {
		_, cmd := m.Update(tea.KeyMsg{Type: key})
		require.NotNil(t, cmd)
		assert.IsType(t, tea.QuitMsg{}, cmd())
	}
}

func TestNotifier_Coalesces(t *testing.T) {
	n := NewNotifier()
	session := &fakeSession{state: chat.State{Users: []user.Profile{user.NewProfile("bob")}}}
	m := New(Options{Session: session, Notifier: n})

	n.OnChange(chat.State{})
	n.OnChange(chat.State{})

	cmd := m.waitForChange()
	require.NotNil(t, cmd)

	msg := cmd()
	assert.Equal(t, StateMsg{State: session.State()}, msg)

	select {
	case <-n.ch:
		t.Fatal("second change should have been coalesced")
	default:
	}
}

func TestModel_WaitForDisconnect(t *testing.T) {
	done := make(chan struct{})
	m := New(Options{
		Session: &fakeSession{},
		Done:    done,
		Err:     func() error { return errs.NewError(errs.ErrTransportClosed) },
	})

	cmd := m.waitForDisconnect()
	require.NotNil(t, cmd)

	result := make(chan tea.Msg, 1)
	go func() { result <- cmd() }()

	close(done)

	select {
	case msg := <-result:
		require.IsType(t, DisconnectedMsg{}, msg)
		assert.Equal(t, errs.ErrTransportClosed, errs.CodeOf(msg.(DisconnectedMsg).Err))
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for DisconnectedMsg")
	}
}
