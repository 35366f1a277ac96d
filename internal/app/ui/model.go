/*
Package ui is the terminal chat surface.

It hosts one chat session in a bubbletea program: the header, roster and message log are
drawn from the session state through the view package, and an input line submits messages.
Enter sends the input; the input is cleared after a send or a whitespace-only submit and
kept when the transport rejects the message.
*/
package ui

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"wschat/internal/app/chat"
	"wschat/internal/app/view"
	"wschat/internal/pkg/errs"
)

const (
	defaultWidth  = 80
	defaultHeight = 24

	// header, input and status lines.
	chromeHeight = 3

	inputCharLimit = 4096
)

// Session is the part of *chat.Session the surface uses.
type Session interface {
	Submit(text string) (bool, error)
	State() chat.State
	Username() string
}

// Notifier coalesces session change callbacks into a wake-up signal for the program.
// Pass OnChange to chat.WithOnChange.
type Notifier struct {
	ch chan struct{}
}

// NewNotifier creates a Notifier.
func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan struct{}, 1)}
}

// OnChange records that the session state changed. It never blocks.
func (n *Notifier) OnChange(chat.State) {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

// StateMsg carries a fresh session state into the program.
type StateMsg struct {
	State chat.State
}

// DisconnectedMsg reports that the connection to the server ended.
type DisconnectedMsg struct {
	Err error
}

// Options configures a Model.
type Options struct {
	Session  Session
	Notifier *Notifier

	// Done is closed when the transport connection ends; Err explains why.
	Done <-chan struct{}
	Err  func() error
}

// Model is the bubbletea model of the chat surface.
type Model struct {
	opts Options

	input    textinput.Model
	viewport viewport.Model
	state    chat.State

	width  int
	height int

	// status is the last error shown under the input.
	status string

	disconnected  bool
	disconnectErr error
}

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00D7FF")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F5F"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8A8A8A"))
)

// New creates the model for opts.Session.
func New(opts Options) Model {
	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.CharLimit = inputCharLimit
	ti.Prompt = "> "
	ti.PromptStyle = promptStyle
	ti.Focus()

	m := Model{
		opts:     opts,
		input:    ti,
		viewport: viewport.New(defaultWidth, defaultHeight-chromeHeight),
		state:    opts.Session.State(),
		width:    defaultWidth,
		height:   defaultHeight,
	}
	m.resize(defaultWidth, defaultHeight)
	m.refresh()
	return m
}

// Init starts the cursor blink and the listeners for state changes and disconnects.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForChange(), m.waitForDisconnect())
}

// waitForChange blocks until the session reports a change and then reads its state.
func (m Model) waitForChange() tea.Cmd {
	if m.opts.Notifier == nil {
		return nil
	}
	ch := m.opts.Notifier.ch
	session := m.opts.Session
	return func() tea.Msg {
		<-ch
		return StateMsg{State: session.State()}
	}
}

func (m Model) waitForDisconnect() tea.Cmd {
	if m.opts.Done == nil {
		return nil
	}
	done := m.opts.Done
	errFn := m.opts.Err
	return func() tea.Msg {
		<-done
		var err error
		if errFn != nil {
			err = errFn()
		}
		return DisconnectedMsg{Err: err}
	}
}

// Update handles one message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.refresh()
		return m, nil

	case StateMsg:
		m.state = msg.State
		m.refresh()
		m.viewport.GotoBottom()
		return m, m.waitForChange()

	case DisconnectedMsg:
		m.disconnected = true
		m.disconnectErr = msg.Err
		m.status = disconnectStatus(msg.Err)
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyEnter:
			m.submit()
			return m, nil

		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the input line through the session.
func (m *Model) submit() {
	if m.disconnected {
		return
	}

	_, err := m.opts.Session.Submit(m.input.Value())
	if err != nil {
		m.status = submitStatus(err)
		return
	}

	m.status = ""
	m.input.Reset()
}

// DisconnectErr returns why the connection ended, once it has.
func (m Model) DisconnectErr() error {
	return m.disconnectErr
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	m.input.Width = max(width-lipgloss.Width(m.input.Prompt)-1, 1)

	m.viewport.Width = width
	m.viewport.Height = max(height-chromeHeight, 1)
}

func (m *Model) refresh() {
	tree := view.Render(m.state)
	content := view.TerminalRoster(tree.Roster) + "\n\n" + view.TerminalLog(tree.Log, m.width)
	m.viewport.SetContent(content)
}

// View draws the surface.
func (m Model) View() string {
	tree := view.Render(m.state)

	status := m.status
	if status == "" {
		status = helpStyle.Render(fmt.Sprintf("Chatting as %s · Enter to send · Esc to quit", m.opts.Session.Username()))
	} else {
		status = statusStyle.Render(status)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		view.TerminalHeader(tree.Header, m.width),
		m.viewport.View(),
		m.input.View(),
		status,
	)
}

func submitStatus(err error) string {
	var customErr *errs.CustomError
	if errors.As(err, &customErr) {
		return customErr.Message
	}
	return "Message not sent: " + err.Error()
}

func disconnectStatus(err error) string {
	if err == nil {
		return "Disconnected."
	}
	var customErr *errs.CustomError
	if errors.As(err, &customErr) {
		return "Disconnected: " + customErr.Message
	}
	return "Disconnected: " + err.Error()
}
