package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wschat/internal/app/chat"
	"wschat/internal/app/protocol"
	"wschat/internal/app/relay"
	"wschat/internal/app/transport"
	"wschat/internal/configs"
	"wschat/internal/handler"
	"wschat/internal/pkg/errs"
	"wschat/internal/pkg/metrics"
)

type relayServer struct {
	httpURL string
	wsURL   string
	room    *relay.Room
}

func startRelay(t *testing.T) relayServer {
	t.Helper()

	m := metrics.New(prometheus.NewRegistry())
	room := relay.NewRoom(m)
	go room.Run()

	deps := &handler.AppDeps{
		Room:    room,
		Config:  &configs.AppConfig{Environment: "development"},
		Metrics: m,
	}
	router, joinLimiter := handler.Router(deps)

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		room.Stop()
		<-room.Done()
		srv.Close()
		joinLimiter.Stop()
	})

	return relayServer{
		httpURL: srv.URL,
		wsURL:   "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		room:    room,
	}
}

// rawPeer is a bare websocket connection speaking the wire protocol.
type rawPeer struct {
	t    *testing.T
	conn *websocket.Conn
}

func connect(t *testing.T, url string) *rawPeer {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &rawPeer{t: t, conn: conn}
}

func (p *rawPeer) send(env protocol.Envelope) {
	p.t.Helper()
	require.NoError(p.t, p.conn.WriteMessage(websocket.TextMessage, []byte(protocol.MustEncode(env))))
}

func (p *rawPeer) register(name string) {
	p.t.Helper()
	p.send(protocol.NewRegister(name))
}

func (p *rawPeer) next() protocol.Envelope {
	p.t.Helper()

	require.NoError(p.t, p.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := p.conn.ReadMessage()
	require.NoError(p.t, err)

	env, err := protocol.Decode(string(data))
	require.NoError(p.t, err)
	return env
}

// nextUsers skips frames until a users snapshot equal to want arrives.
func (p *rawPeer) nextUsers(want ...string) {
	p.t.Helper()

	for {
		env := p.next()
		if env.Kind == protocol.KindUsers && assert.ObjectsAreEqual(want, env.PayloadList) {
			return
		}
	}
}

func (p *rawPeer) nextMessage() protocol.MessagePayload {
	p.t.Helper()

	for {
		env := p.next()
		if env.Kind != protocol.KindMessage {
			continue
		}
		payload, err := protocol.DecodeMessagePayload(env.Payload)
		require.NoError(p.t, err)
		return payload
	}
}

func TestRelay_RegisterBroadcastsRoster(t *testing.T) {
	srv := startRelay(t)

	alice := connect(t, srv.wsURL)
	alice.register("alice")
	alice.nextUsers("alice")

	bob := connect(t, srv.wsURL)
	bob.register("bob")
	bob.nextUsers("alice", "bob")
	alice.nextUsers("alice", "bob")

	assert.Equal(t, []string{"alice", "bob"}, srv.room.Roster())
}

func TestRelay_MessageEchoesToEveryoneIncludingSender(t *testing.T) {
	srv := startRelay(t)

	alice := connect(t, srv.wsURL)
	alice.register("alice")
	alice.nextUsers("alice")

	bob := connect(t, srv.wsURL)
	bob.register("bob")
	bob.nextUsers("alice", "bob")
	alice.nextUsers("alice", "bob")

	alice.send(protocol.NewMessage(" hi bob "))

	want := protocol.MessagePayload{From: "alice", Message: " hi bob "}
	assert.Equal(t, want, alice.nextMessage())
	assert.Equal(t, want, bob.nextMessage())
}

func TestRelay_UnregisteredMessagesAreDropped(t *testing.T) {
	srv := startRelay(t)

	alice := connect(t, srv.wsURL)
	alice.register("alice")
	alice.nextUsers("alice")

	lurker := connect(t, srv.wsURL)
	lurker.send(protocol.NewMessage("psst"))

	alice.send(protocol.NewMessage("hello"))
	assert.Equal(t, protocol.MessagePayload{From: "alice", Message: "hello"}, alice.nextMessage())
}

func TestRelay_DisconnectShrinksRoster(t *testing.T) {
	srv := startRelay(t)

	alice := connect(t, srv.wsURL)
	alice.register("alice")
	alice.nextUsers("alice")

	bob := connect(t, srv.wsURL)
	bob.register("bob")
	alice.nextUsers("alice", "bob")

	require.NoError(t, bob.conn.Close())

	alice.nextUsers("alice")
	assert.Equal(t, []string{"alice"}, srv.room.Roster())
}

func TestRelay_DuplicateUsernameKicksOldConnection(t *testing.T) {
	srv := startRelay(t)

	first := connect(t, srv.wsURL)
	first.register("alice")
	first.nextUsers("alice")

	second := connect(t, srv.wsURL)
	second.register("alice")
	second.nextUsers("alice")

	require.NoError(t, first.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var err error
	for err == nil {
		_, _, err = first.conn.ReadMessage()
	}
	assert.True(t, websocket.IsCloseError(err, transport.CloseCodeSessionKicked), "got %v", err)

	assert.Equal(t, []string{"alice"}, srv.room.Roster())
}

func TestRelay_Health(t *testing.T) {
	srv := startRelay(t)

	res, err := http.Get(srv.httpURL + "/health")
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)

	var body struct {
		Code int `json:"code"`
		Data struct {
			Status string   `json:"status"`
			Users  []string `json:"users"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, 0, body.Code)
	assert.Equal(t, "ok", body.Data.Status)
	assert.Empty(t, body.Data.Users)
}

func TestRelay_Metrics(t *testing.T) {
	srv := startRelay(t)

	alice := connect(t, srv.wsURL)
	alice.register("alice")
	alice.nextUsers("alice")

	res, err := http.Get(srv.httpURL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)

	var sb strings.Builder
	_, err = io.Copy(&sb, res.Body)
	require.NoError(t, err)
	assert.Contains(t, sb.String(), "wschat_relay_peers 1")
	assert.Contains(t, sb.String(), `wschat_relay_frames_total{kind="users"}`)
}

// TestRelay_SessionsEndToEnd drives two client sessions through the websocket bridge.
func TestRelay_SessionsEndToEnd(t *testing.T) {
	srv := startRelay(t)

	open := func(name string) (*chat.Session, *transport.Client) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		client, err := transport.Dial(ctx, srv.wsURL, transport.Options{})
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })

		s, err := chat.NewSession(name, client)
		require.NoError(t, err)
		t.Cleanup(s.Close)
		return s, client
	}

	alice, _ := open("alice")
	require.Eventually(t, func() bool { return len(alice.State().Users) == 1 }, 2*time.Second, 10*time.Millisecond)

	bob, bobClient := open("bob")
	require.Eventually(t, func() bool {
		return len(alice.State().Users) == 2 && len(bob.State().Users) == 2
	}, 2*time.Second, 10*time.Millisecond)

	sent, err := alice.Submit("hello.gif")
	require.NoError(t, err)
	require.True(t, sent)

	want := []chat.Message{{Sender: "alice", Body: "hello.gif"}}
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(want, alice.State().Messages) &&
			assert.ObjectsAreEqual(want, bob.State().Messages)
	}, 2*time.Second, 10*time.Millisecond)

	sent, err = bob.Submit("   ")
	require.NoError(t, err)
	assert.False(t, sent)

	bob.Close()
	require.NoError(t, bobClient.Close())

	require.Eventually(t, func() bool { return len(alice.State().Users) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "alice", alice.State().Users[0].Name)
	assert.Len(t, alice.State().Messages, 1, "history survives roster changes")

	assert.Equal(t, errs.ErrTransportClosed, errs.CodeOf(bobClient.Send("x")))
}
