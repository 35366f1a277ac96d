/*
Package relay implements the development chat server that speaks the client's wire protocol.

This file defines the Peer struct, representing an accepted WebSocket connection. It manages the
peer's lifecycle, the message communication loops (ReadPump and WritePump), and its interaction
with the Room.
*/
package relay

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"wschat/internal/app/protocol"
	"wschat/internal/app/transport"
	"wschat/internal/pkg/errs"
	"wschat/internal/pkg/logx"
	"wschat/internal/pkg/randx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the relay to wait for a Pong message from the peer.
	pongWait = 60 * time.Second

	// frequency at which the relay sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the peer.
	maxMessageSize = 8192

	// capacity of the peer's outbound queue.
	sendBuffer = 256
)

// Peer represents an active WebSocket connection to the relay.
type Peer struct {
	// ID identifies the connection in logs.
	ID string

	// the room the peer belongs to.
	room *Room

	// underlying WebSocket connection object.
	conn *websocket.Conn

	// a buffered channel used to queue frames waiting to be sent to the peer.
	// Only the room writes to and closes it.
	send chan []byte

	// structured logger with peer context.
	logger zerolog.Logger
}

// NewPeer constructs a Peer for an upgraded connection.
func NewPeer(room *Room, conn *websocket.Conn) *Peer {
	id := randx.PeerID()

	return &Peer{
		ID:   id,
		room: room,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		logger: logx.Logger().With().
			Str("component", "relay_peer").
			Str("peer_id", id).
			Logger(),
	}
}

// ReadPump reads frames from the connection and hands valid envelopes to the room.
// It returns when the connection fails, after leaving the room and closing the connection.
func (p *Peer) ReadPump() {
	defer p.cleanupOnDisconnect()

	p.conn.SetReadLimit(maxMessageSize)

	if err := p.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		p.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				p.logger.Info().Err(err).Msg("Error reading message (peer close/going away)")
			}
			break
		}

		p.processInboundFrame(data)
	}
}

// cleanupOnDisconnect handles the necessary cleanup steps when ReadPump terminates.
func (p *Peer) cleanupOnDisconnect() {
	p.logger.Debug().Msg("Peer connection cleanup starting.")

	p.room.Leave(p)

	if err := p.conn.Close(); err != nil {
		p.logger.Debug().Err(err).Msg("Peer connection close error")
	}
}

// processInboundFrame decodes one raw frame and forwards it to the room.
func (p *Peer) processInboundFrame(data []byte) {
	env, err := protocol.Decode(string(data))
	if err != nil {
		p.logger.Warn().
			Err(err).
			Int("code", errs.CodeOf(err)).
			Bytes("frame", data).
			Msg("Peer sent an invalid envelope")
		return
	}

	if env.Kind == protocol.KindUsers {
		p.logger.Warn().
			Int("code", errs.ErrUnsupportedMessageType).
			Str("msg_type", env.Kind.String()).
			Msg("Peer sent unsupported message type")
		return
	}

	p.room.Deliver(p, env)
}

// WritePump writes frames from the send channel to the connection and keeps it alive with pings.
func (p *Peer) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		// ensure the connection is closed on exit
		if err := p.conn.Close(); err != nil {
			p.logger.Debug().Err(err).Msg("Peer connection close error in WritePump")
		}
	}()

	for {
		select {
		case message, ok := <-p.send:
			if !p.writeQueuedMessage(message, ok) {
				return
			}

		case <-ticker.C:
			if !p.writePingMessage() {
				return
			}
		}
	}
}

// writeQueuedMessage handles frames pulled from the send channel.
// Returns true if the WritePump loop should continue, false if it should terminate.
func (p *Peer) writeQueuedMessage(message []byte, ok bool) bool {
	if err := p.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		p.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		// the room closed the channel
		if err := p.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
			p.logger.Debug().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := p.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		p.logger.Error().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

// writePingMessage sends a periodic Ping message to maintain the connection heartbeat.
// Returns false if the WritePump loop should terminate due to write failure.
func (p *Peer) writePingMessage() bool {
	if err := p.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		p.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		p.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}

// kick tells the peer its username was taken over by a newer connection.
// WriteControl may run concurrently with WritePump.
func (p *Peer) kick(reason string) {
	p.logger.Warn().
		Int("close_code", transport.CloseCodeSessionKicked).
		Str("reason", reason).
		Msg("Sending WS Kick message and closing connection.")

	closeMessage := websocket.FormatCloseMessage(transport.CloseCodeSessionKicked, reason)
	if err := p.conn.WriteControl(websocket.CloseMessage, closeMessage, time.Now().Add(writeWait)); err != nil {
		p.logger.Warn().Err(err).Msg("Failed to send WS 4001 Close Message.")
	}
}
