/*
Package relay implements the development chat server that speaks the client's wire protocol.

This file defines the Room struct, the hub every peer joins. A peer is anonymous until it
sends a register envelope; from then on it appears in the users snapshot that the room
broadcasts whenever the roster changes. Every chat message from a registered peer is
broadcast to all registered peers, the sender included, tagged with the sender's name.
*/
package relay

import (
	"sync"

	"github.com/rs/zerolog"

	"wschat/internal/app/protocol"
	"wschat/internal/pkg/errs"
	"wschat/internal/pkg/logx"
	"wschat/internal/pkg/metrics"
)

const inboundChannelBuffer = 1024

// inboundEnvelope is an envelope received from a peer.
type inboundEnvelope struct {
	peer *Peer
	env  protocol.Envelope
}

// Room is the single chat room served by the relay.
type Room struct {
	// every connected peer; the value is its username, "" until it registers.
	peers map[*Peer]string

	// registered peers keyed by username.
	byName map[string]*Peer

	// registered usernames in join order.
	roster []string

	// a channel for peers joining the room.
	join chan *Peer

	// a channel for peers leaving the room.
	leave chan *Peer

	// a buffered channel for envelopes received from peers.
	inbound chan inboundEnvelope

	// used to signal the Room to stop its Run loop.
	stopChan chan struct{}
	stopOnce sync.Once

	// closed when the Run loop has finished.
	done chan struct{}

	// mu protects roster for readers outside the Run loop.
	mu sync.RWMutex

	metrics *metrics.Metrics

	// structured logger with room context.
	logger zerolog.Logger
}

// NewRoom creates a Room. Call Run to start it.
func NewRoom(m *metrics.Metrics) *Room {
	return &Room{
		peers:    make(map[*Peer]string),
		byName:   make(map[string]*Peer),
		join:     make(chan *Peer),
		leave:    make(chan *Peer),
		inbound:  make(chan inboundEnvelope, inboundChannelBuffer),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
		metrics:  m,
		logger:   logx.Component("relay_room"),
	}
}

// Join adds a connected peer to the room. It reports false if the room has stopped.
func (r *Room) Join(p *Peer) bool {
	select {
	case r.join <- p:
		return true
	case <-r.done:
		return false
	}
}

// Leave removes a peer from the room. It is a no-op for peers the room already dropped.
func (r *Room) Leave(p *Peer) {
	select {
	case r.leave <- p:
	case <-r.done:
	}
}

// Deliver hands an envelope received from p to the room.
func (r *Room) Deliver(p *Peer, env protocol.Envelope) {
	select {
	case r.inbound <- inboundEnvelope{peer: p, env: env}:
	case <-r.done:
	}
}

// Roster returns the registered usernames in join order.
func (r *Room) Roster() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string{}, r.roster...)
}

// Done is closed when the Run loop has finished.
func (r *Room) Done() <-chan struct{} {
	return r.done
}

// Stop sends a signal to terminate the Room's Run loop. It is safe to call more than once.
func (r *Room) Stop() {
	r.stopOnce.Do(func() {
		r.logger.Info().Msg("Received stop signal. Stopping room.")
		close(r.stopChan)
	})
}

// Run is the main event loop of the room. It returns after Stop, once every peer's
// send channel has been closed.
func (r *Room) Run() {
	defer func() {
		for p := range r.peers {
			close(p.send)
		}
		r.peers = nil
		r.byName = nil
		close(r.done)
		r.logger.Info().Msg("Room Run loop finished.")
	}()

	for {
		select {
		case p := <-r.join:
			r.peers[p] = ""
			r.logger.Info().
				Str("peer_id", p.ID).
				Int("total_peers", len(r.peers)).
				Msg("Peer connected.")

		case p := <-r.leave:
			r.drop(p)

		case in := <-r.inbound:
			r.handle(in.peer, in.env)

		case <-r.stopChan:
			return
		}
	}
}

// handle applies one envelope received from p.
func (r *Room) handle(p *Peer, env protocol.Envelope) {
	name, connected := r.peers[p]
	if !connected {
		// frame raced with the peer's removal
		return
	}

	switch env.Kind {
	case protocol.KindRegister:
		r.register(p, name, env.Payload)

	case protocol.KindMessage:
		if name == "" {
			p.logger.Warn().
				Int("code", errs.ErrNotRegistered).
				Msg("Dropping message from unregistered peer.")
			return
		}
		r.broadcastMessage(name, env.Payload)
	}
}

// register binds username to p, replacing any connection that holds it.
func (r *Room) register(p *Peer, current, username string) {
	if current == username {
		r.broadcastRoster()
		return
	}

	if existing, ok := r.byName[username]; ok {
		r.logger.Warn().
			Str("username", username).
			Str("peer_id", existing.ID).
			Msg("Username already connected. Closing old connection for replacement.")

		existing.kick("Session replaced by new connection.")
		r.remove(existing)
	}

	if current != "" {
		// re-register under a new name
		delete(r.byName, current)
		r.removeFromRoster(current)
	} else {
		r.metrics.PeerJoined()
	}

	r.peers[p] = username
	r.byName[username] = p

	r.mu.Lock()
	r.roster = append(r.roster, username)
	total := len(r.roster)
	r.mu.Unlock()

	r.logger.Info().
		Str("peer_id", p.ID).
		Str("username", username).
		Int("total_users", total).
		Msg("Peer registered.")

	r.broadcastRoster()
}

// drop handles a peer that left on its own.
func (r *Room) drop(p *Peer) {
	if _, ok := r.peers[p]; !ok {
		r.logger.Debug().Str("peer_id", p.ID).Msg("Ignoring leave for peer already removed.")
		return
	}

	name := r.peers[p]
	r.remove(p)

	r.logger.Info().
		Str("peer_id", p.ID).
		Str("username", name).
		Int("total_peers", len(r.peers)).
		Msg("Peer left.")

	if name != "" {
		r.broadcastRoster()
	}
}

// remove forgets p and closes its send channel. It does not broadcast.
func (r *Room) remove(p *Peer) {
	name, ok := r.peers[p]
	if !ok {
		return
	}

	delete(r.peers, p)
	close(p.send)

	if name != "" && r.byName[name] == p {
		delete(r.byName, name)
		r.removeFromRoster(name)
		r.metrics.PeerLeft()
	}
}

func (r *Room) removeFromRoster(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, n := range r.roster {
		if n == name {
			r.roster = append(r.roster[:i:i], r.roster[i+1:]...)
			return
		}
	}
}

// broadcastRoster sends the current users snapshot to every registered peer.
func (r *Room) broadcastRoster() {
	frame, err := protocol.Encode(protocol.NewUsers(r.Roster()))
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to encode users snapshot.")
		return
	}
	r.broadcast(protocol.KindUsers, frame)
}

// broadcastMessage sends text from username to every registered peer, the sender included.
func (r *Room) broadcastMessage(username, text string) {
	payload, err := protocol.EncodeMessagePayload(protocol.MessagePayload{From: username, Message: text})
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to encode message payload.")
		return
	}

	frame, err := protocol.Encode(protocol.NewMessage(payload))
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to encode message envelope.")
		return
	}
	r.broadcast(protocol.KindMessage, frame)
}

// broadcast queues frame for every registered peer. Peers whose queue is full are dropped.
func (r *Room) broadcast(kind protocol.Kind, frame string) {
	data := []byte(frame)

	var slow []*Peer
	for name, p := range r.byName {
		select {
		case p.send <- data:
		default:
			r.logger.Warn().
				Str("peer_id", p.ID).
				Str("username", name).
				Msg("Peer send channel full, dropping peer.")
			slow = append(slow, p)
		}
	}

	r.metrics.RelayFrame(kind.String())

	if len(slow) == 0 {
		return
	}
	for _, p := range slow {
		r.remove(p)
	}
	r.broadcastRoster()
}
