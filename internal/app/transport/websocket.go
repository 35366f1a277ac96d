/*
Package transport connects chat sessions to a chat server.

This file defines Client, the websocket implementation of the chat.Bridge contract. It
owns one gorilla/websocket connection with a read loop that publishes every text frame
to the Bus and a write loop that drains a buffered send queue and keeps the connection
alive with pings. There is no reconnection: once the connection ends, Done is closed and
Send fails.
*/
package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"wschat/internal/pkg/errs"
	"wschat/internal/pkg/logx"
	"wschat/internal/pkg/metrics"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed to wait for a Pong message from the peer.
	pongWait = 60 * time.Second

	// frequency at which a Ping message is sent.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of an inbound frame.
	maxMessageSize = 64 * 1024

	// CloseCodeSessionKicked is the custom WebSocket Close Code (4000-4999 range) the
	// relay sends when a newer connection registers the same username.
	CloseCodeSessionKicked = 4001

	// DefaultSendQueue is the outbound buffer used when none is configured.
	DefaultSendQueue = 256
)

// Options configures a Client.
type Options struct {
	// SendQueue is the capacity of the outbound frame queue.
	SendQueue int

	// SubscriberQueue is the per-subscriber inbound buffer of the Bus.
	SubscriberQueue int

	// SendRate and SendBurst configure the outbound token bucket.
	// A zero SendRate disables rate limiting.
	SendRate  float64
	SendBurst int

	// Dialer overrides websocket.DefaultDialer.
	Dialer *websocket.Dialer

	Metrics *metrics.Metrics
}

// Client is a websocket connection to a chat server.
type Client struct {
	// underlying WebSocket connection object.
	conn *websocket.Conn

	// a buffered channel used to queue frames waiting to be written.
	send chan []byte

	// fans inbound frames out to subscribers.
	bus *Bus

	// outbound token bucket; nil means unlimited.
	limiter *rate.Limiter

	// closed when the connection has ended for any reason.
	done      chan struct{}
	closeOnce sync.Once

	// mu protects err.
	mu  sync.Mutex
	err error

	wg sync.WaitGroup

	metrics *metrics.Metrics

	// structured logger with connection context.
	logger zerolog.Logger
}

// Dial connects to the chat server at url and starts the read and write loops.
func Dial(ctx context.Context, url string, opts Options) (*Client, error) {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	logger := logx.Logger().With().
		Str("component", "transport").
		Str("server_url", url).
		Logger()

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to connect to chat server.")
		return nil, errors.Join(errs.NewError(errs.ErrDialFailed), err)
	}

	c := newClient(conn, opts, logger)
	c.start()

	logger.Info().Msg("Connected to chat server.")
	return c, nil
}

func newClient(conn *websocket.Conn, opts Options, logger zerolog.Logger) *Client {
	sendQueue := opts.SendQueue
	if sendQueue < 1 {
		sendQueue = DefaultSendQueue
	}

	var limiter *rate.Limiter
	if opts.SendRate > 0 {
		burst := opts.SendBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.SendRate), burst)
	}

	return &Client{
		conn:    conn,
		send:    make(chan []byte, sendQueue),
		bus:     NewBus(opts.SubscriberQueue, opts.Metrics),
		limiter: limiter,
		done:    make(chan struct{}),
		metrics: opts.Metrics,
		logger:  logger,
	}
}

func (c *Client) start() {
	c.wg.Add(2)
	go c.writePump()
	go c.readPump()
}

// Send queues frame for writing without blocking.
// It fails with ErrTransportClosed, ErrSendRateLimited or ErrSendQueueFull.
func (c *Client) Send(frame string) error {
	select {
	case <-c.done:
		c.metrics.Outbound("closed")
		return errs.NewError(errs.ErrTransportClosed)
	default:
	}

	if c.limiter != nil && !c.limiter.Allow() {
		c.metrics.Outbound("rate_limited")
		return errs.NewError(errs.ErrSendRateLimited)
	}

	select {
	case c.send <- []byte(frame):
		c.metrics.Outbound("sent")
		return nil
	default:
		c.metrics.Outbound("queue_full")
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Send queue full, rejecting frame.")
		return errs.NewError(errs.ErrSendQueueFull)
	}
}

// Subscribe registers handler for every inbound frame, in arrival order.
func (c *Client) Subscribe(handler func(frame string)) func() {
	return c.bus.Subscribe(handler)
}

// Done is closed when the connection has ended.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns why the connection ended, or nil while it is open or after a local Close.
// A connection replaced by a newer one with the same username yields ErrSessionKicked.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close sends a close frame, waits for both loops to exit and removes all subscribers.
// It is safe to call more than once.
func (c *Client) Close() error {
	c.shutdown(nil)
	c.wg.Wait()
	c.bus.Close()
	return nil
}

// shutdown records the first reason the connection ended and signals both loops.
func (c *Client) shutdown(reason error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = reason
		c.mu.Unlock()
		close(c.done)
	})
}

// readPump publishes inbound text frames to the bus until the connection fails.
func (c *Client) readPump() {
	defer c.wg.Done()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		c.shutdown(errors.Join(errs.NewError(errs.ErrTransportClosed), err))
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			c.shutdown(c.readError(err))
			return
		}

		if messageType != websocket.TextMessage {
			c.logger.Warn().Int("message_type", messageType).Msg("Ignoring non-text frame.")
			continue
		}

		c.bus.Publish(string(data))
	}
}

// readError classifies the error that ended the read loop.
func (c *Client) readError(err error) error {
	select {
	case <-c.done:
		// local Close
		return nil
	default:
	}

	if websocket.IsCloseError(err, CloseCodeSessionKicked) {
		c.logger.Warn().Err(err).Msg("Session replaced by a newer connection.")
		return errs.NewError(errs.ErrSessionKicked)
	}

	if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
		c.logger.Info().Err(err).Msg("Error reading message (server close/going away)")
	} else {
		c.logger.Info().Err(err).Msg("Connection closed.")
	}
	return errors.Join(errs.NewError(errs.ErrTransportClosed), err)
}

// writePump drains the send queue to the connection and sends periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		// ensure the connection is closed on exit
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error in writePump")
		}

		c.wg.Done()
	}()

	for {
		select {
		case message := <-c.send:
			if !c.writeQueuedMessage(message) {
				c.shutdown(errs.NewError(errs.ErrTransportClosed))
				return
			}

		case <-ticker.C:
			if !c.writePingMessage() {
				c.shutdown(errs.NewError(errs.ErrTransportClosed))
				return
			}

		case <-c.done:
			c.writeCloseMessage()
			return
		}
	}
}

// writeQueuedMessage writes one queued frame. Returns false if the loop should terminate.
func (c *Client) writeQueuedMessage(message []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		c.logger.Error().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

// writePingMessage sends a Ping to keep the connection alive.
// Returns false if the loop should terminate due to write failure.
func (c *Client) writePingMessage() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}

func (c *Client) writeCloseMessage() {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.conn.WriteMessage(websocket.CloseMessage, msg); err != nil {
		c.logger.Debug().Err(err).Msg("Error writing close message")
	}
}
