/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

This file contains the HandleWebSocket function, which is responsible for rate limiting, upgrading
the HTTP connection to WebSocket, and starting the peer lifecycle in the relay room.
*/
package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"wschat/internal/app/relay"
	"wschat/internal/pkg/errs"
	"wschat/internal/pkg/limiter"
	"wschat/internal/pkg/logx"
	"wschat/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := logx.AnonymizeIP(r.RemoteAddr)

		if !rateLimiter.Allow(r.RemoteAddr) {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "remote_ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket", "remote_ip", ip)
			return
		}

		peer := relay.NewPeer(deps.Room, conn)
		if !deps.Room.Join(peer) {
			logx.Warn("WebSocket connection rejected: Relay is shutting down.", "peer_id", peer.ID)
			_ = conn.Close()
			return
		}

		go peer.WritePump()

		logx.Info("WebSocket connection established and peer joined", "peer_id", peer.ID, "remote_ip", ip)

		peer.ReadPump()
	}
}
