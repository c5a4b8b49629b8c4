// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/taibuivan/ventigrow/internal/platform/apperr"
	"github.com/taibuivan/ventigrow/internal/platform/ctxutil"
	"github.com/taibuivan/ventigrow/internal/platform/respond"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
	streamReadLimit  = 512
)

/*
Stream serves GET /api/v1/session/stream.

Description: Upgrades to a WebSocket and pushes the view as JSON every time it
changes, starting with the current one. Browsers cannot set headers on the
upgrade, so the access token may also be passed as ?access_token=. It is only
used to decide whether the pushed views include the access token.
*/
func (handler *Handler) Stream(writer http.ResponseWriter, request *http.Request) {
	logger := ctxutil.GetLogger(request.Context())

	claims := ctxutil.GetAuthUser(request.Context())
	if token := request.URL.Query().Get("access_token"); claims == nil && token != "" {
		verified, err := handler.verifier.VerifyToken(token)
		if err != nil {
			respond.Error(writer, request, apperr.Unauthorized("Invalid or expired token"))
			return
		}
		claims = verified
	}

	connection, err := handler.upgrader.Upgrade(writer, request, nil)
	if err != nil {
		logger.WarnContext(request.Context(), "session_stream_upgrade_failed", slog.Any("error", err))
		return
	}
	defer connection.Close()

	updates, unsubscribe := handler.manager.Subscribe()
	defer unsubscribe()

	// The client never sends data; reading only services control frames and notices the close.
	go func() {
		defer unsubscribe()
		connection.SetReadLimit(streamReadLimit)
		_ = connection.SetReadDeadline(time.Now().Add(streamPongWait))
		connection.SetPongHandler(func(string) error {
			return connection.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := connection.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case view, ok := <-updates:
			_ = connection.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if !ok {
				_ = connection.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"))
				return
			}
			if err := connection.WriteJSON(presentView(view, ownsSession(view, claims))); err != nil {
				return
			}
		case <-ticker.C:
			_ = connection.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sameHost accepts upgrades from pages served by this server.
func sameHost(request *http.Request, origin string) bool {
	parsed, err := url.Parse(origin)
	return err == nil && parsed.Host == request.Host
}
