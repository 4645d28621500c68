package http

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dkeye/WatchParty/internal/app/room"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type roomViewFrame struct {
	Type string `json:"type"`
	room.View
}

type errorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func (ctl *RoomWSController) writePump(ctx context.Context, c *WsViewConn) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "adapters.http").Msg("writePump ctx done")
			c.Close()
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "adapters.http").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "adapters.http").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "adapters.http").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *RoomWSController) readPump(ctx context.Context, cancel context.CancelFunc, s *roomSocket) {
	defer func() {
		log.Info().Str("module", "adapters.http").Str("token", string(s.token)).Msg("readPump closing")
		ctl.Orch.OnViewGone(s.token, s.room)
		cancel()
		s.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "adapters.http").Str("token", string(s.token)).Msg("readPump ctx done")
			return
		default:
			_, data, err := s.conn.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Warn().Err(err).Str("module", "adapters.http").Str("token", string(s.token)).Msg("readPump read error")
				}
				return
			}
			ctl.handleCommand(s, data)
		}
	}
}

func (ctl *RoomWSController) handleCommand(s *roomSocket, data []byte) {
	var env struct {
		Type string `json:"type"`
		Body string `json:"body"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("bad json")
		ctl.sendJSON(s, errorFrame{Type: "error", Error: "bad_payload"})
		return
	}

	switch env.Type {
	case "send":
		ctl.handleSend(s, env.Body)
	case "keystroke":
		s.room.Keystroke()
	case "leave":
		ctl.Orch.Leave(s.token)
		ctl.Limiter.Forget(s.token)
	case "home":
		ctl.Orch.ReturnHome(s.token, s.room)
	case "ping":
		ctl.sendJSON(s, struct {
			Type string `json:"type"`
		}{Type: "pong"})
	default:
		log.Warn().Str("module", "adapters.http").Str("type", env.Type).Msg("unknown command")
	}
}

func (ctl *RoomWSController) handleSend(s *roomSocket, body string) {
	if !ctl.Limiter.Allow(s.token) {
		log.Warn().Str("module", "adapters.http").Str("token", string(s.token)).Msg("send rate limited")
		ctl.sendJSON(s, errorFrame{Type: "error", Error: "rate_limited"})
		return
	}
	// The failure is already on the view as a banner.
	_ = s.room.Send(body)
}

func (ctl *RoomWSController) sendJSON(s *roomSocket, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("sendJSON marshal")
		return
	}
	err = s.conn.TrySend(b)
	if errors.Is(err, ErrBackpressure) && ctl.Orch.OnBackPressure(s.token, s.conn) {
		s.conn.Close()
	}
}
