package session

import (
	"bytes"
	"encoding/json"

	"github.com/dkeye/WatchParty/internal/core"
	"github.com/dkeye/WatchParty/internal/domain"
	"github.com/rs/zerolog/log"
)

// classify maps a frame to a domain event. Priority: chat kind, typing kind,
// then any payload carrying a "messages" array. Identity frames are consumed
// here and never published.
func (a *Adapter) classify(m core.SocketMessage) (domain.Event, bool) {
	switch {
	case m.Type == a.kinds.Chat:
		var msg domain.ChatMessage
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			log.Warn().Err(err).Str("module", "session").Str("type", m.Type).Msg("bad chat payload, dropped")
			return nil, false
		}
		a.captureEcho(msg)
		return domain.ChatEvent{Message: msg}, true

	case m.Type == a.kinds.Typing:
		var st domain.TypingStatus
		if err := json.Unmarshal(m.Data, &st); err != nil {
			log.Warn().Err(err).Str("module", "session").Str("type", m.Type).Msg("bad typing payload, dropped")
			return nil, false
		}
		return domain.TypingEvent{Status: st}, true

	case a.kinds.Identity != "" && m.Type == a.kinds.Identity:
		a.captureIdentity(m.Data)
		return nil, false

	case hasMessages(m.Data):
		var h domain.MessageHistory
		if err := json.Unmarshal(m.Data, &h); err != nil {
			log.Warn().Err(err).Str("module", "session").Str("type", m.Type).Msg("bad history payload, dropped")
			return nil, false
		}
		return domain.HistoryEvent{History: h}, true
	}

	log.Warn().Str("module", "session").Str("type", m.Type).Msg("unrecognized message kind, dropped")
	return nil, false
}

// captureEcho takes the sender of the first non-system chat message after an
// outbound send as the local identity. Two clients sending at the same moment
// can fool it; an explicit identity frame overrides it.
func (a *Adapter) captureEcho(msg domain.ChatMessage) {
	if msg.IsSystemMessage || msg.SenderID == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.senderID != "" || a.pendingEchoes == 0 {
		return
	}
	a.senderID = msg.SenderID
	a.pendingEchoes = 0
	log.Debug().Str("module", "session").Str("sender_id", msg.SenderID).Msg("local sender captured from echo")
}

func (a *Adapter) captureIdentity(data json.RawMessage) {
	var p struct {
		PermID string `json:"permId"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.PermID == "" {
		log.Warn().Err(err).Str("module", "session").Msg("bad identity payload, dropped")
		return
	}
	a.mu.Lock()
	a.senderID = p.PermID
	a.pendingEchoes = 0
	a.mu.Unlock()
	log.Debug().Str("module", "session").Str("sender_id", p.PermID).Msg("local sender from identity signal")
}

func hasMessages(data json.RawMessage) bool {
	if len(data) == 0 {
		return false
	}
	var shape struct {
		Messages json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		return false
	}
	return bytes.HasPrefix(bytes.TrimSpace(shape.Messages), []byte("["))
}
