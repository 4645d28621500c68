package domain

// ChatMessage is a single message as delivered by the real-time service.
type ChatMessage struct {
	IsSystemMessage bool   `json:"isSystemMessage"`
	UserNickname    string `json:"userNickname,omitempty"`
	UserIcon        string `json:"userIcon,omitempty"`
	Body            string `json:"body"`
	SenderID        string `json:"permId"`
	Timestamp       int64  `json:"timestamp"`
}

// MessageKey identifies a message for deduplication.
type MessageKey struct {
	SenderID  string
	Timestamp int64
}

func (m ChatMessage) Key() MessageKey {
	return MessageKey{SenderID: m.SenderID, Timestamp: m.Timestamp}
}

type TypingStatus struct {
	AnyoneTyping  bool     `json:"anyoneTyping"`
	TypingUserIDs []string `json:"usersTyping"`
}

// MessageHistory is the snapshot returned on join. Messages keeps server order.
type MessageHistory struct {
	Messages []ChatMessage `json:"messages"`
}

// MessageLog is an append-only list that rejects duplicate keys.
// The zero value is ready to use.
type MessageLog struct {
	messages []ChatMessage
	seen     map[MessageKey]struct{}
}

// Append adds msg unless a message with the same key is already present.
func (l *MessageLog) Append(msg ChatMessage) bool {
	if l.seen == nil {
		l.seen = make(map[MessageKey]struct{})
	}
	k := msg.Key()
	if _, ok := l.seen[k]; ok {
		return false
	}
	l.seen[k] = struct{}{}
	l.messages = append(l.messages, msg)
	return true
}

// Reset replaces the log with msgs, dropping duplicates inside msgs.
func (l *MessageLog) Reset(msgs []ChatMessage) {
	l.messages = make([]ChatMessage, 0, len(msgs))
	l.seen = make(map[MessageKey]struct{}, len(msgs))
	for _, m := range msgs {
		l.Append(m)
	}
}

func (l *MessageLog) Len() int { return len(l.messages) }

// Snapshot returns a copy safe to hand to views.
func (l *MessageLog) Snapshot() []ChatMessage {
	out := make([]ChatMessage, len(l.messages))
	copy(out, l.messages)
	return out
}
