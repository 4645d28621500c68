package domain

type EventKind string

const (
	EventKindChat    EventKind = "chat"
	EventKindTyping  EventKind = "typing"
	EventKindHistory EventKind = "history"
)

// Event is the closed set of inbound events the session publishes.
type Event interface {
	Kind() EventKind
	isEvent()
}

type ChatEvent struct {
	Message ChatMessage
}

func (ChatEvent) Kind() EventKind { return EventKindChat }
func (ChatEvent) isEvent()        {}

type TypingEvent struct {
	Status TypingStatus
}

func (TypingEvent) Kind() EventKind { return EventKindTyping }
func (TypingEvent) isEvent()        {}

type HistoryEvent struct {
	History MessageHistory
}

func (HistoryEvent) Kind() EventKind { return EventKindHistory }
func (HistoryEvent) isEvent()        {}
