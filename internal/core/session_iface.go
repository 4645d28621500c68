package core

import (
	"context"

	"github.com/dkeye/WatchParty/internal/domain"
)

// Session is the view-facing API of the session adapter.
// Controllers only ever talk to the real-time service through it.
type Session interface {
	Connect(ctx context.Context) error
	WaitUntilReady(ctx context.Context) error
	IsReady() bool

	CreateRoom(ctx context.Context, nickname, icon string) (domain.RoomID, error)
	JoinRoom(ctx context.Context, nickname string, roomID domain.RoomID, icon string) (domain.MessageHistory, error)
	SendMessage(body string) error
	SendTypingPresence(typing bool)

	Subscribe(fn func(domain.Event)) (unsubscribe func())
	OnClose(fn func()) (unsubscribe func())
	LocalSenderID() string
	Disconnect()
}
