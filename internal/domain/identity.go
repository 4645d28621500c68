// Package domain contains entity without logic, just meta-data
package domain

import "strings"

const MaxNicknameLen = 36

// LocalIdentity is who "we" are in the current room.
// SenderID stays empty until the session surfaces it.
type LocalIdentity struct {
	Nickname string `json:"nickname"`
	SenderID string `json:"senderId,omitempty"`
}

func (id LocalIdentity) Known() bool { return id.SenderID != "" }

// Owns reports whether msg was sent by the local user. Unknown identity owns nothing.
func (id LocalIdentity) Owns(msg ChatMessage) bool {
	return id.SenderID != "" && msg.SenderID == id.SenderID
}

// NormalizeNickname trims the nickname and validates it.
func NormalizeNickname(nickname string) (string, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return "", ErrNicknameEmpty
	}
	if len(nickname) > MaxNicknameLen {
		return "", ErrNicknameTooLong
	}
	return nickname, nil
}
