package domain

import (
	"net/url"
	"strings"
)

type RoomID string

// Navigation is the addressable location of a room view.
type Navigation struct {
	RoomID   RoomID
	Nickname string
}

func (n Navigation) Location() string {
	return "/room/" + url.PathEscape(string(n.RoomID)) + "?nickname=" + url.QueryEscape(n.Nickname)
}

// ParseLocation is the inverse of Navigation.Location.
func ParseLocation(raw string) (Navigation, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return Navigation{}, false
	}
	id, ok := strings.CutPrefix(u.EscapedPath(), "/room/")
	if !ok || id == "" {
		return Navigation{}, false
	}
	id, err = url.PathUnescape(id)
	if err != nil {
		return Navigation{}, false
	}
	return Navigation{RoomID: RoomID(id), Nickname: u.Query().Get("nickname")}, true
}
