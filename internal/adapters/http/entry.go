package http

import (
	"errors"
	"net/http"

	"github.com/dkeye/WatchParty/internal/app"
	"github.com/dkeye/WatchParty/internal/app/entry"
	"github.com/dkeye/WatchParty/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const sessionNicknameKey = "nickname"

// EntryController serves the entry view as JSON.
type EntryController struct {
	Orch *app.Orchestrator
}

type createRequest struct {
	Nickname string `json:"nickname" binding:"max=256"`
}

type joinRequest struct {
	Nickname string `json:"nickname" binding:"max=256"`
	RoomID   string `json:"room_id" binding:"max=256"`
}

type navigationResponse struct {
	RoomID   domain.RoomID `json:"room_id"`
	Nickname string        `json:"nickname"`
	Location string        `json:"location"`
}

// entryFor returns the entry controller of the caller, seeding the nickname
// remembered in the cookie session.
func (ctl *EntryController) entryFor(c *gin.Context) *entry.Controller {
	ent := ctl.Orch.Entry(clientToken(c))
	if ent.View().Nickname == "" {
		if nick, ok := sessions.Default(c).Get(sessionNicknameKey).(string); ok && nick != "" {
			ent.SetNickname(nick)
		}
	}
	return ent
}

func (ctl *EntryController) HandleView(c *gin.Context) {
	ent := ctl.entryFor(c)
	c.JSON(http.StatusOK, ent.View())
}

// HandleReady reports readiness; with ?wait=true it blocks until ready or
// until the client goes away.
func (ctl *EntryController) HandleReady(c *gin.Context) {
	if c.Query("wait") == "true" {
		if err := ctl.Orch.Session.WaitUntilReady(c.Request.Context()); err != nil {
			log.Debug().Err(err).Str("module", "adapters.http").Msg("ready wait aborted")
			c.JSON(http.StatusRequestTimeout, gin.H{"ready": false})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"ready": ctl.Orch.Session.IsReady()})
}

func (ctl *EntryController) HandleCreate(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	ent := ctl.entryFor(c)
	ent.SetNickname(req.Nickname)

	nav, err := ent.CreateRoom(c.Request.Context())
	if err != nil {
		ctl.fail(c, ent, err)
		return
	}
	ctl.succeed(c, nav)
}

func (ctl *EntryController) HandleJoin(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	ent := ctl.entryFor(c)
	ent.SetNickname(req.Nickname)
	ent.SetRoomID(req.RoomID)

	nav, err := ent.JoinRoom(c.Request.Context())
	if err != nil {
		ctl.fail(c, ent, err)
		return
	}
	ctl.succeed(c, nav)
}

func (ctl *EntryController) succeed(c *gin.Context, nav domain.Navigation) {
	sess := sessions.Default(c)
	sess.Set(sessionNicknameKey, nav.Nickname)
	if err := sess.Save(); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("save session")
	}
	c.JSON(http.StatusOK, navigationResponse{
		RoomID:   nav.RoomID,
		Nickname: nav.Nickname,
		Location: nav.Location(),
	})
}

func (ctl *EntryController) fail(c *gin.Context, ent *entry.Controller, err error) {
	switch {
	case errors.Is(err, entry.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": "busy"})
	case errors.Is(err, domain.ErrMissingParameter), errors.Is(err, domain.ErrNicknameTooLong):
		c.JSON(http.StatusBadRequest, gin.H{"error": ent.View().Error})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": ent.View().Error})
	}
}
