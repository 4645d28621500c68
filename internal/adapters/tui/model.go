// Package tui is a terminal frontend over the entry and room controllers.
package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dkeye/WatchParty/internal/app"
	"github.com/dkeye/WatchParty/internal/app/entry"
	"github.com/dkeye/WatchParty/internal/app/room"
	"github.com/dkeye/WatchParty/internal/domain"
	"github.com/rs/zerolog/log"
)

// Token is the client token the terminal registers under.
const Token app.ClientToken = "terminal"

type screen int

const (
	screenEntry screen = iota
	screenRoom
)

type (
	entryViewMsg struct{ view entry.View }
	roomViewMsg  struct{ view room.View }
	navigateMsg  struct{ nav domain.Navigation }
	mountedMsg   struct{ ctl *room.Controller }
	homeMsg      struct{}
	opFailedMsg  struct{ err error }
)

// bridge forwards controller notifications into the running program.
type bridge struct {
	mu sync.Mutex
	p  *tea.Program
}

func (b *bridge) set(p *tea.Program) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.p = p
}

func (b *bridge) send(msg tea.Msg) {
	b.mu.Lock()
	p := b.p
	b.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

type Model struct {
	ctx    context.Context
	orch   *app.Orchestrator
	entry  *entry.Controller
	bridge *bridge
	styles styles

	screen   screen
	focus    int // 0 nickname, 1 room id
	nickname textinput.Model
	roomID   textinput.Model
	compose  textinput.Model
	spinner  spinner.Model
	viewport viewport.Model

	entryView entry.View
	roomView  room.View
	room      *room.Controller
	width     int
	height    int
}

func New(ctx context.Context, orch *app.Orchestrator) Model {
	nick := textinput.New()
	nick.Placeholder = "Enter your nickname"
	nick.CharLimit = domain.MaxNicknameLen
	nick.Focus()

	rid := textinput.New()
	rid.Placeholder = "Enter Room ID"

	compose := textinput.New()
	compose.Placeholder = "Type a message..."

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	b := &bridge{}
	ent := orch.Entry(Token)
	ent.OnChange(func(v entry.View) { b.send(entryViewMsg{view: v}) })

	return Model{
		ctx:       ctx,
		orch:      orch,
		entry:     ent,
		bridge:    b,
		styles:    defaultStyles(),
		nickname:  nick,
		roomID:    rid,
		compose:   compose,
		spinner:   sp,
		viewport:  viewport.New(80, 20),
		entryView: ent.View(),
	}
}

// Run blocks until the user quits or ctx ends.
func Run(ctx context.Context, orch *app.Orchestrator) error {
	m := New(ctx, orch)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	m.bridge.set(p)
	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = max(msg.Width-4, 20)
		m.viewport.Height = max(msg.Height-9, 5)
		m.compose.Width = max(msg.Width-8, 10)
		m.refreshViewport()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case entryViewMsg:
		m.entryView = msg.view
		return m, nil

	case roomViewMsg:
		if m.screen != screenRoom {
			return m, nil
		}
		m.roomView = msg.view
		m.refreshViewport()
		return m, nil

	case navigateMsg:
		m.screen = screenRoom
		m.roomView = room.View{RoomID: msg.nav.RoomID, State: room.Connecting}
		m.compose.Reset()
		m.compose.Focus()
		m.refreshViewport()
		return m, m.mount(msg.nav)

	case mountedMsg:
		m.room = msg.ctl
		return m, nil

	case homeMsg:
		m.screen = screenEntry
		m.room = nil
		m.roomView = room.View{}
		m.focusEntry()
		return m, nil

	case opFailedMsg:
		log.Debug().Err(msg.err).Str("module", "tui").Msg("command failed")
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.screen == screenEntry {
			return m.updateEntry(msg)
		}
		return m.updateRoom(msg)
	}
	return m, nil
}

func (m Model) updateEntry(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyTab, tea.KeyShiftTab, tea.KeyUp, tea.KeyDown:
		m.focus = 1 - m.focus
		m.focusEntry()
		return m, nil
	case tea.KeyCtrlN:
		if m.entryView.Disabled() {
			return m, nil
		}
		return m, m.create(m.nickname.Value())
	case tea.KeyEnter:
		if m.entryView.Disabled() {
			return m, nil
		}
		return m, m.join(m.nickname.Value(), m.roomID.Value())
	}

	var cmd tea.Cmd
	if m.focus == 0 {
		m.nickname, cmd = m.nickname.Update(msg)
	} else {
		m.roomID, cmd = m.roomID.Update(msg)
	}
	return m, cmd
}

func (m Model) updateRoom(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		return m, m.leave()
	case tea.KeyEnter:
		text := m.compose.Value()
		m.compose.Reset()
		return m, m.send(text)
	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	before := m.compose.Value()
	m.compose, cmd = m.compose.Update(msg)
	if m.compose.Value() != before && m.room != nil {
		ctl := m.room
		return m, tea.Batch(cmd, func() tea.Msg {
			ctl.Keystroke()
			return nil
		})
	}
	return m, cmd
}

func (m *Model) focusEntry() {
	if m.focus == 0 {
		m.nickname.Focus()
		m.roomID.Blur()
	} else {
		m.roomID.Focus()
		m.nickname.Blur()
	}
}

// Controller calls run as commands: they notify listeners, and listeners
// feed the program, which must not block inside Update.

func (m Model) create(nickname string) tea.Cmd {
	ent, ctx := m.entry, m.ctx
	return func() tea.Msg {
		ent.SetNickname(nickname)
		nav, err := ent.CreateRoom(ctx)
		if err != nil {
			return opFailedMsg{err: err}
		}
		return navigateMsg{nav: nav}
	}
}

func (m Model) join(nickname, roomID string) tea.Cmd {
	ent, ctx := m.entry, m.ctx
	return func() tea.Msg {
		ent.SetNickname(nickname)
		ent.SetRoomID(roomID)
		nav, err := ent.JoinRoom(ctx)
		if err != nil {
			return opFailedMsg{err: err}
		}
		return navigateMsg{nav: nav}
	}
}

func (m Model) mount(nav domain.Navigation) tea.Cmd {
	orch, ctx, b := m.orch, m.ctx, m.bridge
	return func() tea.Msg {
		ctl := orch.MountRoom(ctx, Token, nav, func(v room.View) { b.send(roomViewMsg{view: v}) })
		return mountedMsg{ctl: ctl}
	}
}

func (m Model) send(text string) tea.Cmd {
	ctl := m.room
	if ctl == nil {
		return nil
	}
	return func() tea.Msg {
		if err := ctl.Send(text); err != nil {
			return opFailedMsg{err: err}
		}
		return nil
	}
}

// leave disconnects from a live room; from an errored one it only goes home.
func (m Model) leave() tea.Cmd {
	orch, ctl, state := m.orch, m.room, m.roomView.State
	return func() tea.Msg {
		if state == room.Errored {
			orch.ReturnHome(Token, ctl)
		} else {
			orch.Leave(Token)
		}
		return homeMsg{}
	}
}

func (m *Model) refreshViewport() {
	m.viewport.SetContent(m.renderMessages())
	m.viewport.GotoBottom()
}

func (m Model) renderMessages() string {
	var b strings.Builder
	id := m.roomView.Identity
	for _, msg := range m.roomView.Messages {
		switch {
		case msg.IsSystemMessage:
			b.WriteString(m.styles.system.Render(msg.Body))
		case id.Owns(msg):
			line := m.styles.own.Render(msg.Body)
			if w := m.viewport.Width; w > 0 {
				line = lipgloss.PlaceHorizontal(w, lipgloss.Right, line)
			}
			b.WriteString(line)
		default:
			nick := msg.UserNickname
			if nick == "" {
				nick = "anonymous"
			}
			b.WriteString(m.styles.nick.Render(nick) + " " + m.styles.other.Render(msg.Body))
			if msg.Timestamp > 0 {
				b.WriteString(" " + m.styles.subtle.Render(time.UnixMilli(msg.Timestamp).Format("15:04")))
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (m Model) View() string {
	if m.screen == screenRoom {
		return m.viewRoom()
	}
	return m.viewEntry()
}

func (m Model) viewEntry() string {
	var b strings.Builder
	b.WriteString(m.styles.title.Render("WatchParty Chat") + "\n")
	b.WriteString(m.styles.subtle.Render("Watch TV in sync with friends") + "\n\n")

	if !m.entryView.Ready {
		b.WriteString(m.spinner.View() + " " + m.styles.subtle.Render("Connecting to server…") + "\n\n")
	}

	b.WriteString("Your Nickname\n" + m.nickname.View() + "\n\n")
	b.WriteString("Room ID\n" + m.roomID.View() + "\n\n")

	switch {
	case m.entryView.Creating:
		b.WriteString(m.spinner.View() + " Creating…\n")
	case m.entryView.Joining:
		b.WriteString(m.spinner.View() + " Joining…\n")
	}
	if m.entryView.Error != "" {
		b.WriteString(m.styles.errorBox.Render(m.entryView.Error) + "\n")
	}
	b.WriteString(m.styles.help.Render("ctrl+n create room • enter join room • tab switch field • ctrl+c quit"))
	return m.styles.panel.Render(b.String())
}

func (m Model) viewRoom() string {
	v := m.roomView
	switch v.State {
	case room.Connecting:
		return m.spinner.View() + " Connecting to room…"
	case room.Errored:
		return m.styles.errorBox.Render(fmt.Sprintf("Connection Error\n\n%s", v.Error)) + "\n" +
			m.styles.help.Render("esc go back home")
	}

	var b strings.Builder
	status := ""
	if v.State == room.Connected {
		status = " ●"
	}
	b.WriteString(m.styles.title.Render("WatchParty Chat") + "  " + m.styles.subtle.Render("Room: "+string(v.RoomID)+status) + "\n")
	b.WriteString(m.viewport.View() + "\n")
	if v.AnyoneTyping {
		b.WriteString(m.styles.typing.Render("Someone is typing...") + "\n")
	} else {
		b.WriteByte('\n')
	}
	if v.Banner != "" {
		b.WriteString(m.styles.banner.Render(v.Banner) + "\n")
	}
	b.WriteString(m.compose.View() + "\n")
	b.WriteString(m.styles.help.Render("enter send • esc leave • pgup/pgdn scroll"))
	return b.String()
}
