package tui

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"drift/internal/updater"
)

const maxLogLines = 8

// wsFrame mirrors the server's WebSocket message envelope.
type wsFrame struct {
	Type  string            `json:"type"`
	State *updater.Snapshot `json:"state"`
	Event *updater.Event    `json:"event"`
}

// Model is the live updater watch view.
type Model struct {
	addr    string
	version string

	conn   *websocket.Conn
	frames chan wsFrame

	snap      updater.Snapshot
	log       []string
	connected bool
	err       string

	spin   spinner.Model
	bar    progress.Model
	help   help.Model
	width  int
	height int
}

// connectedMsg is sent once the WebSocket handshake completes.
type connectedMsg struct {
	conn   *websocket.Conn
	frames chan wsFrame
}

// frameMsg carries one decoded WebSocket frame.
type frameMsg wsFrame

// disconnectedMsg is sent when the stream ends.
type disconnectedMsg struct{ err error }

// actionDoneMsg is sent after a keyboard-triggered command round trip.
type actionDoneMsg struct {
	action string
	err    error
}

// NewModel creates the initial watch model for a service at addr.
func NewModel(addr, version string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		addr:    addr,
		version: version,
		spin:    sp,
		bar:     progress.New(progress.WithDefaultGradient()),
		help:    help.New(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.connect(), m.spin.Tick)
}

// connect dials the event stream and starts the reader.
func (m Model) connect() tea.Cmd {
	addr := m.addr
	return func() tea.Msg {
		conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
		if err != nil {
			return disconnectedMsg{err: err}
		}
		frames := make(chan wsFrame, 16)
		go func() {
			defer close(frames)
			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					return
				}
				var f wsFrame
				if err := json.Unmarshal(data, &f); err != nil {
					continue
				}
				frames <- f
			}
		}()
		return connectedMsg{conn: conn, frames: frames}
	}
}

// waitFrame blocks on the next frame from the reader.
func waitFrame(frames chan wsFrame) tea.Cmd {
	return func() tea.Msg {
		f, ok := <-frames
		if !ok {
			return disconnectedMsg{}
		}
		return frameMsg(f)
	}
}

// post fires a command at the service. Download blocks server-side until the
// artifact is staged, so every action runs in its own goroutine via tea.Cmd.
func (m Model) post(action, path string) tea.Cmd {
	url := "http://" + m.addr + path
	return func() tea.Msg {
		client := &http.Client{Timeout: 20 * time.Minute}
		resp, err := client.Post(url, "application/json", nil)
		if err != nil {
			return actionDoneMsg{action: action, err: err}
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			var body struct {
				Error string `json:"error"`
			}
			_ = json.NewDecoder(resp.Body).Decode(&body)
			return actionDoneMsg{action: action, err: fmt.Errorf("%s", body.Error)}
		}
		return actionDoneMsg{action: action}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = min(msg.Width-8, 60)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			if m.conn != nil {
				m.conn.Close()
			}
			return m, tea.Quit
		case key.Matches(msg, keys.Check):
			return m, m.post("check", "/check?force=1")
		case key.Matches(msg, keys.Download):
			return m, m.post("download", "/download")
		case key.Matches(msg, keys.Install):
			return m, m.post("install", "/install")
		case key.Matches(msg, keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		}
		return m, nil

	case connectedMsg:
		m.conn = msg.conn
		m.frames = msg.frames
		m.connected = true
		m.err = ""
		return m, waitFrame(m.frames)

	case frameMsg:
		m.apply(wsFrame(msg))
		return m, waitFrame(m.frames)

	case disconnectedMsg:
		m.connected = false
		if msg.err != nil {
			m.err = msg.err.Error()
		} else {
			m.err = "connection lost"
		}
		return m, nil

	case actionDoneMsg:
		if msg.err != nil {
			m.appendLog(statusErrorStyle.Render(fmt.Sprintf("%s: %v", msg.action, msg.err)))
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

// apply folds one frame into the rendered state.
func (m *Model) apply(f wsFrame) {
	switch f.Type {
	case "state":
		if f.State != nil {
			m.snap = *f.State
		}
	case "event":
		if f.Event == nil {
			return
		}
		evt := *f.Event
		switch evt.Kind {
		case updater.EventChecking:
			m.snap.Phase = updater.PhaseChecking
			m.appendLog("checking for updates")
		case updater.EventAvailable:
			m.snap.Phase = updater.PhaseUpdateAvailable
			m.snap.LatestVersion = evt.Version
			m.appendLog(statusOkStyle.Render("update available: " + evt.Version))
		case updater.EventNotAvailable:
			m.snap.Phase = updater.PhaseUpToDate
			m.appendLog("up to date")
		case updater.EventProgress:
			m.snap.Phase = updater.PhaseDownloading
			m.snap.Progress = evt.Progress
		case updater.EventDownloaded:
			m.snap.Phase = updater.PhaseDownloaded
			m.snap.Progress = evt.Progress
			m.appendLog(statusOkStyle.Render("downloaded " + evt.Version))
		case updater.EventError:
			m.snap.Phase = updater.PhaseError
			m.appendLog(statusErrorStyle.Render(evt.Message))
		}
	}
}

func (m *Model) appendLog(line string) {
	stamp := time.Now().Format("15:04:05")
	m.log = append(m.log, logStyle.Render(stamp+"  ")+line)
	if len(m.log) > maxLogLines {
		m.log = m.log[len(m.log)-maxLogLines:]
	}
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("drift updater"))
	b.WriteString("  ")
	b.WriteString(phaseValueStyle.Render(m.version))
	b.WriteString("\n\n")

	if !m.connected {
		if m.err != "" {
			b.WriteString(statusErrorStyle.Render("✗ " + m.err))
		} else {
			b.WriteString(m.spin.View() + " connecting to " + m.addr)
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render(m.help.View(keys)))
		return appStyle.Render(b.String())
	}

	b.WriteString(phaseLabelStyle.Render("Phase    "))
	b.WriteString(m.renderPhase())
	b.WriteString("\n")
	b.WriteString(phaseLabelStyle.Render("Current  "))
	b.WriteString(phaseValueStyle.Render(m.snap.CurrentVersion))
	b.WriteString("\n")
	if m.snap.LatestVersion != "" {
		b.WriteString(phaseLabelStyle.Render("Latest   "))
		b.WriteString(phaseValueStyle.Render(m.snap.LatestVersion))
		b.WriteString("\n")
	}

	if m.snap.Phase == updater.PhaseDownloading {
		b.WriteString("\n")
		b.WriteString(m.bar.ViewAs(m.snap.Progress.Percent / 100))
		b.WriteString("\n")
		b.WriteString(logStyle.Render(fmt.Sprintf("%s / %s  %s",
			updater.FormatBytes(m.snap.Progress.Transferred),
			updater.FormatBytes(m.snap.Progress.Total),
			updater.FormatRate(m.snap.Progress.BytesPerSecond))))
		b.WriteString("\n")
	}

	if len(m.log) > 0 {
		b.WriteString("\n")
		b.WriteString(strings.Join(m.log, "\n"))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render(m.help.View(keys)))
	return appStyle.Render(b.String())
}

// renderPhase colors the phase by severity.
func (m Model) renderPhase() string {
	switch m.snap.Phase {
	case updater.PhaseChecking, updater.PhaseDownloading, updater.PhaseInstalling:
		return m.spin.View() + string(m.snap.Phase)
	case updater.PhaseError:
		return statusErrorStyle.Render(string(m.snap.Phase))
	case updater.PhaseUpdateAvailable, updater.PhaseDownloaded:
		return statusWarnStyle.Render(string(m.snap.Phase))
	case updater.PhaseUpToDate:
		return statusOkStyle.Render(string(m.snap.Phase))
	default:
		return phaseValueStyle.Render(string(m.snap.Phase))
	}
}

// Run starts the watch view against a service at addr.
func Run(addr, version string) error {
	m := NewModel(addr, version)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
