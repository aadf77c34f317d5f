// Package dashboard renders the download registry as an interactive terminal
// view and forwards the user's delete, retry and fetch requests to the client.
package dashboard

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/isseis/go-ytdl-client/app_state"
	"github.com/isseis/go-ytdl-client/download_registry"
	"github.com/isseis/go-ytdl-client/ytdl_api"
	"github.com/isseis/go-ytdl-client/ytdl_client"
)

// Controller performs user actions. *ytdl_client.Client implements it.
type Controller interface {
	Delete(ctx context.Context, id ytdl_api.MediaID) error
	Retry(ctx context.Context, id ytdl_api.MediaID) error
	Fetch(ctx context.Context, id ytdl_api.MediaID, opts ...ytdl_client.FetchOption) (string, error)
}

// JobSource is the read side of the registry.
type JobSource interface {
	View() []ytdl_api.DownloadJob
	Stats() download_registry.Stats
	Changes() <-chan struct{}
}

// Deps are what the dashboard observes and drives.
type Deps struct {
	Jobs       JobSource
	Loading    *app_state.LoadingSignal
	Notices    *app_state.Notifier
	Actions    Controller
	APIVersion string          // shown in the header when known
	Session    <-chan Session  // receives the startup result once; may be nil
	StreamDone <-chan struct{} // closed when live updates stop; nil when they never started
}

// Session is what the startup sequence learned about the backend.
type Session struct {
	APIVersion string
}

type mode int

const (
	modeBrowse mode = iota
	modeConfirmDelete
)

type jobsChangedMsg struct{}

type loadingChangedMsg struct{}

type noticesMsg struct{}

type streamEndedMsg struct{}

type sessionMsg Session

type actionDoneMsg struct {
	verb string
	id   ytdl_api.MediaID
	path string
	err  error
}

// Model is the bubbletea model of the dashboard.
type Model struct {
	ctx  context.Context
	deps Deps

	jobs    []ytdl_api.DownloadJob
	cursor  int
	width   int
	height  int
	layout  app_state.Layout
	mode    mode
	confirm ytdl_api.MediaID

	loading    bool
	live       bool
	spinner    spinner.Model
	bar        progress.Model
	notice     *app_state.Notification
	statusLine string
}

// New creates the dashboard model.
func New(ctx context.Context, deps Deps) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = accentStyle
	return Model{
		ctx:     ctx,
		deps:    deps,
		jobs:    deps.Jobs.View(),
		layout:  app_state.LayoutNarrow,
		loading: deps.Loading.IsLoading(),
		live:    deps.StreamDone != nil,
		spinner: sp,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
	}
}

// Run shows the dashboard until the user quits or ctx is canceled.
func Run(ctx context.Context, deps Deps) error {
	p := tea.NewProgram(New(ctx, deps), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func waitFor(ch <-chan struct{}, msg tea.Msg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		<-ch
		return msg
	}
}

func waitSession(ch <-chan Session) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		info, ok := <-ch
		if !ok {
			return nil
		}
		return sessionMsg(info)
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		waitFor(m.deps.Jobs.Changes(), jobsChangedMsg{}),
		waitFor(m.deps.Loading.Changes(), loadingChangedMsg{}),
		waitFor(m.deps.Notices.Changes(), noticesMsg{}),
		waitFor(m.deps.StreamDone, streamEndedMsg{}),
		waitSession(m.deps.Session),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout = app_state.LayoutForWidth(msg.Width)
		return m, nil
	case jobsChangedMsg:
		m.jobs = m.deps.Jobs.View()
		m.clampCursor()
		return m, waitFor(m.deps.Jobs.Changes(), jobsChangedMsg{})
	case loadingChangedMsg:
		m.loading = m.deps.Loading.IsLoading()
		return m, waitFor(m.deps.Loading.Changes(), loadingChangedMsg{})
	case noticesMsg:
		if drained := m.deps.Notices.Drain(); len(drained) > 0 {
			last := drained[len(drained)-1]
			m.notice = &last
		}
		return m, waitFor(m.deps.Notices.Changes(), noticesMsg{})
	case streamEndedMsg:
		m.live = false
		return m, nil
	case sessionMsg:
		if msg.APIVersion != "" {
			m.deps.APIVersion = msg.APIVersion
		}
		return m, nil
	case actionDoneMsg:
		// Failures already reached the notification queue.
		if msg.err == nil {
			switch msg.verb {
			case "fetch":
				m.statusLine = "saved " + msg.path
			default:
				m.statusLine = fmt.Sprintf("%s %s requested", msg.verb, msg.id)
			}
		} else {
			m.statusLine = ""
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if m.mode == modeConfirmDelete {
			return m.updateConfirm(msg)
		}
		return m.updateBrowse(msg)
	}
	return m, nil
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.jobs)-1 {
			m.cursor++
		}
	case "d":
		job, ok := m.selected()
		if !ok {
			m.statusLine = "nothing to delete"
			return m, nil
		}
		m.mode = modeConfirmDelete
		m.confirm = job.MediaID
	case "r":
		job, ok := m.selected()
		if !ok {
			return m, nil
		}
		if job.Status != ytdl_api.StatusFailed {
			m.statusLine = "only failed downloads can be retried"
			return m, nil
		}
		return m, m.retryCmd(job.MediaID)
	case "f":
		job, ok := m.selected()
		if !ok {
			return m, nil
		}
		if !job.Status.Fetchable() {
			m.statusLine = "download is not finished yet"
			return m, nil
		}
		m.statusLine = "fetching " + job.Title + "..."
		return m, m.fetchCmd(job.MediaID)
	}
	return m, nil
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "enter":
		id := m.confirm
		m.mode = modeBrowse
		m.confirm = ""
		return m, m.deleteCmd(id)
	case "n", "esc", "ctrl+c":
		m.mode = modeBrowse
		m.confirm = ""
		m.statusLine = "delete cancelled"
	}
	return m, nil
}

func (m Model) selected() (ytdl_api.DownloadJob, bool) {
	if m.cursor < 0 || m.cursor >= len(m.jobs) {
		return ytdl_api.DownloadJob{}, false
	}
	return m.jobs[m.cursor], true
}

func (m *Model) clampCursor() {
	if m.cursor > len(m.jobs)-1 {
		m.cursor = len(m.jobs) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) deleteCmd(id ytdl_api.MediaID) tea.Cmd {
	return func() tea.Msg {
		err := m.deps.Actions.Delete(m.ctx, id)
		return actionDoneMsg{verb: "delete", id: id, err: err}
	}
}

func (m Model) retryCmd(id ytdl_api.MediaID) tea.Cmd {
	return func() tea.Msg {
		err := m.deps.Actions.Retry(m.ctx, id)
		return actionDoneMsg{verb: "retry", id: id, err: err}
	}
}

func (m Model) fetchCmd(id ytdl_api.MediaID) tea.Cmd {
	return func() tea.Msg {
		path, err := m.deps.Actions.Fetch(m.ctx, id)
		return actionDoneMsg{verb: "fetch", id: id, path: path, err: err}
	}
}
