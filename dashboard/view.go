package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/isseis/go-ytdl-client/app_state"
	"github.com/isseis/go-ytdl-client/ytdl_api"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	accentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	panelStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	selStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Bold(true)
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
)

var statusStyles = map[ytdl_api.DownloadStatus]lipgloss.Style{
	ytdl_api.StatusStarted:     mutedStyle,
	ytdl_api.StatusDownloading: accentStyle,
	ytdl_api.StatusConverting:  accentStyle,
	ytdl_api.StatusFinished:    successStyle,
	ytdl_api.StatusDownloaded:  successStyle,
	ytdl_api.StatusDeleted:     mutedStyle,
	ytdl_api.StatusFailed:      errorStyle,
}

const (
	defaultWidth  = 80
	defaultHeight = 24
	sizeColumn    = 10
	timeColumn    = 9
	statusColumn  = 12
	kindColumn    = 6
)

func (m Model) View() string {
	width, height := m.width, m.height
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}

	var body string
	if m.layout == app_state.LayoutWide {
		body = m.renderTable(width, height)
	} else {
		body = m.renderStack(width, height)
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), body, m.renderFooter(width))
}

func (m Model) renderHeader() string {
	header := titleStyle.Render("ytdl downloads")
	if m.deps.APIVersion != "" {
		header += mutedStyle.Render("  api " + m.deps.APIVersion)
	}
	if st := m.deps.Jobs.Stats(); st.Active > 0 || st.Failed > 0 {
		header += mutedStyle.Render(fmt.Sprintf("  %d active, %d failed", st.Active, st.Failed))
	}
	if m.loading {
		header += "  " + m.spinner.View()
	}
	if !m.live {
		header += mutedStyle.Render("  (live updates off)")
	}
	return header
}

func (m Model) renderFooter(width int) string {
	lines := []string{}
	if m.mode == modeConfirmDelete {
		lines = append(lines, errorStyle.Render(fmt.Sprintf("Are you sure you want to delete %s? (y/n)", m.confirmTitle())))
	}
	if m.notice != nil {
		style := mutedStyle
		switch m.notice.Level {
		case app_state.LevelError:
			style = errorStyle
		case app_state.LevelSuccess:
			style = successStyle
		}
		lines = append(lines, style.Render(truncate(m.notice.Message, width)))
	}
	if m.statusLine != "" {
		lines = append(lines, mutedStyle.Render(truncate(m.statusLine, width)))
	}
	lines = append(lines, mutedStyle.Render("up/down: move | d: delete | r: retry | f: fetch | q: quit"))
	return strings.Join(lines, "\n")
}

func (m Model) confirmTitle() string {
	for _, job := range m.jobs {
		if job.MediaID == m.confirm {
			return fmt.Sprintf("%q", displayTitle(job))
		}
	}
	return string(m.confirm)
}

// renderTable lays jobs out as one row each with aligned columns.
func (m Model) renderTable(width, height int) string {
	inner := width - 4
	titleW := max(inner-sizeColumn-timeColumn-statusColumn-kindColumn-4, 10)
	barW := min(titleW/2, 30)

	header := headerStyle.Render(fmt.Sprintf("%-*s %-*s %-*s %*s %*s",
		titleW, "Title", kindColumn, "Kind", statusColumn, "Status", timeColumn, "Duration", sizeColumn, "Size"))
	lines := []string{header}
	if len(m.jobs) == 0 {
		lines = append(lines, mutedStyle.Render("No downloads yet."))
	}

	start, end := window(len(m.jobs), m.cursor, max(height-8, 3))
	for i := start; i < end; i++ {
		job := m.jobs[i]
		row := fmt.Sprintf("%-*s %-*s %-*s %*s %*s",
			titleW, truncate(displayTitle(job), titleW),
			kindColumn, kindLabel(job),
			statusColumn, statusLabel(job),
			timeColumn, ytdl_api.FormatDuration(job.Duration),
			sizeColumn, ytdl_api.JobFilesize(job))
		if i == m.cursor {
			row = selStyle.Render(row)
		}
		lines = append(lines, row)
		if job.Status.InProgress() {
			m.bar.Width = barW
			lines = append(lines, "  "+m.bar.ViewAs(float64(job.Progress)/100))
		}
	}
	return panelStyle.Width(width - 2).Render(strings.Join(lines, "\n"))
}

// renderStack shows each job as a small block, for narrow terminals.
func (m Model) renderStack(width, height int) string {
	inner := max(width-4, 10)
	var blocks []string
	if len(m.jobs) == 0 {
		blocks = append(blocks, mutedStyle.Render("No downloads yet."))
	}

	start, end := window(len(m.jobs), m.cursor, max((height-6)/3, 1))
	for i := start; i < end; i++ {
		job := m.jobs[i]
		title := truncate(displayTitle(job), inner)
		if i == m.cursor {
			title = selStyle.Render(title)
		}
		details := fmt.Sprintf("%s · %s · %s · %s",
			kindLabel(job), statusLabel(job), ytdl_api.FormatDuration(job.Duration), ytdl_api.JobFilesize(job))
		block := []string{title, mutedStyle.Render(truncate(details, inner))}
		if job.Status.InProgress() {
			m.bar.Width = inner
			block = append(block, m.bar.ViewAs(float64(job.Progress)/100))
		}
		blocks = append(blocks, strings.Join(block, "\n"))
	}
	return panelStyle.Width(width - 2).Render(strings.Join(blocks, "\n\n"))
}

func statusLabel(job ytdl_api.DownloadJob) string {
	label := string(job.Status)
	if job.Status.InProgress() {
		label = fmt.Sprintf("%s %d%%", job.Status, job.Progress)
	}
	style, ok := statusStyles[job.Status]
	if !ok {
		return label
	}
	// Padding happens before styling so escape codes do not skew columns.
	return style.Render(fmt.Sprintf("%-*s", statusColumn, label))
}

func kindLabel(job ytdl_api.DownloadJob) string {
	if job.MediaFormat != "" {
		return string(job.MediaFormat)
	}
	return strings.ToLower(job.Kind())
}

func displayTitle(job ytdl_api.DownloadJob) string {
	if job.Title != "" {
		return job.Title
	}
	return string(job.MediaID)
}

// window returns the visible slice [start, end) of total rows keeping cursor in view.
func window(total, cursor, rows int) (int, int) {
	if total <= rows {
		return 0, total
	}
	start := cursor - rows/2
	if start < 0 {
		start = 0
	}
	end := start + rows
	if end > total {
		end = total
		start = end - rows
	}
	return start, end
}

func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 0 || len(r) <= width {
		return s
	}
	if width <= 3 {
		return string(r[:width])
	}
	return string(r[:width-3]) + "..."
}
