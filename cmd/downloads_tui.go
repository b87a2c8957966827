package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/grovetools/scribe/errors"
	"github.com/grovetools/scribe/pkg/models"
	"github.com/grovetools/scribe/pkg/reconcile"
	scribesync "github.com/grovetools/scribe/pkg/sync"
)

type downloadKeyMap struct {
	Quit  key.Binding
	Clear key.Binding
}

func (k downloadKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Clear, k.Quit}
}

func (k downloadKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var downloadKeys = downloadKeyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Clear: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "dismiss error"),
	),
}

var (
	tuiTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208"))
	tuiNameStyle   = lipgloss.NewStyle().Bold(true)
	tuiMutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	tuiBannerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("9")).Padding(0, 1)
	statusStyles   = map[models.DownloadStatus]lipgloss.Style{
		models.DownloadPending:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		models.DownloadDownloading: lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		models.DownloadVerifying:   lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		models.DownloadComplete:    lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		models.DownloadError:       lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	}
)

// Messages
type snapshotMsg reconcile.Collection[models.Download]
type alertMsg struct{ err *errors.AppError }
type streamClosedMsg struct{}

type downloadsModel struct {
	client    *scribesync.Client
	downloads []models.Download
	bar       progress.Model
	help      help.Model
	banner    *errors.AppError
	width     int
	updates   <-chan reconcile.Collection[models.Download]
	alerts    <-chan *errors.AppError
}

func newDownloadsModel(client *scribesync.Client) *downloadsModel {
	updates, _ := client.Downloads.Subscribe()
	alerts, _ := client.Slot.Subscribe()
	return &downloadsModel{
		client:    client,
		downloads: client.Downloads.GetAll(),
		bar:       progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		help:      help.New(),
		banner:    client.Slot.Current(),
		updates:   updates,
		alerts:    alerts,
	}
}

func (m *downloadsModel) Init() tea.Cmd {
	return tea.Batch(m.waitForSnapshot(), m.waitForAlert())
}

func (m *downloadsModel) waitForSnapshot() tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-m.updates
		if !ok {
			return streamClosedMsg{}
		}
		return snapshotMsg(snap)
	}
}

func (m *downloadsModel) waitForAlert() tea.Cmd {
	return func() tea.Msg {
		err, ok := <-m.alerts
		if !ok {
			return nil
		}
		return alertMsg{err}
	}
}

func (m *downloadsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, downloadKeys.Quit):
			return m, tea.Quit
		case key.Matches(msg, downloadKeys.Clear):
			m.client.Slot.Clear()
			m.banner = nil
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(10, min(60, msg.Width-30))
		m.help.Width = msg.Width
		return m, nil

	case snapshotMsg:
		m.downloads = reconcile.Collection[models.Download](msg).All()
		return m, m.waitForSnapshot()

	case alertMsg:
		m.banner = msg.err
		return m, m.waitForAlert()

	case streamClosedMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m *downloadsModel) View() string {
	var b strings.Builder
	b.WriteString(tuiTitleStyle.Render("DOWNLOADS") + "\n\n")

	if m.banner != nil {
		b.WriteString(tuiBannerStyle.Render(fmt.Sprintf("%s: %s", m.banner.Kind, m.banner.Message)) + "\n\n")
	}

	if len(m.downloads) == 0 {
		b.WriteString(tuiMutedStyle.Render("No downloads") + "\n")
	}
	for _, d := range m.downloads {
		name := d.Name
		if name == "" {
			name = d.ID
		}
		status := statusStyles[d.Status].Render(string(d.Status))
		if d.StatusReason != "" {
			status += tuiMutedStyle.Render(" " + d.StatusReason)
		}
		b.WriteString(tuiNameStyle.Render(name) + "  " + status + "\n")
		b.WriteString(m.bar.ViewAs(d.Fraction()))
		if d.Status == models.DownloadDownloading && d.SpeedBytes > 0 {
			b.WriteString(tuiMutedStyle.Render("  " + formatBytes(d.SpeedBytes) + "/s"))
		}
		b.WriteString("\n\n")
	}

	b.WriteString(m.help.View(downloadKeys))
	return b.String()
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func runDownloadsTUI(ctx context.Context, client *scribesync.Client) error {
	p := tea.NewProgram(newDownloadsModel(client), tea.WithContext(ctx), tea.WithAltScreen())
	if _, err := p.Run(); err != nil && !stderrors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
