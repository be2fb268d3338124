package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUIRenderer draws ingest progress with bubbletea.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *ingestModel
	tracker *ProgressTracker
	started bool
	done    chan struct{}
}

// NewTUIRenderer fails when the output is not a terminal.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, errors.New("output is not a TTY")
	}

	tracker := NewProgressTracker()
	model := newIngestModel(tracker, cfg)
	return &TUIRenderer{
		cfg:     cfg,
		tracker: tracker,
		model:   model,
		done:    make(chan struct{}),
	}, nil
}

// Start implements Renderer. The program runs until Complete or Stop.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	r.program = tea.NewProgram(r.model, opts...)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

// UpdateProgress implements Renderer.
func (r *TUIRenderer) UpdateProgress(event ProgressEvent) {
	r.tracker.Apply(event)
	r.send(refreshMsg{})
}

// AddError implements Renderer.
func (r *TUIRenderer) AddError(event ErrorEvent) {
	r.tracker.AddError(event)
	r.send(refreshMsg{})
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.tracker.Apply(ProgressEvent{Stage: StageComplete})
	r.send(completeMsg(stats))
}

func (r *TUIRenderer) send(msg tea.Msg) {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// Stop implements Renderer. It waits briefly for the program to restore the
// terminal.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p == nil {
		return nil
	}

	p.Quit()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
	}
	return nil
}

type refreshMsg struct{}
type completeMsg CompletionStats
type tickMsg time.Time

// pipeline lists the stages shown in the header, in order.
var pipeline = []struct {
	stage Stage
	name  string
}{
	{StageExtracting, "Extract"},
	{StageChunking, "Chunk"},
	{StageEmbedding, "Embed"},
	{StageIndexing, "Index"},
	{StageSaving, "Save"},
}

type ingestModel struct {
	tracker  *ProgressTracker
	title    string
	styles   Styles
	spinner  spinner.Model
	bar      progress.Model
	width    int
	quitting bool
	complete bool
	stats    CompletionStats
}

func newIngestModel(tracker *ProgressTracker, cfg Config) *ingestModel {
	styles := GetStyles(cfg.NoColor)

	s := spinner.New()
	switch cfg.SpinnerStyle {
	case "line":
		s.Spinner = spinner.Line
	case "points":
		s.Spinner = spinner.Points
	default:
		s.Spinner = spinner.Dot
	}
	s.Style = styles.Active

	title := cfg.Title
	if title == "" {
		title = "docrag ingest"
	}

	return &ingestModel{
		tracker: tracker,
		title:   title,
		styles:  styles,
		spinner: s,
		bar: progress.New(
			progress.WithSolidFill(ColorAccent),
			progress.WithWidth(40),
			progress.WithoutPercentage(),
		),
		width: 80,
	}
}

// Init implements tea.Model.
func (m *ingestModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

func tick() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update implements tea.Model.
func (m *ingestModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.quitting = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(msg.Width-24, 20)
	case completeMsg:
		m.complete = true
		m.stats = CompletionStats(msg)
		return m, tea.Quit
	case tickMsg:
		return m, tick()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *ingestModel) View() string {
	if m.quitting {
		return "Cancelled.\n"
	}
	if m.complete {
		return m.viewComplete()
	}

	stats := m.tracker.Stats()
	width := max(m.width-4, 40)

	lines := []string{
		m.styles.Header.Render(m.title),
		m.viewStages(stats.Stage),
		m.styles.Border.Render(strings.Repeat("─", width)),
	}
	if stats.Documents > 0 {
		lines = append(lines, m.styles.Label.Render("Document ")+
			m.styles.Value.Render(fmt.Sprintf("%d / %d", stats.Document, stats.Documents)))
	}
	if stats.CurrentFile != "" {
		lines = append(lines, m.styles.Value.Render(truncateFilePath(stats.CurrentFile, width)))
	}
	lines = append(lines, m.viewProgress(stats))
	lines = append(lines, m.viewStatus(stats))

	return strings.Join(lines, "\n") + "\n"
}

func (m *ingestModel) viewStages(current Stage) string {
	parts := make([]string, 0, len(pipeline))
	for _, p := range pipeline {
		switch {
		case p.stage < current:
			parts = append(parts, m.styles.Done.Render("● "+p.name))
		case p.stage == current:
			parts = append(parts, m.styles.Active.Render(m.spinner.View()+" "+p.name))
		default:
			parts = append(parts, m.styles.Dim.Render("○ "+p.name))
		}
	}
	return strings.Join(parts, m.styles.Dim.Render(" → "))
}

func (m *ingestModel) viewProgress(stats ProgressStats) string {
	if stats.Total <= 1 {
		return m.spinner.View() + " " + m.styles.Label.Render(stats.Stage.String()+"...")
	}

	line := m.bar.ViewAs(stats.Progress) + "  " +
		m.styles.Active.Render(fmt.Sprintf("%3.0f%%", stats.Progress*100)) + "  " +
		m.styles.Label.Render(fmt.Sprintf("%d / %d", stats.Current, stats.Total))
	if stats.Stage == StageEmbedding && stats.Rate > 0 {
		line += m.styles.Label.Render(fmt.Sprintf("  %.0f chunks/s", stats.Rate))
	}
	if stats.ETA > 0 {
		line += m.styles.Label.Render("  ETA " + formatDuration(stats.ETA))
	}
	return line
}

func (m *ingestModel) viewStatus(stats ProgressStats) string {
	var parts []string
	if stats.WarnCount > 0 {
		parts = append(parts, m.styles.Warning.Render(fmt.Sprintf("⚠ %d warnings", stats.WarnCount)))
	}
	if stats.ErrorCount > 0 {
		parts = append(parts, m.styles.Error.Render(fmt.Sprintf("✗ %d failed", stats.ErrorCount)))
	}
	parts = append(parts, m.styles.Dim.Render("q to quit"))
	return strings.Join(parts, m.styles.Dim.Render("  │  "))
}

func (m *ingestModel) viewComplete() string {
	s := m.stats
	row := func(label, value string) string {
		return m.styles.Label.Render(fmt.Sprintf("%-10s", label)) + m.styles.Value.Render(value)
	}

	lines := []string{
		m.styles.Header.Render("✓ Ingest complete"),
		"",
		row("Documents", fmt.Sprintf("%d (%d cached)", s.Documents, s.Cached)),
		row("Chunks", fmt.Sprintf("%d", s.Chunks)),
		row("Duration", formatDuration(s.Duration)),
	}
	if s.Embedder.Provider != "" {
		lines = append(lines, row("Embedder", fmt.Sprintf("%s %s (%d dims)", s.Embedder.Provider, s.Embedder.Model, s.Embedder.Dimensions)))
	}
	if s.Degraded > 0 {
		lines = append(lines, m.styles.Warning.Render(fmt.Sprintf("⚠ %d chunks degraded", s.Degraded)))
	}
	if s.Failed > 0 {
		lines = append(lines, m.styles.Error.Render(fmt.Sprintf("✗ %d documents failed", s.Failed)))
	}

	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorAccentLo)).
		Padding(0, 2)
	return panel.Render(strings.Join(lines, "\n")) + "\n"
}

// formatDuration renders 45s, 3m 12s or 1h 5m.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		if s := int(d.Seconds()) % 60; s != 0 {
			return fmt.Sprintf("%dm %ds", int(d.Minutes()), s)
		}
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// truncateFilePath shortens path to maxLen runes, keeping the file name.
func truncateFilePath(path string, maxLen int) string {
	r := []rune(path)
	if len(r) <= maxLen {
		return path
	}
	if maxLen < 4 {
		return "..."
	}

	slash := strings.LastIndex(path, "/")
	name := []rune(path[slash+1:])
	if slash < 0 || len(name)+4 > maxLen {
		return "..." + string(r[len(r)-maxLen+3:])
	}

	dir := []rune(path[:slash])
	keep := maxLen - len(name) - 4
	return "..." + string(dir[len(dir)-keep:]) + "/" + string(name)
}

var _ Renderer = (*TUIRenderer)(nil)
