package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// DocumentRow is one cached document in a listing.
type DocumentRow struct {
	Hash         string    `json:"hash"`
	Name         string    `json:"name"`
	Chunks       int       `json:"chunks"`
	Degraded     int       `json:"degraded"`
	IndexKind    string    `json:"index_kind"`
	Model        string    `json:"model"`
	Dimensions   int       `json:"dimensions"`
	SizeBytes    int64     `json:"size_bytes"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
}

// DocumentsRenderer prints document listings for `docrag ls`.
type DocumentsRenderer struct {
	out    io.Writer
	styles Styles
}

// NewDocumentsRenderer creates a listing renderer.
func NewDocumentsRenderer(out io.Writer, noColor bool) *DocumentsRenderer {
	return &DocumentsRenderer{out: out, styles: GetStyles(noColor)}
}

// Render prints rows as a table, or a hint when there are none.
func (r *DocumentsRenderer) Render(rows []DocumentRow) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(r.out, r.styles.Label.Render("No documents ingested yet. Run `docrag ingest <file>` first."))
		return err
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(r.styles.Border).
		Headers("HASH", "NAME", "CHUNKS", "DEGRADED", "INDEX", "MODEL", "SIZE", "USED").
		StyleFunc(func(row, col int) lipgloss.Style {
			base := lipgloss.NewStyle().Padding(0, 1)
			switch {
			case row == table.HeaderRow:
				return base.Inherit(r.styles.Header)
			case col == 3 && row >= 0 && row < len(rows) && rows[row].Degraded > 0:
				return base.Inherit(r.styles.Warning)
			default:
				return base
			}
		})

	for _, d := range rows {
		t.Row(
			shortHash(d.Hash),
			d.Name,
			strconv.Itoa(d.Chunks),
			strconv.Itoa(d.Degraded),
			d.IndexKind,
			fmt.Sprintf("%s/%d", d.Model, d.Dimensions),
			FormatBytes(d.SizeBytes),
			formatTime(d.LastAccessed),
		)
	}

	_, err := fmt.Fprintln(r.out, t.String())
	return err
}

// RenderJSON prints rows as an indented JSON array.
func (r *DocumentsRenderer) RenderJSON(rows []DocumentRow) error {
	if rows == nil {
		rows = []DocumentRow{}
	}
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

// formatTime renders recent times relatively and older ones as a date.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	diff := time.Since(t)

	plural := func(n int, unit string) string {
		if n == 1 {
			return "1 " + unit + " ago"
		}
		return fmt.Sprintf("%d %ss ago", n, unit)
	}

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day")
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// FormatBytes formats a size as B, KB, MB or GB.
func FormatBytes(n int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)

	switch {
	case n >= gb:
		return fmt.Sprintf("%.1f GB", float64(n)/gb)
	case n >= mb:
		return fmt.Sprintf("%.1f MB", float64(n)/mb)
	case n >= kb:
		return fmt.Sprintf("%.1f KB", float64(n)/kb)
	default:
		return fmt.Sprintf("%d B", n)
	}
}
