package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/canfiles/canfiles/internal/events"
	"github.com/canfiles/canfiles/internal/filecache"
	"github.com/canfiles/canfiles/internal/models"
	"github.com/canfiles/canfiles/internal/transfer"
	"github.com/canfiles/canfiles/internal/util/text"
)

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	headerStyle  = lipgloss.NewStyle().Bold(true)
)

const nameWidth = 40

func levelStyle(level events.Level) lipgloss.Style {
	switch level {
	case events.LevelError:
		return errorStyle
	case events.LevelWarn:
		return warnStyle
	case events.LevelSuccess:
		return successStyle
	default:
		return infoStyle
	}
}

// formatNotification renders one notification as a single line.
func formatNotification(n *events.NotificationEvent) string {
	tag := levelStyle(n.Level).Render("[" + strings.ToLower(n.Level.String()) + "]")
	if n.Message == "" {
		return fmt.Sprintf("%s %s", tag, n.Title)
	}
	return fmt.Sprintf("%s %s: %s", tag, n.Title, n.Message)
}

// renderFiles prints the listing, or the loading, error or empty state.
func renderFiles(w io.Writer, snap filecache.Snapshot, shareBase string) {
	if !snap.Loaded {
		switch {
		case snap.Loading:
			fmt.Fprintln(w, "Loading files...")
		case snap.LastError != nil:
			fmt.Fprintf(w, "%s %s\n", errorStyle.Render("File list unavailable:"), models.Summary(snap.LastError))
		default:
			fmt.Fprintln(w, "Not connected yet. Try again in a moment.")
		}
		return
	}

	if snap.Empty() {
		fmt.Fprintln(w, "No files yet. Register one with: upload <path>")
	} else {
		fmt.Fprintf(w, "%s:\n\n", text.Count(len(snap.Items), "file"))
		header := fmt.Sprintf("%-10s %-*s %12s  %-6s", "ID", nameWidth, "NAME", "SIZE", "TYPE")
		if shareBase != "" {
			header += "  LINK"
		}
		fmt.Fprintln(w, headerStyle.Render(header))
		fmt.Fprintln(w, strings.Repeat("-", len(header)))
		for _, rec := range snap.Items {
			line := fmt.Sprintf("%-10s %-*s %12s  %-6s",
				rec.ID, nameWidth, truncateName(rec.Name, nameWidth), rec.Size.Human(), rec.Extension())
			if shareBase != "" {
				line += "  " + rec.ShareURL(shareBase)
			}
			fmt.Fprintln(w, strings.TrimRight(line, " "))
		}
	}

	if snap.Loading {
		fmt.Fprintln(w, infoStyle.Render("(refreshing...)"))
	}
	if snap.LastError != nil {
		fmt.Fprintln(w, warnStyle.Render("(showing the previous list: "+models.Summary(snap.LastError)+")"))
	}
}

// truncateName shortens names longer than max runes, keeping the extension
// visible.
func truncateName(name string, max int) string {
	r := []rune(name)
	if len(r) <= max {
		return name
	}
	return string(r[:max-7]) + "…" + string(r[len(r)-6:])
}

// statusView is what the status command shows.
type statusView struct {
	Connected bool
	Files     filecache.Snapshot
	Tracker   *transfer.Tracker
	Desktop   bool
}

func renderStatus(w io.Writer, v statusView) {
	conn := errorStyle.Render("not connected")
	if v.Connected {
		conn = successStyle.Render("connected")
	}
	fmt.Fprintf(w, "Store:          %s\n", conn)

	files := "not loaded"
	if v.Files.Loaded {
		files = fmt.Sprintf("%s (refreshed %s)", text.Count(len(v.Files.Items), "file"), humanize.Time(v.Files.RefreshedAt))
	}
	if v.Files.Loading {
		files += ", refreshing"
	}
	fmt.Fprintf(w, "Files:          %s\n", files)
	if v.Files.LastError != nil {
		fmt.Fprintf(w, "Last error:     %s\n", models.Summary(v.Files.LastError))
	}

	fmt.Fprintf(w, "Upload:         %s\n", sessionLine(v.Tracker, transfer.KindUpload))
	fmt.Fprintf(w, "Download:       %s\n", sessionLine(v.Tracker, transfer.KindDownload))

	desktop := "off"
	if v.Desktop {
		desktop = "on"
	}
	fmt.Fprintf(w, "Desktop notify: %s\n", desktop)

	history := v.Tracker.History()
	if len(history) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("Recent transfers:"))
	if len(history) > 5 {
		history = history[len(history)-5:]
	}
	for _, s := range history {
		outcome := successStyle.Render("ok")
		if s.Err != nil {
			outcome = errorStyle.Render(models.Summary(s.Err))
		}
		fmt.Fprintf(w, "  %-8s %-30s %s  %s\n", s.Kind, truncateName(s.Name, 30), humanize.Time(s.SettledAt), outcome)
	}
}

func sessionLine(t *transfer.Tracker, kind transfer.Kind) string {
	s, ok := t.Active(kind)
	if !ok {
		return "idle"
	}
	return fmt.Sprintf("%s %d%% (%s)", s.Name, s.Progress, s.Phase)
}
