package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/nstogner/labassist/pkg/conversation"
	"github.com/nstogner/labassist/pkg/domain"
	"github.com/nstogner/labassist/pkg/store"
	"github.com/nstogner/labassist/pkg/sweeper"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1)

	senderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("5")).
			Bold(true)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("2")).
			Bold(true)

	citationStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	labelStyle = lipgloss.NewStyle().Width(20)
)

// printer writes an answer to a plain terminal as it streams.
type printer struct {
	w io.Writer
}

var _ conversation.Observer = printer{}

func (p printer) OnText(fragment string) {
	fmt.Fprint(p.w, fragment)
}

func (p printer) OnCitation(c domain.Citation) {
	fmt.Fprint(p.w, "\n"+citationStyle.Render("📖 Citation: "+c.Text))
}

func kindLabel(kind domain.ResourceKind) string {
	switch kind {
	case domain.KindThread:
		return "🧵 Threads"
	case domain.KindFile:
		return "📄 Assistant files"
	case domain.KindVectorIndex:
		return "🗂️  Vector stores"
	case domain.KindAssistant:
		return "🤖 Assistant"
	default:
		return string(kind)
	}
}

func renderUsage(w io.Writer, u *sweeper.Usage) {
	fmt.Fprintln(w, titleStyle.Render("Current Resource Usage"))
	row := func(kind domain.ResourceKind, value string) {
		if msg, ok := u.Errors[kind]; ok {
			value = errorStyle.Render("unavailable: " + msg)
		}
		fmt.Fprintln(w, labelStyle.Render(kindLabel(kind)+":")+value)
	}
	row(domain.KindThread, humanize.Comma(int64(u.Threads)))
	row(domain.KindFile, humanize.Comma(int64(u.AssistantFiles)))
	row(domain.KindVectorIndex, humanize.Comma(int64(u.VectorStores)))
	assistant := u.AssistantID
	if assistant == "" {
		assistant = "None"
	}
	row(domain.KindAssistant, assistant)
}

func renderReport(w io.Writer, r *sweeper.Report) {
	hours := formatHours(r.Options.MaxAge.Hours())
	for _, k := range r.Kinds {
		fmt.Fprintln(w)
		fmt.Fprintln(w, titleStyle.Render(kindLabel(k.Kind)))
		if k.ListError != "" {
			fmt.Fprintln(w, errorStyle.Render("❌ Could not list: "+k.ListError))
			continue
		}
		for _, f := range k.Failures {
			fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("⚠️  Could not delete %s: %s", f.ID, f.Reason)))
		}
		if k.Kind == domain.KindAssistant {
			switch {
			case k.Enumerated == 0:
				fmt.Fprintln(w, dimStyle.Render("📋 No assistant recorded, nothing to clean up"))
			case !r.Options.IncludeAssistant:
				fmt.Fprintln(w, dimStyle.Render("📋 Keeping assistant (use --delete-assistant to remove)"))
			case k.Deleted > 0:
				fmt.Fprintln(w, okStyle.Render("🗑️  Deleted assistant and local binding"))
			}
			continue
		}
		fmt.Fprintln(w, okStyle.Render(fmt.Sprintf("✅ Deleted %d of %d (%d eligible, older than %s hours)",
			k.Deleted, k.Enumerated, k.Eligible, hours)))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("Local files"))
	for _, p := range r.Local.Removed {
		fmt.Fprintln(w, "🗑️  Deleted local file: "+p)
	}
	for _, f := range r.Local.Failures {
		fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("⚠️  Could not delete %s: %s", f.ID, f.Reason)))
	}
	if r.Local.DataDirRemoved {
		fmt.Fprintln(w, "🗑️  Removed empty data directory")
	}
	fmt.Fprintln(w, okStyle.Render(fmt.Sprintf("✅ Cleaned up %d local files", len(r.Local.Removed))))
}

func renderExchanges(w io.Writer, exchanges []domain.Exchange) {
	fmt.Fprintln(w, titleStyle.Render("Recent questions"))
	if len(exchanges) == 0 {
		fmt.Fprintln(w, dimStyle.Render("none"))
		return
	}
	for _, ex := range exchanges {
		status := okStyle.Render(string(ex.Status))
		if ex.Status == domain.ExchangeFailed {
			status = errorStyle.Render(string(ex.Status))
		}
		fmt.Fprintf(w, "%s  %s  %s\n", dimStyle.Render(humanize.Time(ex.StartedAt)), status, ex.Question)
		if ex.Error != "" {
			fmt.Fprintln(w, "    "+dimStyle.Render(ex.Error))
		} else {
			fmt.Fprintln(w, "    "+dimStyle.Render(fmt.Sprintf("%s, %d citations", truncate(ex.Answer, 60), ex.CitationCount)))
		}
	}
}

func renderSweeps(w io.Writer, runs []store.SweepRun) {
	fmt.Fprintln(w, titleStyle.Render("Recent cleanups"))
	if len(runs) == 0 {
		fmt.Fprintln(w, dimStyle.Render("none"))
		return
	}
	for _, run := range runs {
		var parts []string
		for _, k := range run.Kinds {
			part := fmt.Sprintf("%s %d/%d", k.Kind, k.Deleted, k.Eligible)
			if k.Failed > 0 {
				part += fmt.Sprintf(" (%d failed)", k.Failed)
			}
			parts = append(parts, part)
		}
		fmt.Fprintf(w, "%s  max-age %sh  %s  local %d\n",
			dimStyle.Render(humanize.Time(run.StartedAt)),
			formatHours(run.MaxAge.Hours()), strings.Join(parts, ", "), run.LocalRemoved)
	}
}

func formatHours(h float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", h), "0"), ".")
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
