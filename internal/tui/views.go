package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/scrapepilot/scrapedash/internal/api"
	"github.com/scrapepilot/scrapedash/pkg/models"
)

const maxSparkWidth = 24

var (
	headerColor = lipgloss.Color("39")
	selectedFg  = lipgloss.Color("229")
	selectedBg  = lipgloss.Color("57")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	paneTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(headerColor)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	valueStyle = lipgloss.NewStyle().
			Bold(true)

	upStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))

	downStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	runningStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214"))

	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205"))
)

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.mode == modeHelp {
		return m.renderHelp()
	}
	if m.initialLoading {
		return m.renderSplash()
	}
	return m.renderDashboard()
}

func (m Model) renderSplash() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("ScrapeDash"))
	s.WriteString("\n\n")
	s.WriteString(m.spin.View())
	s.WriteString(" loading dashboard")
	if m.errMsg != "" {
		s.WriteString("\n\n")
		s.WriteString(errorStyle.Render("Error: " + m.errMsg))
	}
	return s.String()
}

func (m Model) renderDashboard() string {
	var s strings.Builder

	s.WriteString(m.renderHeader())
	s.WriteString("\n")
	s.WriteString(m.renderCards())
	s.WriteString("\n")
	s.WriteString(lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderTrending(),
		m.renderDomains(),
		m.renderHistory(),
	))
	s.WriteString("\n")
	s.WriteString(m.renderItems())
	s.WriteString("\n")
	s.WriteString(m.renderFooter())

	return s.String()
}

func (m Model) renderHeader() string {
	var parts []string

	parts = append(parts, titleStyle.Render("ScrapeDash"))

	if m.status.IsRunning {
		parts = append(parts, runningStyle.Render(m.spin.View()+"scraping"))
	} else {
		parts = append(parts, labelStyle.Render("idle"))
	}

	if m.status.LastRunStatus != nil {
		last := "last: " + *m.status.LastRunStatus
		if m.status.LastRunCompletedAt != nil {
			last += " " + relAge(*m.status.LastRunCompletedAt) + " ago"
		}
		parts = append(parts, labelStyle.Render(last))
	}

	if m.status.NextRunAt != nil {
		parts = append(parts, labelStyle.Render("next: "+untilLabel(*m.status.NextRunAt)))
	}

	sched := fmt.Sprintf("every %d min", m.schedule.IntervalMinutes)
	if m.mode == modeInterval {
		sched = "every " + m.intervalInput.View() + " min"
	} else if m.scheduleSaving {
		sched += " " + m.spin.View()
	}
	parts = append(parts, labelStyle.Render(sched))

	return strings.Join(parts, "  " + helpStyle.Render("•") + "  ")
}

func (m Model) renderCards() string {
	if len(m.summary.Cards) == 0 {
		return paneStyle.Render(labelStyle.Render("no stats yet"))
	}
	rendered := make([]string, len(m.summary.Cards))
	for i, card := range m.summary.Cards {
		rendered[i] = renderCard(card)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func renderCard(card models.StatCard) string {
	var s strings.Builder
	s.WriteString(labelStyle.Render(card.Label))
	s.WriteString("\n")
	s.WriteString(valueStyle.Render(card.Value))
	s.WriteString("\n")
	s.WriteString(renderTrend(card))
	return paneStyle.Width(24).Render(s.String())
}

func renderTrend(card models.StatCard) string {
	value := fmt.Sprintf("%+.1f%%", card.TrendValue)
	switch card.TrendDirection {
	case "up":
		return upStyle.Render("▲ "+value) + " " + labelStyle.Render(card.TrendLabel)
	case "down":
		return downStyle.Render("▼ "+value) + " " + labelStyle.Render(card.TrendLabel)
	default:
		return labelStyle.Render("= " + value + " " + card.TrendLabel)
	}
}

func (m Model) renderTrending() string {
	var s strings.Builder
	s.WriteString(paneTitleStyle.Render("Trending topics"))
	s.WriteString("\n")

	if len(m.trending.Topics) == 0 {
		s.WriteString(labelStyle.Render("no data"))
		return paneStyle.Render(s.String())
	}

	points := m.trending.Points
	if len(points) > maxSparkWidth {
		points = points[len(points)-maxSparkWidth:]
	}

	for _, topic := range m.trending.Topics {
		values := make([]int, len(points))
		total := 0
		for i, p := range points {
			values[i] = p.Counts[topic]
			total += p.Counts[topic]
		}
		s.WriteString(fmt.Sprintf("%-10s %s %3d\n", topic, sparkline(values), total))
	}

	return paneStyle.Render(strings.TrimRight(s.String(), "\n"))
}

func (m Model) renderDomains() string {
	var s strings.Builder
	s.WriteString(paneTitleStyle.Render("Top domains"))
	s.WriteString("\n")

	if len(m.domains) == 0 {
		s.WriteString(labelStyle.Render("no data"))
		return paneStyle.Render(s.String())
	}

	for _, d := range m.domains {
		line := fmt.Sprintf("%-20s %4d", d.Domain, d.Count)
		if d.Domain == m.source {
			line = valueStyle.Render(line)
		}
		s.WriteString(line)
		s.WriteString("\n")
	}

	return paneStyle.Render(strings.TrimRight(s.String(), "\n"))
}

func (m Model) renderHistory() string {
	var s strings.Builder
	s.WriteString(paneTitleStyle.Render(fmt.Sprintf("Runs (%.1f%% ok)", m.history.SuccessRate)))
	s.WriteString("\n")

	if len(m.history.Runs) == 0 {
		s.WriteString(labelStyle.Render("no runs yet"))
		return paneStyle.Render(s.String())
	}

	for _, run := range m.history.Runs {
		s.WriteString(renderRun(run))
		s.WriteString("\n")
	}

	return paneStyle.Render(strings.TrimRight(s.String(), "\n"))
}

func renderRun(run models.Run) string {
	dot := labelStyle.Render("●")
	switch run.Status {
	case models.RunStatusSuccess:
		dot = upStyle.Render("●")
	case models.RunStatusFailed:
		dot = downStyle.Render("●")
	case models.RunStatusRunning:
		dot = runningStyle.Render("●")
	}
	line := fmt.Sprintf("%s #%-3d %-7s %3d items  %s ago",
		dot, run.ID, run.Status, run.ItemCount, relAge(run.StartedAt))
	if run.ErrorMessage != nil && *run.ErrorMessage != "" {
		line += "  " + downStyle.Render(truncate(*run.ErrorMessage, 28))
	}
	return line
}

func (m Model) renderItems() string {
	var s strings.Builder

	s.WriteString(m.renderQueryLine())
	s.WriteString("\n")
	s.WriteString(m.table.View())

	return paneStyle.Render(s.String())
}

func (m Model) renderQueryLine() string {
	var parts []string

	if m.mode == modeSearch {
		parts = append(parts, "search: "+m.searchInput.View())
	} else if m.debouncedSearch != "" {
		parts = append(parts, "search: "+valueStyle.Render(m.debouncedSearch))
	}

	source := m.source
	if source == api.SourceAll {
		source = "all sources"
	}
	parts = append(parts, labelStyle.Render(source))

	parts = append(parts, labelStyle.Render(fmt.Sprintf("sort: %s %s", m.sortBy, m.sortOrder)))
	parts = append(parts, labelStyle.Render(fmt.Sprintf("%d matches", m.page.Total)))

	if m.tableLoading {
		parts = append(parts, m.spin.View())
	}

	return strings.Join(parts, "  " + helpStyle.Render("•") + "  ")
}

func (m Model) renderFooter() string {
	var s strings.Builder

	if m.errMsg != "" {
		s.WriteString(errorStyle.Render("Error: " + m.errMsg))
		s.WriteString("\n")
	} else if m.statusMsg != "" {
		s.WriteString(statusStyle.Render(m.statusMsg))
		s.WriteString("\n")
	}

	s.WriteString(helpStyle.Render("/: search • tab: source • 1-4: sort • r: run now • i: interval • R: reload • o: open • e/E: export • ?: help • q: quit"))

	return s.String()
}

const helpMarkdown = `# ScrapeDash

## Item list
| Key | Action |
| --- | ------ |
| up/down, j/k | move selection |
| o | open selected item in browser |
| / | search titles (debounced) |
| tab, shift+tab | cycle source filter |
| 1 / 2 / 3 / 4 | sort by timestamp / points / comments / title |

Selecting the active sort column again flips its direction.

## Scraper
| Key | Action |
| --- | ------ |
| r | trigger a scrape run now |
| i | edit the schedule interval (enter saves, esc reverts) |
| R | reload everything |

## Data
| Key | Action |
| --- | ------ |
| e | export CSV in browser |
| E | export JSON in browser |

Press esc to close this help.
`

func (m Model) renderHelp() string {
	out, err := glamour.Render(helpMarkdown, "dark")
	if err != nil {
		return helpMarkdown + "\n" + helpStyle.Render("press esc to close")
	}
	return out
}

func itemRows(items []models.Item) []table.Row {
	rows := make([]table.Row, len(items))
	for i, it := range items {
		rows[i] = table.Row{
			it.Title,
			it.SourceDomain,
			strconv.Itoa(it.Points),
			strconv.Itoa(it.Comments),
			relAge(it.Timestamp),
		}
	}
	return rows
}

func sparkline(values []int) string {
	if len(values) == 0 {
		return ""
	}
	max := 0
	for _, v := range values {
		if v > max {
			max = v
		}
	}
	if max == 0 {
		return strings.Repeat(string(sparkLevels[0]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		b.WriteRune(sparkLevels[v*(len(sparkLevels)-1)/max])
	}
	return b.String()
}

func relAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func untilLabel(t time.Time) string {
	d := time.Until(t)
	if d <= 0 {
		return "due"
	}
	if d < time.Minute {
		return "under a minute"
	}
	if d < time.Hour {
		return fmt.Sprintf("in %dm", int(d.Minutes()))
	}
	return fmt.Sprintf("in %dh%02dm", int(d.Hours()), int(d.Minutes())%60)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
