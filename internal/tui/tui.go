package tui

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/scrapepilot/scrapedash/internal/api"
	"github.com/scrapepilot/scrapedash/pkg/models"
)

type mode int

const (
	modeBrowse mode = iota
	modeSearch
	modeInterval
	modeHelp
)

// Model owns every piece of dashboard state. All mutation happens in
// Update on the bubbletea loop; commands only fetch and report back.
type Model struct {
	client *api.Client
	logger *slog.Logger

	// cancelled on quit so in-flight requests stop with the program
	ctx    context.Context
	cancel context.CancelFunc

	mode mode

	summary  models.Summary
	trending models.TopicSeries
	domains  []models.DomainCount
	status   models.ScrapeStatus
	history  models.History
	schedule models.Schedule
	page     models.ItemPage

	searchInput     textinput.Model
	intervalInput   textinput.Model
	debouncedSearch string
	source          string
	sortBy          string
	sortOrder       string

	table table.Model
	spin  spinner.Model

	initialLoading bool
	tableLoading   bool
	runInFlight    bool
	scheduleSaving bool

	// issue counters; a result whose seq is not the latest is stale
	bulkSeq     uint64
	itemsSeq    uint64
	debounceSeq uint64

	errMsg    string
	statusMsg string
	quitting  bool

	width  int
	height int
}

func New(client *api.Client, logger *slog.Logger) Model {
	search := textinput.New()
	search.Placeholder = "filter titles"
	search.CharLimit = 64
	search.Width = 24

	interval := textinput.New()
	interval.Placeholder = "minutes"
	interval.CharLimit = 4
	interval.Width = 7
	interval.Validate = digitsOnly

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = spinnerStyle

	ctx, cancel := context.WithCancel(context.Background())

	m := Model{
		client:         client,
		logger:         logger,
		ctx:            ctx,
		cancel:         cancel,
		searchInput:    search,
		intervalInput:  interval,
		spin:           spin,
		source:         api.SourceAll,
		sortBy:         api.SortTimestamp,
		sortOrder:      api.OrderDesc,
		initialLoading: true,
		tableLoading:   true,
		bulkSeq:        1,
		itemsSeq:       1,
	}

	t := table.New(
		table.WithColumns(m.tableColumns()),
		table.WithFocused(true),
		table.WithHeight(itemTableHeight),
	)
	st := table.DefaultStyles()
	st.Header = st.Header.Bold(true).Foreground(headerColor)
	st.Selected = st.Selected.Foreground(selectedFg).Background(selectedBg).Bold(false)
	t.SetStyles(st)
	m.table = t

	return m
}

// Init issues the first bulk refresh and item query and starts the
// status-poll timer. The seq counters were seeded to match in New.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		loadCore(m.ctx, m.client, m.bulkSeq),
		loadItems(m.ctx, m.client, m.itemsSeq, m.currentQuery()),
		pollTick(),
		m.spin.Tick,
	)
}

func (m Model) currentQuery() api.ItemQuery {
	return api.ItemQuery{
		Search:    m.debouncedSearch,
		Source:    m.source,
		SortBy:    m.sortBy,
		SortOrder: m.sortOrder,
		Limit:     itemsPageSize,
		Offset:    0,
	}
}

func (m Model) tableColumns() []table.Column {
	title := func(label, column string) string {
		if m.sortBy != column {
			return label
		}
		if m.sortOrder == api.OrderAsc {
			return label + " ↑"
		}
		return label + " ↓"
	}
	titleWidth := m.width - 50
	if titleWidth < 30 {
		titleWidth = 30
	}
	return []table.Column{
		{Title: title("Title", api.SortTitle), Width: titleWidth},
		{Title: "Source", Width: 18},
		{Title: title("Points", api.SortPoints), Width: 8},
		{Title: title("Comments", api.SortComments), Width: 10},
		{Title: title("Age", api.SortTimestamp), Width: 6},
	}
}

func digitsOnly(s string) error {
	for _, r := range s {
		if r < '0' || r > '9' {
			return errNotDigits
		}
	}
	return nil
}

func intervalValue(input textinput.Model) (int, bool) {
	n, err := strconv.Atoi(input.Value())
	if err != nil || n < 1 || n > 1440 {
		return 0, false
	}
	return n, true
}
