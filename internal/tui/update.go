package tui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/scrapepilot/scrapedash/internal/api"
	"github.com/scrapepilot/scrapedash/pkg/models"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetColumns(m.tableColumns())
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case coreLoadedMsg:
		if msg.seq != m.bulkSeq {
			return m, nil
		}
		m.initialLoading = false
		m.summary = msg.data.summary
		m.trending = msg.data.trending
		m.domains = msg.data.domains
		m.status = msg.data.status
		m.history = msg.data.history
		m.schedule = msg.data.schedule
		m.intervalInput.SetValue(strconv.Itoa(msg.data.schedule.IntervalMinutes))
		m.errMsg = ""
		return m, nil

	case coreFailedMsg:
		if msg.seq != m.bulkSeq {
			return m, nil
		}
		m.initialLoading = false
		m.errMsg = msg.err.Error()
		m.logger.Warn("bulk refresh failed", "error", msg.err)
		return m, nil

	case itemsLoadedMsg:
		if msg.seq != m.itemsSeq {
			return m, nil
		}
		m.tableLoading = false
		m.page = msg.page
		m.errMsg = ""
		m.table.SetRows(itemRows(msg.page.Items))
		return m, nil

	case itemsFailedMsg:
		if msg.seq != m.itemsSeq {
			return m, nil
		}
		m.tableLoading = false
		m.errMsg = msg.err.Error()
		m.logger.Warn("item query failed", "error", msg.err)
		return m, nil

	case statusPolledMsg:
		// replaces the status and nothing else; in particular the
		// error slot is neither set nor cleared by polling
		m.status = msg.status
		return m, nil

	case pollTickMsg:
		if m.quitting {
			return m, nil
		}
		return m, tea.Batch(pollStatus(m.ctx, m.client, m.logger), pollTick())

	case debounceTickMsg:
		if msg.seq != m.debounceSeq {
			return m, nil
		}
		return m.commitSearch()

	case runFinishedMsg:
		m.runInFlight = false
		m.errMsg = ""
		m.statusMsg = runNote(msg.ack)
		m.logger.Info("manual run finished", "status", msg.ack.Status, "items", msg.ack.ItemCount)
		var cmds []tea.Cmd
		m, cmds = m.issueBulkRefresh(cmds)
		m, cmds = m.issueItemQuery(cmds)
		return m, tea.Batch(cmds...)

	case runFailedMsg:
		m.runInFlight = false
		m.errMsg = msg.err.Error()
		m.logger.Warn("manual run failed", "error", msg.err)
		return m, nil

	case scheduleSavedMsg:
		m.scheduleSaving = false
		m.schedule = msg.schedule
		m.intervalInput.SetValue(strconv.Itoa(msg.schedule.IntervalMinutes))
		m.errMsg = ""
		m.statusMsg = "Schedule saved: every " + strconv.Itoa(msg.schedule.IntervalMinutes) + " min"
		var cmds []tea.Cmd
		m, cmds = m.issueBulkRefresh(cmds)
		return m, tea.Batch(cmds...)

	case scheduleSaveFailedMsg:
		m.scheduleSaving = false
		m.errMsg = msg.err.Error()
		return m, nil

	case statusMsg:
		m.statusMsg = string(msg)
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// issueBulkRefresh invalidates any in-flight bulk refresh and starts a
// new one. Stale results are dropped by the seq check in Update.
func (m Model) issueBulkRefresh(cmds []tea.Cmd) (Model, []tea.Cmd) {
	m.bulkSeq++
	return m, append(cmds, loadCore(m.ctx, m.client, m.bulkSeq))
}

// issueItemQuery starts a fetch for the current query. Table-pending
// stays true until the newest issued query settles.
func (m Model) issueItemQuery(cmds []tea.Cmd) (Model, []tea.Cmd) {
	m.itemsSeq++
	m.tableLoading = true
	return m, append(cmds, loadItems(m.ctx, m.client, m.itemsSeq, m.currentQuery()))
}

// commitSearch promotes the buffered input to the active search term
// and re-queries if the term actually changed.
func (m Model) commitSearch() (tea.Model, tea.Cmd) {
	term := strings.TrimSpace(m.searchInput.Value())
	if term == m.debouncedSearch {
		return m, nil
	}
	m.debouncedSearch = term
	var cmds []tea.Cmd
	m, cmds = m.issueItemQuery(cmds)
	return m, tea.Batch(cmds...)
}

func (m Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m.quit()
	}
	switch m.mode {
	case modeSearch:
		return m.handleSearchKeys(msg)
	case modeInterval:
		return m.handleIntervalKeys(msg)
	case modeHelp:
		return m.handleHelpKeys(msg)
	}
	return m.handleBrowseKeys(msg)
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.cancel()
	return m, tea.Quit
}

func (m Model) handleBrowseKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m.quit()

	case "/":
		m.mode = modeSearch
		m.searchInput.Focus()
		return m, textinput.Blink

	case "i":
		m.mode = modeInterval
		m.intervalInput.Focus()
		return m, textinput.Blink

	case "?":
		m.mode = modeHelp
		return m, nil

	case "1":
		return m.selectSort(api.SortTimestamp)
	case "2":
		return m.selectSort(api.SortPoints)
	case "3":
		return m.selectSort(api.SortComments)
	case "4":
		return m.selectSort(api.SortTitle)

	case "tab":
		return m.cycleSource(1)
	case "shift+tab":
		return m.cycleSource(-1)

	case "r":
		if m.status.IsRunning || m.runInFlight {
			m.statusMsg = "Scrape already running"
			return m, nil
		}
		m.runInFlight = true
		m.statusMsg = ""
		return m, triggerRun(m.ctx, m.client)

	case "R":
		var cmds []tea.Cmd
		m, cmds = m.issueBulkRefresh(cmds)
		m, cmds = m.issueItemQuery(cmds)
		return m, tea.Batch(cmds...)

	case "o":
		if item, ok := m.selectedItem(); ok {
			return m, openInBrowser(item.URL)
		}
		return m, nil

	case "e":
		return m, openInBrowser(m.client.ExportURL("csv"))
	case "E":
		return m, openInBrowser(m.client.ExportURL("json"))
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// selectSort applies the toggle rule: re-selecting the active column
// flips its order, a new column starts descending.
func (m Model) selectSort(column string) (tea.Model, tea.Cmd) {
	if m.sortBy == column {
		if m.sortOrder == api.OrderDesc {
			m.sortOrder = api.OrderAsc
		} else {
			m.sortOrder = api.OrderDesc
		}
	} else {
		m.sortBy = column
		m.sortOrder = api.OrderDesc
	}
	m.table.SetColumns(m.tableColumns())
	var cmds []tea.Cmd
	m, cmds = m.issueItemQuery(cmds)
	return m, tea.Batch(cmds...)
}

func (m Model) cycleSource(step int) (tea.Model, tea.Cmd) {
	options := append([]string{api.SourceAll}, sourceOptions(m.domains, m.page.Items)...)
	if len(options) == 1 {
		return m, nil
	}
	idx := 0
	for i, opt := range options {
		if opt == m.source {
			idx = i
			break
		}
	}
	next := options[(idx+step+len(options))%len(options)]
	if next == m.source {
		return m, nil
	}
	m.source = next
	var cmds []tea.Cmd
	m, cmds = m.issueItemQuery(cmds)
	return m, tea.Batch(cmds...)
}

func (m Model) selectedItem() (models.Item, bool) {
	cursor := m.table.Cursor()
	if cursor < 0 || cursor >= len(m.page.Items) {
		return models.Item{}, false
	}
	return m.page.Items[cursor], true
}

func (m Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeBrowse
		m.searchInput.Blur()
		return m, nil

	case "enter":
		// commit immediately and invalidate any pending debounce tick
		m.debounceSeq++
		m.mode = modeBrowse
		m.searchInput.Blur()
		return m.commitSearch()
	}

	before := m.searchInput.Value()
	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	if m.searchInput.Value() != before {
		// each keystroke restarts the quiet period; the old timer
		// still fires but its seq no longer matches
		m.debounceSeq++
		return m, tea.Batch(cmd, debounceTick(m.debounceSeq))
	}
	return m, cmd
}

func (m Model) handleIntervalKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeBrowse
		m.intervalInput.Blur()
		m.intervalInput.SetValue(strconv.Itoa(m.schedule.IntervalMinutes))
		return m, nil

	case "enter":
		n, ok := intervalValue(m.intervalInput)
		if !ok {
			m.statusMsg = "Interval must be 1-1440 minutes"
			return m, nil
		}
		m.scheduleSaving = true
		m.mode = modeBrowse
		m.intervalInput.Blur()
		return m, saveSchedule(m.ctx, m.client, n)
	}

	var cmd tea.Cmd
	m.intervalInput, cmd = m.intervalInput.Update(msg)
	return m, cmd
}

func (m Model) handleHelpKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "?", "q":
		m.mode = modeBrowse
		return m, nil
	}
	return m, nil
}
