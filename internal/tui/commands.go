package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/browser"
	"golang.org/x/sync/errgroup"

	"github.com/scrapepilot/scrapedash/internal/api"
	"github.com/scrapepilot/scrapedash/pkg/models"
)

const (
	pollInterval     = 5000 * time.Millisecond
	debounceInterval = 260 * time.Millisecond
	itemsPageSize    = 40
	historyPageSize  = 18
	itemTableHeight  = 12
)

var errNotDigits = errors.New("digits only")

type coreData struct {
	summary  models.Summary
	trending models.TopicSeries
	domains  []models.DomainCount
	status   models.ScrapeStatus
	history  models.History
	schedule models.Schedule
}

type coreLoadedMsg struct {
	seq  uint64
	data coreData
}

type coreFailedMsg struct {
	seq uint64
	err error
}

type itemsLoadedMsg struct {
	seq  uint64
	page models.ItemPage
}

type itemsFailedMsg struct {
	seq uint64
	err error
}

type statusPolledMsg struct {
	status models.ScrapeStatus
}

type pollTickMsg struct{}

type debounceTickMsg struct {
	seq uint64
}

type runFinishedMsg struct {
	ack models.RunAck
}

type runFailedMsg struct {
	err error
}

type scheduleSavedMsg struct {
	schedule models.Schedule
}

type scheduleSaveFailedMsg struct {
	err error
}

type statusMsg string

// loadCore fetches the six dashboard resources as one all-or-nothing
// unit. State is replaced only from a coreLoadedMsg, so a partial
// failure can never leave a partial update behind.
func loadCore(ctx context.Context, c *api.Client, seq uint64) tea.Cmd {
	return func() tea.Msg {
		g, gctx := errgroup.WithContext(ctx)
		var data coreData

		g.Go(func() error {
			var err error
			data.summary, err = c.Summary(gctx)
			return err
		})
		g.Go(func() error {
			var err error
			data.trending, err = c.Trending(gctx)
			return err
		})
		g.Go(func() error {
			var err error
			data.domains, err = c.Domains(gctx)
			return err
		})
		g.Go(func() error {
			var err error
			data.status, err = c.Status(gctx)
			return err
		})
		g.Go(func() error {
			var err error
			data.history, err = c.History(gctx, historyPageSize)
			return err
		})
		g.Go(func() error {
			var err error
			data.schedule, err = c.Schedule(gctx)
			return err
		})

		if err := g.Wait(); err != nil {
			return coreFailedMsg{seq: seq, err: err}
		}
		return coreLoadedMsg{seq: seq, data: data}
	}
}

func loadItems(ctx context.Context, c *api.Client, seq uint64, q api.ItemQuery) tea.Cmd {
	return func() tea.Msg {
		page, err := c.Items(ctx, q)
		if err != nil {
			return itemsFailedMsg{seq: seq, err: err}
		}
		return itemsLoadedMsg{seq: seq, page: page}
	}
}

// pollStatus fetches the live scrape status. Failures are swallowed on
// purpose: the indicator keeps its last value instead of flickering on
// a transient blip.
func pollStatus(ctx context.Context, c *api.Client, logger *slog.Logger) tea.Cmd {
	return func() tea.Msg {
		st, err := c.Status(ctx)
		if err != nil {
			logger.Warn("status poll failed", "error", err)
			return nil
		}
		return statusPolledMsg{status: st}
	}
}

func pollTick() tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg {
		return pollTickMsg{}
	})
}

func debounceTick(seq uint64) tea.Cmd {
	return tea.Tick(debounceInterval, func(time.Time) tea.Msg {
		return debounceTickMsg{seq: seq}
	})
}

func triggerRun(ctx context.Context, c *api.Client) tea.Cmd {
	return func() tea.Msg {
		ack, err := c.TriggerRun(ctx)
		if err != nil {
			return runFailedMsg{err: err}
		}
		return runFinishedMsg{ack: ack}
	}
}

func saveSchedule(ctx context.Context, c *api.Client, minutes int) tea.Cmd {
	return func() tea.Msg {
		sched, err := c.UpdateSchedule(ctx, minutes)
		if err != nil {
			return scheduleSaveFailedMsg{err: err}
		}
		return scheduleSavedMsg{schedule: sched}
	}
}

func openInBrowser(url string) tea.Cmd {
	return func() tea.Msg {
		if err := browser.OpenURL(url); err != nil {
			return statusMsg(fmt.Sprintf("Browser: %v", err))
		}
		return statusMsg("Opened in browser")
	}
}

func runNote(ack models.RunAck) string {
	if ack.Status == "" {
		return "Scrape run finished"
	}
	note := fmt.Sprintf("Run %d finished: %s, %d items", ack.RunID, ack.Status, ack.ItemCount)
	if ack.ErrorMessage != nil && *ack.ErrorMessage != "" {
		note += " (" + *ack.ErrorMessage + ")"
	}
	return note
}
