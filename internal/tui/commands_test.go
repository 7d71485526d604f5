package tui

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrapepilot/scrapedash/internal/api"
	"github.com/scrapepilot/scrapedash/internal/apitest"
	"github.com/scrapepilot/scrapedash/pkg/models"
)

// newServedModel wires a model to a live stand-in server, so the
// commands in this file run for real instead of being inspected.
func newServedModel(t *testing.T) (Model, *apitest.Server) {
	t.Helper()

	s := apitest.New()
	now := time.Date(2026, 8, 21, 12, 0, 0, 0, time.UTC)
	completed := now.Add(30 * time.Second)
	s.Seed(
		[]models.Run{
			{ID: 1, StartedAt: now, CompletedAt: &completed, Status: models.RunStatusSuccess, ItemCount: 2},
		},
		[]models.Item{
			{ID: 1, RunID: 1, Title: "Rust ring buffers", URL: "https://a", Points: 10, Comments: 5, SourceDomain: "github.com", Timestamp: now},
			{ID: 2, RunID: 1, Title: "Postgres tuning", URL: "https://b", Points: 90, Comments: 40, SourceDomain: "postgresql.org", Timestamp: now.Add(time.Minute)},
		},
	)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(api.New(srv.URL, logger), logger), s
}

func TestLoadCorePopulatesEverything(t *testing.T) {
	t.Parallel()

	m, _ := newServedModel(t)

	msg := loadCore(m.ctx, m.client, m.bulkSeq)()
	loaded, ok := msg.(coreLoadedMsg)
	require.True(t, ok, "expected coreLoadedMsg, got %T", msg)

	m, _ = apply(t, m, loaded)
	assert.False(t, m.initialLoading)
	assert.Len(t, m.summary.Cards, 4)
	assert.NotEmpty(t, m.domains)
	assert.Len(t, m.history.Runs, 1)
	assert.Equal(t, 15, m.schedule.IntervalMinutes)
	assert.Equal(t, "15", m.intervalInput.Value())
}

func TestLoadCoreSingleFailureLeavesStateUntouched(t *testing.T) {
	t.Parallel()

	m, s := newServedModel(t)
	s.FailWith("/analytics/domains", http.StatusInternalServerError, "boom")

	msg := loadCore(m.ctx, m.client, m.bulkSeq)()
	failed, ok := msg.(coreFailedMsg)
	require.True(t, ok, "expected coreFailedMsg, got %T", msg)
	assert.Equal(t, "boom", failed.err.Error())

	m, _ = apply(t, m, failed)
	assert.Equal(t, "boom", m.errMsg)
	assert.Empty(t, m.summary.Cards)
	assert.Empty(t, m.domains)
	assert.Empty(t, m.history.Runs)
	assert.Zero(t, m.schedule.IntervalMinutes)
}

func TestLoadItemsAppliesQueryParameters(t *testing.T) {
	t.Parallel()

	m, _ := newServedModel(t)
	m.debouncedSearch = "rust"
	m.sortBy = api.SortPoints
	m.sortOrder = api.OrderDesc

	msg := loadItems(m.ctx, m.client, m.itemsSeq, m.currentQuery())()
	loaded, ok := msg.(itemsLoadedMsg)
	require.True(t, ok, "expected itemsLoadedMsg, got %T", msg)

	m, _ = apply(t, m, loaded)
	require.Len(t, m.page.Items, 1)
	assert.Equal(t, "Rust ring buffers", m.page.Items[0].Title)
	assert.Equal(t, 1, m.page.Total)
}

func TestLoadItemsSourceFilter(t *testing.T) {
	t.Parallel()

	m, _ := newServedModel(t)
	m.source = "postgresql.org"

	msg := loadItems(m.ctx, m.client, m.itemsSeq, m.currentQuery())()
	loaded := msg.(itemsLoadedMsg)

	require.Len(t, loaded.page.Items, 1)
	assert.Equal(t, "Postgres tuning", loaded.page.Items[0].Title)
}

func TestPollStatusSwallowsFailures(t *testing.T) {
	t.Parallel()

	m, s := newServedModel(t)

	s.FailWith("/scrape/status", http.StatusServiceUnavailable, "")
	msg := pollStatus(m.ctx, m.client, m.logger)()
	assert.Nil(t, msg, "a failed poll produces no message at all")

	s.Restore("/scrape/status")
	msg = pollStatus(m.ctx, m.client, m.logger)()
	polled, ok := msg.(statusPolledMsg)
	require.True(t, ok, "expected statusPolledMsg, got %T", msg)
	require.NotNil(t, polled.status.LastRunStatus)
	assert.Equal(t, models.RunStatusSuccess, *polled.status.LastRunStatus)
}

func TestTriggerRunCommand(t *testing.T) {
	t.Parallel()

	m, _ := newServedModel(t)

	msg := triggerRun(m.ctx, m.client)()
	finished, ok := msg.(runFinishedMsg)
	require.True(t, ok, "expected runFinishedMsg, got %T", msg)
	assert.Equal(t, models.RunStatusSuccess, finished.ack.Status)
	assert.Positive(t, finished.ack.ItemCount)
}

func TestTriggerRunConflictSurfacesDetail(t *testing.T) {
	t.Parallel()

	m, s := newServedModel(t)
	s.FailWith("/scrape/run", http.StatusConflict, `{"detail": "Scrape already running"}`)

	msg := triggerRun(m.ctx, m.client)()
	failed, ok := msg.(runFailedMsg)
	require.True(t, ok, "expected runFailedMsg, got %T", msg)
	assert.Equal(t, "Scrape already running", failed.err.Error())
}

func TestSaveScheduleCommand(t *testing.T) {
	t.Parallel()

	m, _ := newServedModel(t)

	msg := saveSchedule(m.ctx, m.client, 30)()
	saved, ok := msg.(scheduleSavedMsg)
	require.True(t, ok, "expected scheduleSavedMsg, got %T", msg)
	assert.Equal(t, 30, saved.schedule.IntervalMinutes)
	assert.NotNil(t, saved.schedule.NextRunAt)
}

func TestQuitCancelsInFlightCommands(t *testing.T) {
	t.Parallel()

	m, _ := newServedModel(t)
	m, _ = press(t, m, "q")

	msg := loadItems(m.ctx, m.client, m.itemsSeq, m.currentQuery())()
	_, failedOK := msg.(itemsFailedMsg)
	assert.True(t, failedOK, "cancelled context fails the fetch, got %T", msg)
}
