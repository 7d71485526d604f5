// Package apitest is an in-memory stand-in for the scrape service REST
// API. It serves the same endpoints with the same wire shapes and the
// same filter/sort semantics, and backs both integration tests and the
// dashboard's --demo mode.
package apitest

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/scrapepilot/scrapedash/pkg/models"
)

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "to": true, "for": true,
	"of": true, "in": true, "on": true, "with": true, "and": true,
	"or": true, "is": true, "it": true, "from": true, "by": true,
	"you": true, "your": true, "this": true, "that": true, "how": true,
	"new": true,
}

var wordRe = regexp.MustCompile(`[A-Za-z][A-Za-z0-9'\-]{2,}`)

type failure struct {
	status int
	body   string
}

// Server holds all stand-in state behind one mutex. Handlers are cheap,
// so a single lock is plenty.
type Server struct {
	mu sync.Mutex

	items []models.Item
	runs  []models.Run

	intervalMinutes int
	nextRunAt       *time.Time

	running            bool
	lastRunStatus      *string
	lastRunCompletedAt *time.Time
	lastError          *string

	nextItemID int64
	nextRunID  int64

	runDelay time.Duration

	failures map[string]failure
}

func New() *Server {
	return &Server{
		intervalMinutes: 15,
		nextItemID:      1,
		nextRunID:       1,
		failures:        make(map[string]failure),
	}
}

// FailWith makes every request to path answer with the given status and
// body until Restore is called.
func (s *Server) FailWith(path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = failure{status: status, body: body}
}

// Restore removes an injected failure.
func (s *Server) Restore(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, path)
}

// SetRunDelay makes triggered runs take d before completing, so demo
// polling has a running phase to observe.
func (s *Server) SetRunDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runDelay = d
}

// Seed replaces all runs and items. Item and run IDs keep counting from
// above the seeded maximum.
func (s *Server) Seed(runs []models.Run, items []models.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs = append([]models.Run(nil), runs...)
	s.items = append([]models.Item(nil), items...)

	for _, r := range runs {
		if r.ID >= s.nextRunID {
			s.nextRunID = r.ID + 1
		}
		if r.CompletedAt != nil {
			status := r.Status
			s.lastRunStatus = &status
			s.lastRunCompletedAt = r.CompletedAt
		}
	}
	for _, it := range items {
		if it.ID >= s.nextItemID {
			s.nextItemID = it.ID + 1
		}
	}

	next := time.Now().UTC().Add(time.Duration(s.intervalMinutes) * time.Minute)
	s.nextRunAt = &next
}

// SeedDemo loads a few completed runs of plausible scrape output so
// every pane of the dashboard has something to show.
func (s *Server) SeedDemo() {
	now := time.Now().UTC()

	titles := []string{
		"Show HN: A Rust crate for lock-free ring buffers",
		"Postgres 18 release notes",
		"Why our LLM eval harness lies to us",
		"Writing a BitTorrent client in Golang",
		"Rust async cancellation is still hard",
		"Fine-tuning small LLM models on consumer GPUs",
		"Golang generics two years later",
		"Postgres connection pooling explained",
		"An LLM agent that files its own bug reports",
		"Profiling Rust allocations in production",
		"SQLite as an application file format, revisited",
		"Streaming Postgres replication to object storage",
		"Golang error handling proposals, ranked",
		"Self-hosting an LLM gateway on one box",
		"Rust vs Golang for network daemons",
	}
	domains := []string{
		"github.com", "lobste.rs", "arxiv.org", "sqlite.org",
		"postgresql.org", "rust-lang.org",
	}

	var runs []models.Run
	var items []models.Item
	itemID := int64(1)
	for runIdx := 0; runIdx < 3; runIdx++ {
		started := now.Add(time.Duration(-(3-runIdx)*45) * time.Minute)
		completed := started.Add(40 * time.Second)
		count := 0
		for i, title := range titles {
			if (i+runIdx)%3 == runIdx%3 {
				continue
			}
			items = append(items, models.Item{
				ID:           itemID,
				RunID:        int64(runIdx + 1),
				Title:        title,
				URL:          fmt.Sprintf("https://example.com/story/%d", itemID),
				Points:       37 + (i*13+runIdx*7)%300,
				Comments:     4 + (i*5+runIdx*11)%120,
				SourceDomain: domains[(i+runIdx)%len(domains)],
				Timestamp:    started.Add(time.Duration(i) * time.Minute),
			})
			itemID++
			count++
		}
		runs = append(runs, models.Run{
			ID:          int64(runIdx + 1),
			StartedAt:   started,
			CompletedAt: &completed,
			Status:      models.RunStatusSuccess,
			ItemCount:   count,
		})
	}

	s.Seed(runs, items)
}

// Handler returns the chi router serving the full endpoint surface.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.failureInjection)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/analytics/summary", s.handleSummary)
	r.Get("/analytics/trending", s.handleTrending)
	r.Get("/analytics/domains", s.handleDomains)

	r.Get("/scrape/status", s.handleStatus)
	r.Post("/scrape/run", s.handleRun)

	r.Get("/items", s.handleItems)
	r.Get("/history", s.handleHistory)

	r.Get("/schedule", s.handleGetSchedule)
	r.Post("/schedule", s.handleUpdateSchedule)

	r.Get("/export/csv", s.handleExportCSV)
	r.Get("/export/json", s.handleExportJSON)

	return r
}

// Start serves the stand-in on a loopback port until stop is called.
func (s *Server) Start() (baseURL string, stop func(), err error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("listening: %w", err)
	}
	srv := &http.Server{Handler: s.Handler()}
	go func() { _ = srv.Serve(ln) }()
	stop = func() { _ = srv.Shutdown(context.Background()) }
	return "http://" + ln.Addr().String(), stop, nil
}

func (s *Server) failureInjection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		f, ok := s.failures[r.URL.Path]
		s.mu.Unlock()
		if ok {
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(f.body))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	totalItems := len(s.items)
	totalRuns := len(s.runs)
	successRuns := 0
	for _, r := range s.runs {
		if r.Status == models.RunStatusSuccess {
			successRuns++
		}
	}
	successRate := 0.0
	if totalRuns > 0 {
		successRate = float64(successRuns) / float64(totalRuns) * 100
	}

	var sumPoints, sumComments float64
	for _, it := range s.items {
		sumPoints += float64(it.Points)
		sumComments += float64(it.Comments)
	}
	avgPoints, avgComments := 0.0, 0.0
	if totalItems > 0 {
		avgPoints = sumPoints / float64(totalItems)
		avgComments = sumComments / float64(totalItems)
	}

	current, previous := s.latestTwoRuns()

	itemsDelta, itemsDir := trend(runItemCount(current), runItemCount(previous))
	successDelta, successDir := trend(runSuccessScore(current), runSuccessScore(previous))
	pointsDelta, pointsDir := trend(s.runAvg(current, pickPoints), s.runAvg(previous, pickPoints))
	commentsDelta, commentsDir := trend(s.runAvg(current, pickComments), s.runAvg(previous, pickComments))

	cards := []models.StatCard{
		{
			ID: "total_items", Label: "Total Items",
			Value:      strconv.Itoa(totalItems),
			TrendValue: itemsDelta, TrendDirection: itemsDir,
			TrendLabel: "vs previous run volume",
		},
		{
			ID: "success_rate", Label: "Run Success Rate",
			Value:      fmt.Sprintf("%.1f%%", successRate),
			TrendValue: successDelta, TrendDirection: successDir,
			TrendLabel: "vs previous run outcome",
		},
		{
			ID: "avg_points", Label: "Avg Story Points",
			Value:      fmt.Sprintf("%.1f", avgPoints),
			TrendValue: pointsDelta, TrendDirection: pointsDir,
			TrendLabel: "vs previous run avg",
		},
		{
			ID: "avg_comments", Label: "Avg Comments",
			Value:      fmt.Sprintf("%.1f", avgComments),
			TrendValue: commentsDelta, TrendDirection: commentsDir,
			TrendLabel: "vs previous run avg",
		},
	}

	writeJSON(w, http.StatusOK, models.Summary{Cards: cards})
}

func (s *Server) latestTwoRuns() (current, previous *models.Run) {
	sorted := append([]models.Run(nil), s.runs...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].StartedAt.After(sorted[j].StartedAt)
	})
	if len(sorted) > 0 {
		current = &sorted[0]
	}
	if len(sorted) > 1 {
		previous = &sorted[1]
	}
	return current, previous
}

func runItemCount(r *models.Run) float64 {
	if r == nil {
		return 0
	}
	return float64(r.ItemCount)
}

func runSuccessScore(r *models.Run) float64 {
	if r != nil && r.Status == models.RunStatusSuccess {
		return 100
	}
	return 0
}

func pickPoints(it models.Item) float64   { return float64(it.Points) }
func pickComments(it models.Item) float64 { return float64(it.Comments) }

func (s *Server) runAvg(r *models.Run, pick func(models.Item) float64) float64 {
	if r == nil {
		return 0
	}
	sum, n := 0.0, 0
	for _, it := range s.items {
		if it.RunID == r.ID {
			sum += pick(it)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func trend(current, previous float64) (float64, string) {
	if previous == 0 && current == 0 {
		return 0, "flat"
	}
	if previous == 0 {
		return 100, "up"
	}
	delta := (current - previous) / math.Abs(previous) * 100
	if math.Abs(delta) < 0.05 {
		return 0, "flat"
	}
	dir := "up"
	if delta < 0 {
		dir = "down"
	}
	return math.Round(delta*10) / 10, dir
}

func (s *Server) handleTrending(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := append([]models.Item(nil), s.items...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	if len(sorted) > 600 {
		sorted = sorted[:600]
	}

	resp := models.TopicSeries{
		Topics: []string{},
		Points: []models.TrendPoint{},
	}
	if len(sorted) == 0 {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	wordScores := make(map[string]int)
	for _, it := range sorted {
		for _, word := range wordRe.FindAllString(strings.ToLower(it.Title), -1) {
			if stopWords[word] {
				continue
			}
			wordScores[word]++
		}
	}

	type scored struct {
		word  string
		count int
	}
	ranked := make([]scored, 0, len(wordScores))
	for word, count := range wordScores {
		ranked = append(ranked, scored{word, count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].word < ranked[j].word
	})
	if len(ranked) > 4 {
		ranked = ranked[:4]
	}
	topics := make([]string, len(ranked))
	for i, sc := range ranked {
		topics[i] = sc.word
	}
	if len(topics) == 0 {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	var bucketKeys []string
	buckets := make(map[string]map[string]int)
	for _, it := range sorted {
		key := it.Timestamp.UTC().Format("01-02 15:04")
		bucket, ok := buckets[key]
		if !ok {
			bucket = make(map[string]int, len(topics))
			for _, topic := range topics {
				bucket[topic] = 0
			}
			buckets[key] = bucket
			bucketKeys = append(bucketKeys, key)
		}
		title := strings.ToLower(it.Title)
		for _, topic := range topics {
			if strings.Contains(title, topic) {
				bucket[topic]++
			}
		}
	}

	resp.Topics = topics
	for _, key := range bucketKeys {
		resp.Points = append(resp.Points, models.TrendPoint{
			Time:   key,
			Counts: buckets[key],
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDomains(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[string]int)
	for _, it := range s.items {
		counts[it.SourceDomain]++
	}
	out := make([]models.DomainCount, 0, len(counts))
	for domain, count := range counts {
		out = append(out, models.DomainCount{Domain: domain, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Domain < out[j].Domain
	})
	if len(out) > 8 {
		out = out[:8]
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	writeJSON(w, http.StatusOK, models.ScrapeStatus{
		IsRunning:          s.running,
		LastRunStatus:      s.lastRunStatus,
		LastRunCompletedAt: s.lastRunCompletedAt,
		LastError:          s.lastError,
		NextRunAt:          s.nextRunAt,
	})
}

func (s *Server) handleRun(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		writeJSON(w, http.StatusConflict, map[string]string{"detail": "Scrape already running"})
		return
	}
	s.running = true
	run := models.Run{
		ID:        s.nextRunID,
		StartedAt: time.Now().UTC(),
		Status:    models.RunStatusRunning,
	}
	s.nextRunID++
	s.runs = append(s.runs, run)
	delay := s.runDelay
	s.mu.Unlock()

	// The real service holds the POST open while the scrape runs.
	if delay > 0 {
		time.Sleep(delay)
	}

	s.mu.Lock()
	added := s.generateItems(run.ID)
	completed := time.Now().UTC()
	for i := range s.runs {
		if s.runs[i].ID == run.ID {
			s.runs[i].Status = models.RunStatusSuccess
			s.runs[i].ItemCount = added
			s.runs[i].CompletedAt = &completed
			run = s.runs[i]
		}
	}
	s.running = false
	status := models.RunStatusSuccess
	s.lastRunStatus = &status
	s.lastRunCompletedAt = &completed
	s.lastError = nil
	next := completed.Add(time.Duration(s.intervalMinutes) * time.Minute)
	s.nextRunAt = &next
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, models.RunAck{
		RunID:       run.ID,
		Status:      run.Status,
		ItemCount:   run.ItemCount,
		CompletedAt: run.CompletedAt,
	})
}

// generateItems fabricates a fresh batch for a triggered run. Caller
// holds the lock.
func (s *Server) generateItems(runID int64) int {
	titles := []string{
		"Ask HN: Best way to index 100M Postgres rows",
		"A Rust take on structured concurrency",
		"Benchmarking Golang JSON decoders in 2026",
		"LLM context windows and the lies we tell",
		"Incremental view maintenance in Postgres",
	}
	now := time.Now().UTC()
	for i, title := range titles {
		s.items = append(s.items, models.Item{
			ID:           s.nextItemID,
			RunID:        runID,
			Title:        title,
			URL:          fmt.Sprintf("https://example.com/story/%d", s.nextItemID),
			Points:       20 + int(s.nextItemID*17%400),
			Comments:     2 + int(s.nextItemID*7%90),
			SourceDomain: "github.com",
			Timestamp:    now.Add(time.Duration(-i) * time.Minute),
		})
		s.nextItemID++
	}
	return len(titles)
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	search := strings.ToLower(q.Get("search"))
	source := q.Get("source")
	sortBy := q.Get("sort_by")
	sortOrder := q.Get("sort_order")
	limit := clampInt(q.Get("limit"), 30, 1, 200)
	offset := clampInt(q.Get("offset"), 0, 0, math.MaxInt32)

	s.mu.Lock()
	defer s.mu.Unlock()

	filtered := make([]models.Item, 0, len(s.items))
	for _, it := range s.items {
		if search != "" && !strings.Contains(strings.ToLower(it.Title), search) {
			continue
		}
		if source != "" && it.SourceDomain != source {
			continue
		}
		filtered = append(filtered, it)
	}
	total := len(filtered)

	less := itemLess(sortBy)
	asc := sortOrder == "asc"
	sort.SliceStable(filtered, func(i, j int) bool {
		if asc {
			return less(filtered[i], filtered[j])
		}
		return less(filtered[j], filtered[i])
	})

	if offset > len(filtered) {
		offset = len(filtered)
	}
	end := offset + limit
	if end > len(filtered) {
		end = len(filtered)
	}

	writeJSON(w, http.StatusOK, models.ItemPage{
		Total: total,
		Items: filtered[offset:end],
	})
}

func itemLess(sortBy string) func(a, b models.Item) bool {
	switch sortBy {
	case "points":
		return func(a, b models.Item) bool { return a.Points < b.Points }
	case "comments":
		return func(a, b models.Item) bool { return a.Comments < b.Comments }
	case "title":
		return func(a, b models.Item) bool { return a.Title < b.Title }
	default:
		return func(a, b models.Item) bool { return a.Timestamp.Before(b.Timestamp) }
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := clampInt(r.URL.Query().Get("limit"), 30, 1, 200)

	s.mu.Lock()
	defer s.mu.Unlock()

	runs := append([]models.Run(nil), s.runs...)
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if len(runs) > limit {
		runs = runs[:limit]
	}

	successRate := 0.0
	if len(s.runs) > 0 {
		success := 0
		for _, run := range s.runs {
			if run.Status == models.RunStatusSuccess {
				success++
			}
		}
		successRate = float64(success) / float64(len(s.runs)) * 100
	}

	writeJSON(w, http.StatusOK, models.History{
		SuccessRate: math.Round(successRate*10) / 10,
		Runs:        runs,
	})
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	writeJSON(w, http.StatusOK, models.Schedule{
		IntervalMinutes: s.intervalMinutes,
		NextRunAt:       s.nextRunAt,
	})
}

func (s *Server) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	var upd models.ScheduleUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid body"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.intervalMinutes = upd.IntervalMinutes
	next := time.Now().UTC().Add(time.Duration(upd.IntervalMinutes) * time.Minute)
	s.nextRunAt = &next

	writeJSON(w, http.StatusOK, models.Schedule{
		IntervalMinutes: s.intervalMinutes,
		NextRunAt:       s.nextRunAt,
	})
}

// exportRows returns the newest items first, capped like the real
// export. Caller holds the lock.
func (s *Server) exportRows() []models.Item {
	rows := append([]models.Item(nil), s.items...)
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Timestamp.After(rows[j].Timestamp)
	})
	if len(rows) > 1000 {
		rows = rows[:1000]
	}
	return rows
}

func (s *Server) handleExportCSV(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	rows := s.exportRows()
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=scraped-items.csv")

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"id", "run_id", "title", "url", "points", "comments", "source_domain", "timestamp"})
	for _, it := range rows {
		_ = cw.Write([]string{
			strconv.FormatInt(it.ID, 10),
			strconv.FormatInt(it.RunID, 10),
			it.Title,
			it.URL,
			strconv.Itoa(it.Points),
			strconv.Itoa(it.Comments),
			it.SourceDomain,
			it.Timestamp.Format(time.RFC3339),
		})
	}
	cw.Flush()
}

func (s *Server) handleExportJSON(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	rows := s.exportRows()
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename=scraped-items.json")

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(rows)
}

func clampInt(raw string, def, min, max int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
