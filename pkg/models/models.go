package models

import (
	"encoding/json"
	"time"
)

// Run status values reported by the scrape service.
const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

type StatCard struct {
	ID             string  `json:"id"`
	Label          string  `json:"label"`
	Value          string  `json:"value"`
	TrendValue     float64 `json:"trend_value"`
	TrendDirection string  `json:"trend_direction"`
	TrendLabel     string  `json:"trend_label"`
}

type Summary struct {
	Cards []StatCard `json:"cards"`
}

// TrendPoint is one time bucket of the topic trend series. On the wire it is
// a flat object: {"time": "08-21 14:00", "rust": 3, "llm": 1}.
type TrendPoint struct {
	Time   string
	Counts map[string]int
}

func (p *TrendPoint) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if t, ok := raw["time"]; ok {
		if err := json.Unmarshal(t, &p.Time); err != nil {
			return err
		}
		delete(raw, "time")
	}
	p.Counts = make(map[string]int, len(raw))
	for topic, v := range raw {
		var n int
		if err := json.Unmarshal(v, &n); err != nil {
			return err
		}
		p.Counts[topic] = n
	}
	return nil
}

func (p TrendPoint) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(p.Counts)+1)
	flat["time"] = p.Time
	for topic, n := range p.Counts {
		flat[topic] = n
	}
	return json.Marshal(flat)
}

type TopicSeries struct {
	Topics []string     `json:"topics"`
	Points []TrendPoint `json:"points"`
}

type DomainCount struct {
	Domain string `json:"domain"`
	Count  int    `json:"count"`
}

type ScrapeStatus struct {
	IsRunning          bool       `json:"is_running"`
	LastRunStatus      *string    `json:"last_run_status"`
	LastRunCompletedAt *time.Time `json:"last_run_completed_at"`
	LastError          *string    `json:"last_error"`
	NextRunAt          *time.Time `json:"next_run_at"`
}

type Schedule struct {
	IntervalMinutes int        `json:"interval_minutes"`
	NextRunAt       *time.Time `json:"next_run_at"`
}

type ScheduleUpdate struct {
	IntervalMinutes int `json:"interval_minutes"`
}

type Run struct {
	ID           int64      `json:"id"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	Status       string     `json:"status"`
	ItemCount    int        `json:"item_count"`
	ErrorMessage *string    `json:"error_message"`
}

type History struct {
	SuccessRate float64 `json:"success_rate"`
	Runs        []Run   `json:"runs"`
}

type Item struct {
	ID           int64     `json:"id"`
	RunID        int64     `json:"run_id"`
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	Points       int       `json:"points"`
	Comments     int       `json:"comments"`
	SourceDomain string    `json:"source_domain"`
	Timestamp    time.Time `json:"timestamp"`
}

type ItemPage struct {
	Total int    `json:"total"`
	Items []Item `json:"items"`
}

// RunAck is the body returned by a manual run trigger once the run settles.
type RunAck struct {
	RunID        int64      `json:"run_id"`
	Status       string     `json:"status"`
	ItemCount    int        `json:"item_count"`
	ErrorMessage *string    `json:"error_message"`
	CompletedAt  *time.Time `json:"completed_at"`
}
