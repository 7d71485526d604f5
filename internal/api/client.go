package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/scrapepilot/scrapedash/pkg/models"
)

// DefaultBaseURL is where the scrape service listens in a local setup.
const DefaultBaseURL = "http://localhost:8000"

const requestTimeout = 15 * time.Second

// Sort columns accepted by the items endpoint.
const (
	SortTimestamp = "timestamp"
	SortPoints    = "points"
	SortComments  = "comments"
	SortTitle     = "title"
)

// Sort orders accepted by the items endpoint.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// SourceAll is the sentinel source filter meaning no filter at all.
const SourceAll = "all"

// APIError is a failed exchange with the scrape service: a non-2xx
// response or a body that did not decode.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// Client talks to the scrape service REST API.
type Client struct {
	baseURL string
	httpc   *http.Client
	logger  *slog.Logger
}

func New(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: requestTimeout},
		logger:  logger,
	}
}

// BaseURL returns the service address the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ItemQuery carries every parameter of an items fetch.
type ItemQuery struct {
	Search    string
	Source    string
	SortBy    string
	SortOrder string
	Limit     int
	Offset    int
}

func (q ItemQuery) values() url.Values {
	v := url.Values{}
	v.Set("sort_by", q.SortBy)
	v.Set("sort_order", q.SortOrder)
	v.Set("limit", strconv.Itoa(q.Limit))
	v.Set("offset", strconv.Itoa(q.Offset))
	if s := strings.TrimSpace(q.Search); s != "" {
		v.Set("search", s)
	}
	if q.Source != "" && q.Source != SourceAll {
		v.Set("source", q.Source)
	}
	return v
}

func (c *Client) Summary(ctx context.Context) (models.Summary, error) {
	return getJSON[models.Summary](ctx, c, "/analytics/summary", nil)
}

func (c *Client) Trending(ctx context.Context) (models.TopicSeries, error) {
	return getJSON[models.TopicSeries](ctx, c, "/analytics/trending", nil)
}

func (c *Client) Domains(ctx context.Context) ([]models.DomainCount, error) {
	return getJSON[[]models.DomainCount](ctx, c, "/analytics/domains", nil)
}

func (c *Client) Status(ctx context.Context) (models.ScrapeStatus, error) {
	return getJSON[models.ScrapeStatus](ctx, c, "/scrape/status", nil)
}

func (c *Client) History(ctx context.Context, limit int) (models.History, error) {
	v := url.Values{}
	v.Set("limit", strconv.Itoa(limit))
	return getJSON[models.History](ctx, c, "/history", v)
}

func (c *Client) Schedule(ctx context.Context) (models.Schedule, error) {
	return getJSON[models.Schedule](ctx, c, "/schedule", nil)
}

func (c *Client) UpdateSchedule(ctx context.Context, minutes int) (models.Schedule, error) {
	body := models.ScheduleUpdate{IntervalMinutes: minutes}
	return postJSON[models.Schedule](ctx, c, "/schedule", body)
}

// TriggerRun starts a manual scrape. The service blocks until the run
// settles, so the ack already carries the final status.
func (c *Client) TriggerRun(ctx context.Context) (models.RunAck, error) {
	return postJSON[models.RunAck](ctx, c, "/scrape/run", nil)
}

func (c *Client) Items(ctx context.Context, q ItemQuery) (models.ItemPage, error) {
	return getJSON[models.ItemPage](ctx, c, "/items", q.values())
}

// ExportURL returns the browser-openable address of a raw data export.
// Format is "csv" or "json".
func (c *Client) ExportURL(format string) string {
	return c.baseURL + "/export/" + format
}

func getJSON[T any](ctx context.Context, c *Client, path string, query url.Values) (T, error) {
	return doJSON[T](ctx, c, http.MethodGet, path, query, nil)
}

func postJSON[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	return doJSON[T](ctx, c, http.MethodPost, path, nil, body)
}

func doJSON[T any](ctx context.Context, c *Client, method, path string, query url.Values, body any) (T, error) {
	var zero T

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return zero, fmt.Errorf("marshaling request body: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, payload)
	if err != nil {
		return zero, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("scrape service request", "method", method, "path", path)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return zero, fmt.Errorf("calling scrape service: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return zero, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("scrape service request failed",
			"method", method, "path", path, "status", resp.StatusCode)
		return zero, &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.StatusCode, data),
		}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return zero, nil
	}

	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("decoding %s response: %v", path, err),
		}
	}
	return out, nil
}

// errorMessage turns a failed response into the single line shown to the
// user. FastAPI-style bodies ({"detail": "..."}) are unwrapped, anything
// else is passed through as text.
func errorMessage(status int, body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return fmt.Sprintf("request failed: %d", status)
	}
	var detail struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &detail); err == nil && detail.Detail != "" {
		return detail.Detail
	}
	return text
}
