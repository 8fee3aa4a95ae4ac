// Package telemetry collects run audit events and posts them to an endpoint
// when one is configured. Without an endpoint the collector is a no-op.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/satishbabariya/schemaver/migrate"
	"github.com/satishbabariya/schemaver/migrate/executor"
)

// Event is one command execution.
type Event struct {
	EventType    string         `json:"event_type"`
	Command      string         `json:"command"`
	RunID        string         `json:"run_id,omitempty"`
	Platform     string         `json:"platform,omitempty"`
	Target       string         `json:"target,omitempty"`
	Applied      []string       `json:"applied,omitempty"`
	VerifyOnly   bool           `json:"verify_only,omitempty"`
	Warnings     int            `json:"warnings,omitempty"`
	DurationMS   int64          `json:"duration_ms"`
	Error        string         `json:"error,omitempty"`
	ErrorClass   string         `json:"error_class,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
	Version      string         `json:"version"`
	OS           string         `json:"os"`
	Architecture string         `json:"architecture"`
}

// Options configures a Collector.
type Options struct {
	Endpoint string
	Version  string
	Logger   *slog.Logger

	// RetryMax is the number of retries per flush. Zero uses 2.
	RetryMax int
}

// Collector buffers events until Flush. Safe for concurrent use.
type Collector struct {
	endpoint string
	version  string
	logger   *slog.Logger
	client   *retryablehttp.Client

	mu     sync.Mutex
	events []Event
}

// New returns a collector. It is disabled when opts.Endpoint is empty.
func New(opts Options) *Collector {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With("component", "telemetry")

	client := retryablehttp.NewClient()
	client.RetryMax = 2
	if opts.RetryMax > 0 {
		client.RetryMax = opts.RetryMax
	}
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = time.Second
	client.HTTPClient.Timeout = 5 * time.Second
	client.Logger = logger

	return &Collector{
		endpoint: strings.TrimSpace(opts.Endpoint),
		version:  opts.Version,
		logger:   logger,
		client:   client,
	}
}

// Enabled reports whether events are sent anywhere.
func (c *Collector) Enabled() bool {
	return c != nil && c.endpoint != ""
}

// RecordCommand records a command that has no run report.
func (c *Collector) RecordCommand(command, platform string, d time.Duration, err error) {
	c.record(Event{
		EventType:  "command",
		Command:    command,
		Platform:   platform,
		DurationMS: d.Milliseconds(),
	}, err)
}

// RecordRun records a run or verify command from its report.
func (c *Collector) RecordRun(command string, r *executor.Report, err error) {
	if r == nil {
		c.RecordCommand(command, "", 0, err)
		return
	}
	e := Event{
		EventType:  "run",
		Command:    command,
		RunID:      r.RunID,
		Platform:   r.Platform,
		Target:     r.Target.String(),
		VerifyOnly: r.VerifyOnly,
		Warnings:   len(r.Warnings),
		DurationMS: r.Duration().Milliseconds(),
		Metadata:   map[string]any{"state": string(r.State), "pending": len(r.Pending)},
	}
	for _, v := range r.AppliedVersions() {
		e.Applied = append(e.Applied, v.String())
	}
	c.record(e, err)
}

func (c *Collector) record(e Event, err error) {
	if !c.Enabled() {
		return
	}
	if err != nil {
		e.Error = err.Error()
		e.ErrorClass = migrate.Class(err)
	}
	e.Timestamp = time.Now().UTC()
	e.Version = c.version
	e.OS = runtime.GOOS
	e.Architecture = runtime.GOARCH

	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

// Pending returns the number of buffered events.
func (c *Collector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

// Flush posts buffered events as {"events": [...]}. Events are dropped
// after a failed post.
func (c *Collector) Flush(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	c.mu.Lock()
	events := c.events
	c.events = nil
	c.mu.Unlock()
	if len(events) == 0 {
		return nil
	}

	body, err := json.Marshal(map[string]any{"events": events})
	if err != nil {
		return errors.Wrap(err, "failed to encode telemetry events")
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to build telemetry request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", fmt.Sprintf("%s/%s", migrate.Tool, c.version))

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send telemetry")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return errors.Newf("telemetry endpoint returned %s", resp.Status)
	}
	c.logger.Debug("telemetry flushed", "events", len(events))
	return nil
}
