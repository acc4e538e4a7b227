package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

// Config points the sink at an Axiom-style ingest API. An empty Token
// disables the sink entirely; every helper becomes a no-op.
type Config struct {
	Endpoint string
	Token    string
	OrgID    string
	Dataset  string

	Environment string
	Service     string
	Workers     int
}

// Client is the observability sink. Records are queued on a buffered
// channel and flushed by background workers; enqueueing never blocks the
// request path and delivery failures are swallowed after a local warning.
type Client struct {
	log     *slog.Logger
	cfg     Config
	http    *http.Client
	breaker *Breaker

	queue   chan map[string]any
	stop    chan struct{}
	wg      sync.WaitGroup
	enabled bool
}

const (
	queueSize     = 4096
	flushSize     = 64
	flushInterval = 2 * time.Second
)

func New(log *slog.Logger, cfg Config) *Client {
	c := &Client{
		log:     log,
		cfg:     cfg,
		breaker: NewBreaker(),
		queue:   make(chan map[string]any, queueSize),
		stop:    make(chan struct{}),
		enabled: cfg.Token != "",
	}

	if !c.enabled {
		log.Info("telemetry_disabled", "reason", "no token configured")
		return c
	}

	if c.cfg.Endpoint == "" {
		c.cfg.Endpoint = "https://api.axiom.co"
	}
	if c.cfg.Dataset == "" {
		c.cfg.Dataset = "taskmind-webhooks"
	}
	if c.cfg.Service == "" {
		c.cfg.Service = "taskmind-sync"
	}
	c.http = newIngestHTTPClient()

	workers := cfg.Workers
	if workers < 1 {
		workers = 2
	}
	for i := 0; i < workers; i++ {
		c.wg.Add(1)
		go c.runFlusher()
	}
	log.Info("telemetry_started", "dataset", c.cfg.Dataset, "workers", workers)
	return c
}

// Event records a structured log line at the collector.
func (c *Client) Event(message string, fields map[string]any) {
	c.enqueue("event", message, fields)
}

// Metric records a counter sample.
func (c *Client) Metric(name string, value float64, tags map[string]any) {
	rec := map[string]any{"name": name, "value": value, "metric_type": "counter"}
	for k, v := range tags {
		rec[k] = v
	}
	c.enqueue("metric", name, rec)
}

// Trace records a request phase marker.
func (c *Client) Trace(requestID, phase string, fields map[string]any) {
	rec := map[string]any{"request_id": requestID, "phase": phase}
	for k, v := range fields {
		rec[k] = v
	}
	c.enqueue("trace", "request", rec)
}

// Perf records an operation duration.
func (c *Client) Perf(operation string, d time.Duration, fields map[string]any) {
	rec := map[string]any{"operation": operation, "duration_ms": d.Milliseconds()}
	for k, v := range fields {
		rec[k] = v
	}
	c.enqueue("performance", operation, rec)
}

func (c *Client) enqueue(kind, message string, fields map[string]any) {
	if c == nil || !c.enabled {
		return
	}

	rec := map[string]any{
		"_time":       time.Now().UTC().Format(time.RFC3339Nano),
		"type":        kind,
		"message":     message,
		"service":     c.cfg.Service,
		"environment": c.cfg.Environment,
	}
	for k, v := range fields {
		rec[k] = v
	}

	select {
	case c.queue <- rec:
	default:
		// a full buffer sheds load instead of blocking the request path
		c.log.Debug("telemetry_buffer_full", "dropped_type", kind)
	}
}

func (c *Client) runFlusher() {
	defer c.wg.Done()

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]map[string]any, 0, flushSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		c.deliver(batch)
		batch = batch[:0]
	}

	for {
		select {
		case rec := <-c.queue:
			batch = append(batch, rec)
			if len(batch) >= flushSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-c.stop:
			// drain what is already queued, then exit
			for {
				select {
				case rec := <-c.queue:
					batch = append(batch, rec)
					if len(batch) >= flushSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

// deliver posts one batch. Any failure is recorded locally and dropped; the
// sink must never influence the caller's outcome.
func (c *Client) deliver(batch []map[string]any) {
	if !c.breaker.Allow() {
		c.log.Debug("telemetry_breaker_open", "dropped", len(batch))
		return
	}

	body, err := json.Marshal(batch)
	if err != nil {
		c.log.Warn("telemetry_marshal_failed", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	url := fmt.Sprintf("%s/v1/datasets/%s/ingest", c.cfg.Endpoint, c.cfg.Dataset)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		c.log.Warn("telemetry_request_failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	if c.cfg.OrgID != "" {
		req.Header.Set("X-Axiom-Org-Id", c.cfg.OrgID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		c.log.Warn("telemetry_delivery_failed", "error", err, "breaker", c.breaker.StateString())
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.breaker.RecordFailure()
		c.log.Warn("telemetry_delivery_rejected", "status", resp.StatusCode, "breaker", c.breaker.StateString())
		return
	}

	c.breaker.RecordSuccess()
}

// Close flushes buffered records and stops the workers.
func (c *Client) Close() {
	if c == nil || !c.enabled {
		return
	}
	close(c.stop)
	c.wg.Wait()
}

// newIngestHTTPClient builds a pooled HTTP client with bounded timeouts so
// a slow collector cannot pin flusher goroutines.
func newIngestHTTPClient() *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,

		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		ForceAttemptHTTP2: true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   15 * time.Second,
	}
}
