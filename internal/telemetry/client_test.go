package telemetry

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestClient_DisabledIsNoop(t *testing.T) {
	c := New(testLogger(), Config{}) // no token

	// none of these may panic or block
	c.Event("startup", nil)
	c.Metric("counter", 1, map[string]any{"k": "v"})
	c.Trace("req_1", "received", nil)
	c.Perf("op", time.Millisecond, nil)
	c.Close()
}

func TestClient_NilIsNoop(t *testing.T) {
	var c *Client
	c.Event("startup", nil)
	c.Metric("counter", 1, nil)
	c.Close()
}

func TestClient_DeliversBatches(t *testing.T) {
	var (
		mu       sync.Mutex
		received []map[string]any
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		body, _ := io.ReadAll(r.Body)
		var batch []map[string]any
		if err := json.Unmarshal(body, &batch); err != nil {
			t.Errorf("bad batch body: %v", err)
		}
		mu.Lock()
		received = append(received, batch...)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(testLogger(), Config{
		Endpoint: srv.URL,
		Token:    "test-token",
		Dataset:  "test-ds",
		Workers:  1,
	})

	c.Metric("user_creation_success", 1, map[string]any{"user_id": "user_1"})
	c.Event("profile_created", map[string]any{"user_id": "user_1"})
	c.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 2 {
		t.Fatalf("expected 2 records delivered, got %d", len(received))
	}

	var foundMetric bool
	for _, rec := range received {
		if rec["type"] == "metric" && rec["name"] == "user_creation_success" {
			foundMetric = true
			if rec["user_id"] != "user_1" {
				t.Errorf("expected user_id tag, got %v", rec["user_id"])
			}
		}
	}
	if !foundMetric {
		t.Error("metric record not delivered")
	}
}

func TestClient_SwallowsCollectorFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(testLogger(), Config{Endpoint: srv.URL, Token: "t", Workers: 1})

	// a failing collector must not surface anywhere
	c.Metric("m", 1, nil)
	c.Close()
}
