package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"taskmind-sync/internal/models"
)

func seedProfile(ms *memStore, userID string) {
	ms.profiles[userID] = models.Profile{
		UserID:      userID,
		Email:       "ada@example.com",
		Settings:    models.DefaultSettings(),
		WorkingDays: models.DefaultWorkingDays(),
	}
}

func authedRequest(method, path string, body []byte) *http.Request {
	var req *http.Request
	if body != nil {
		req, _ = http.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, _ = http.NewRequest(method, path, nil)
	}
	req.Header.Set("X-Service-Key", testServiceKey)
	return req
}

func TestGetProfile(t *testing.T) {
	ms := newMemStore()
	seedProfile(ms, "user_1")
	srv := newTestServer(t, ms)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, authedRequest("GET", "/api/v1/profile/user_1", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var p models.Profile
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("could not decode profile: %v", err)
	}
	if p.UserID != "user_1" || p.Email != "ada@example.com" {
		t.Errorf("unexpected profile: %+v", p)
	}
}

func TestGetProfile_NotFound(t *testing.T) {
	srv := newTestServer(t, newMemStore())

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, authedRequest("GET", "/api/v1/profile/user_missing", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestGetProfile_InvalidUserID(t *testing.T) {
	srv := newTestServer(t, newMemStore())

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, authedRequest("GET", "/api/v1/profile/user%20%3Bdrop", nil))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed user id, got %d", w.Code)
	}
}

func TestServiceAuth(t *testing.T) {
	ms := newMemStore()
	seedProfile(ms, "user_1")
	srv := newTestServer(t, ms)

	t.Run("missing key", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/api/v1/profile/user_1", nil)
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", w.Code)
		}
	})

	t.Run("wrong key", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/api/v1/profile/user_1", nil)
		req.Header.Set("X-Service-Key", "wrong")
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		if w.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", w.Code)
		}
	})

	t.Run("bearer token accepted", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/api/v1/profile/user_1", nil)
		req.Header.Set("Authorization", "Bearer "+testServiceKey)
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", w.Code)
		}
	})
}

func TestUpdateSettings(t *testing.T) {
	ms := newMemStore()
	seedProfile(ms, "user_1")
	srv := newTestServer(t, ms)

	body := []byte(`{"militaryTime":true,"workType":"part-time","categories":["Deep Work","Admin"]}`)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, authedRequest("PATCH", "/api/v1/profile/user_1/settings", body))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	p, _ := ms.GetProfile(context.Background(), "user_1")
	if !p.Settings.MilitaryTime || p.Settings.WorkType != models.WorkTypePartTime {
		t.Errorf("settings not applied: %+v", p.Settings)
	}
	if len(ms.audits) != 1 || ms.audits[0].Action != "settings.updated" {
		t.Errorf("expected settings.updated audit entry, got %+v", ms.audits)
	}
}

func TestUpdateSettings_Validation(t *testing.T) {
	ms := newMemStore()
	seedProfile(ms, "user_1")
	srv := newTestServer(t, ms)

	tests := []struct {
		name string
		body string
	}{
		{"bad work type", `{"militaryTime":false,"workType":"freelance","categories":["Work"]}`},
		{"empty categories", `{"militaryTime":false,"workType":"full-time","categories":[]}`},
		{"missing fields", `{"militaryTime":false}`},
		{"not json", `{{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, authedRequest("PATCH", "/api/v1/profile/user_1/settings", []byte(tt.body)))
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func validWorkingDaysBody() map[string]any {
	day := func(active bool) map[string]any {
		return map[string]any{"start": "08:30", "end": "16:30", "isWorkingDay": active}
	}
	return map[string]any{
		"monday": day(true), "tuesday": day(true), "wednesday": day(true),
		"thursday": day(true), "friday": day(true), "saturday": day(false), "sunday": day(false),
	}
}

func TestUpdateWorkingDays(t *testing.T) {
	ms := newMemStore()
	seedProfile(ms, "user_1")
	srv := newTestServer(t, ms)

	body, _ := json.Marshal(validWorkingDaysBody())
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, authedRequest("PATCH", "/api/v1/profile/user_1/working-days", body))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	p, _ := ms.GetProfile(context.Background(), "user_1")
	if p.WorkingDays.Monday.Start != "08:30" || p.WorkingDays.Monday.End != "16:30" {
		t.Errorf("working days not applied: %+v", p.WorkingDays.Monday)
	}
	if p.WorkingDays.Saturday.IsWorkingDay {
		t.Error("saturday should stay inactive")
	}
}

func TestUpdateWorkingDays_Validation(t *testing.T) {
	ms := newMemStore()
	seedProfile(ms, "user_1")
	srv := newTestServer(t, ms)

	mutate := func(day string, field string, value any) []byte {
		payload := validWorkingDaysBody()
		payload[day].(map[string]any)[field] = value
		body, _ := json.Marshal(payload)
		return body
	}

	tests := []struct {
		name string
		body []byte
	}{
		{"bad time format", mutate("monday", "start", "8:30")},
		{"out of range hour", mutate("tuesday", "end", "25:00")},
		{"start after end", mutate("friday", "start", "18:00")},
		{"missing day", func() []byte {
			payload := validWorkingDaysBody()
			delete(payload, "sunday")
			body, _ := json.Marshal(payload)
			return body
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, authedRequest("PATCH", "/api/v1/profile/user_1/working-days", tt.body))
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestUpdateWorkingDays_InactiveDaySkipsOrdering(t *testing.T) {
	ms := newMemStore()
	seedProfile(ms, "user_1")
	srv := newTestServer(t, ms)

	payload := validWorkingDaysBody()
	payload["saturday"] = map[string]any{"start": "00:00", "end": "00:00", "isWorkingDay": false}
	body, _ := json.Marshal(payload)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, authedRequest("PATCH", "/api/v1/profile/user_1/working-days", body))

	if w.Code != http.StatusOK {
		t.Fatalf("zeroed times on a disabled day should be accepted, got %d: %s", w.Code, w.Body.String())
	}

	p, _ := ms.GetProfile(context.Background(), "user_1")
	if p.WorkingDays.Saturday.IsWorkingDay || p.WorkingDays.Saturday.Start != "00:00" {
		t.Errorf("saturday not stored as sent: %+v", p.WorkingDays.Saturday)
	}
}

func TestNewServer_PreservesGinMode(t *testing.T) {
	newTestServer(t, newMemStore())
	if gin.Mode() != gin.TestMode {
		t.Errorf("constructor must not change the global gin mode, got %s", gin.Mode())
	}
}

func TestListAuditLogs(t *testing.T) {
	ms := newMemStore()
	seedProfile(ms, "user_1")
	ms.audits = append(ms.audits, models.AuditLogEntry{UserID: "user_1", Action: "user.created", Resource: "user_profile", Status: models.AuditStatusSuccess})
	srv := newTestServer(t, ms)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, authedRequest("GET", "/api/v1/profile/user_1/audit-logs", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Entries []models.AuditLogEntry `json:"entries"`
		Count   int                    `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("could not decode response: %v", err)
	}
	if resp.Count != 1 || len(resp.Entries) != 1 {
		t.Errorf("expected 1 entry, got %d", resp.Count)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, newMemStore())

	req, _ := http.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("could not decode health body: %v", err)
	}
	if resp["database"] != "not_configured" || resp["redis"] != "not_configured" {
		t.Errorf("unexpected health body: %v", resp)
	}
}

func TestCORS_Preflight(t *testing.T) {
	srv := newTestServer(t, newMemStore())

	req, _ := http.NewRequest("OPTIONS", "/api/v1/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Errorf("expected allowed origin header, got %q", w.Header().Get("Access-Control-Allow-Origin"))
	}
}
