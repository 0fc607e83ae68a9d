package event

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func postEvents(t *testing.T, h *Handler, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/analytics/events", strings.NewReader(body))
	req.RemoteAddr = "203.0.113.7:54321"
	if token != "" {
		req.Header.Set("X-Idempotency-Key", token)
	}
	rec := httptest.NewRecorder()
	h.IngestEvents(rec, req)
	return rec
}

func TestIngestEventsAcceptsArray(t *testing.T) {
	svc, store, _ := newTestService(t)
	h := NewHandler(svc, zap.NewNop())

	body := `[
		{"event": "post_view", "postId": "p1", "sessionId": "s1"},
		{"event": "post_like", "postId": "p1", "sessionId": "s1"}
	]`
	rec := postEvents(t, h, "tok-1", body)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body %s", rec.Code, rec.Body.String())
	}

	var resp ingestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.StoredCount != 2 {
		t.Errorf("storedCount = %d, want 2", resp.StoredCount)
	}
	if len(store.events) != 2 {
		t.Errorf("store holds %d events, want 2", len(store.events))
	}
	if store.events[0].Metadata.IPHash != "hash-of-203.0.113.7" {
		t.Errorf("ip hash = %q, want remote addr hash", store.events[0].Metadata.IPHash)
	}
}

func TestIngestEventsAcceptsSingleObject(t *testing.T) {
	svc, store, _ := newTestService(t)
	h := NewHandler(svc, zap.NewNop())

	rec := postEvents(t, h, "tok-1", `{"event": "user_login", "sessionId": "s1"}`)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body %s", rec.Code, rec.Body.String())
	}
	if len(store.events) != 1 {
		t.Errorf("store holds %d events, want 1", len(store.events))
	}
}

func TestIngestEventsDuplicateToken(t *testing.T) {
	svc, _, _ := newTestService(t)
	h := NewHandler(svc, zap.NewNop())

	body := `[{"event": "post_view", "postId": "p1", "sessionId": "s1"}]`
	if rec := postEvents(t, h, "tok-1", body); rec.Code != http.StatusAccepted {
		t.Fatalf("first request status = %d, want 202", rec.Code)
	}
	if rec := postEvents(t, h, "tok-1", body); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("replay status = %d, want 422", rec.Code)
	}
}

func TestIngestEventsBadRequests(t *testing.T) {
	tests := []struct {
		name  string
		token string
		body  string
	}{
		{"malformed json", "tok-1", `{"event": `},
		{"missing token", "", `[{"event": "post_view", "postId": "p1", "sessionId": "s1"}]`},
		{"empty batch", "tok-1", `[]`},
		{"unknown event type", "tok-1", `[{"event": "page_scroll", "sessionId": "s1"}]`},
		{"missing post id", "tok-1", `[{"event": "post_like", "sessionId": "s1"}]`},
		{"bad user id", "tok-1", `[{"event": "user_login", "userId": "not-a-uuid", "sessionId": "s1"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _ := newTestService(t)
			h := NewHandler(svc, zap.NewNop())

			rec := postEvents(t, h, tt.token, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400, body %s", rec.Code, rec.Body.String())
			}
			if len(store.events) != 0 {
				t.Errorf("store holds %d events, want 0", len(store.events))
			}
		})
	}
}

func TestIngestEventsStorageFailure(t *testing.T) {
	svc, store, _ := newTestService(t)
	store.storeErr = errors.New("connection refused")
	h := NewHandler(svc, zap.NewNop())

	rec := postEvents(t, h, "tok-1", `[{"event": "post_view", "postId": "p1", "sessionId": "s1"}]`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestIngestEventsIgnoresClientIPHash(t *testing.T) {
	svc, store, _ := newTestService(t)
	h := NewHandler(svc, zap.NewNop())

	body := `[{"event": "post_view", "postId": "p1", "sessionId": "s1",
		"metadata": {"ipHash": "spoofed"}}]`
	rec := postEvents(t, h, "tok-1", body)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if got := store.events[0].Metadata.IPHash; got == "spoofed" {
		t.Error("client-supplied ipHash must be discarded")
	}
}
