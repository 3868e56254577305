package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testServer(token string) (*Server, http.Handler) {
	s := New(Config{BindAddr: ":0", APIToken: token}, nil,
		func(ctx context.Context) bool { return true },
		func(ctx context.Context) (StatusResponse, error) {
			return StatusResponse{Queues: map[string]int{"pending_approvals": 2}}, nil
		},
		func(ctx context.Context) ([]PendingRow, error) {
			return []PendingRow{{Queue: "approvals", TransferID: "0xabc", Status: "pending", Attempt: 1}}, nil
		})

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.Handle("/status", s.authGate(http.HandlerFunc(s.handleStatus)))
	mux.Handle("/pending", s.authGate(http.HandlerFunc(s.handlePending)))
	return s, mux
}

func TestHealthAndReady(t *testing.T) {
	_, mux := testServer("")
	for _, path := range []string{"/health", "/readyz"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}

func TestStatusPayload(t *testing.T) {
	_, mux := testServer("")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /status = %d, want 200", rec.Code)
	}
	var status StatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Status != "running" {
		t.Fatalf("status = %q, want running", status.Status)
	}
	if status.Queues["pending_approvals"] != 2 {
		t.Fatalf("pending_approvals = %d, want 2", status.Queues["pending_approvals"])
	}
}

func TestBearerTokenGatesStatusAndPending(t *testing.T) {
	_, mux := testServer("secret")
	for _, path := range []string{"/status", "/pending"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("GET %s without token = %d, want 401", path, rec.Code)
		}

		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer secret")
		rec = httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s with token = %d, want 200", path, rec.Code)
		}
	}
}

func TestHealthStaysOpenWithToken(t *testing.T) {
	_, mux := testServer("secret")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /health with token configured = %d, want 200 without auth", rec.Code)
	}
}

func TestPendingPayload(t *testing.T) {
	_, mux := testServer("")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pending", nil))
	var rows []PendingRow
	if err := json.NewDecoder(rec.Body).Decode(&rows); err != nil {
		t.Fatalf("decode pending: %v", err)
	}
	if len(rows) != 1 || rows[0].TransferID != "0xabc" {
		t.Fatalf("unexpected pending rows: %+v", rows)
	}
}

func TestTokenBucketLimits(t *testing.T) {
	bucket := newTokenBucket(1, 3)
	now := time.Unix(1000, 0)
	bucket.now = func() time.Time { return now }
	bucket.last = now

	for i := 0; i < 3; i++ {
		if !bucket.allow() {
			t.Fatalf("request %d within burst should pass", i)
		}
	}
	if bucket.allow() {
		t.Fatal("request past burst should be limited")
	}

	now = now.Add(2 * time.Second) // refills 2 tokens at 1/s
	if !bucket.allow() || !bucket.allow() {
		t.Fatal("refilled tokens should pass")
	}
	if bucket.allow() {
		t.Fatal("third request after 2s refill should be limited")
	}
}
