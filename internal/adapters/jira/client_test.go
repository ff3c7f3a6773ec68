package jira

import (
    "context"
    "io"
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/rs/zerolog"
)

func TestSearch_RetryResendsRequestBody(t *testing.T) {
    var bodies []string
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        b, _ := io.ReadAll(r.Body)
        bodies = append(bodies, string(b))
        if len(bodies) == 1 {
            w.WriteHeader(http.StatusInternalServerError)
            return
        }
        w.Header().Set("Content-Type", "application/json")
        _, _ = w.Write([]byte(`{"issues":[]}`))
    }))
    defer srv.Close()

    c := NewClient("test", srv.URL, "tok", "3", 5*time.Second, zerolog.Nop())
    res, err := c.Search(context.Background(), "worklogDate >= \"2026-08-01\"", 0, 50)
    if err != nil { t.Fatalf("search failed: %v", err) }
    if res == nil { t.Fatalf("expected decoded payload") }

    if len(bodies) != 2 { t.Fatalf("expected one retry, got %d requests", len(bodies)) }
    if bodies[0] == "" { t.Fatalf("first attempt sent no body") }
    if bodies[1] != bodies[0] {
        t.Fatalf("retry body differs:\nfirst:  %s\nsecond: %s", bodies[0], bodies[1])
    }
}

func TestDoJSON_NonRetryableStatusFailsFast(t *testing.T) {
    calls := 0
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        calls++
        w.WriteHeader(http.StatusUnauthorized)
    }))
    defer srv.Close()

    c := NewClient("test", srv.URL, "bad", "2", 5*time.Second, zerolog.Nop())
    if _, err := c.Search(context.Background(), "worklogDate >= -7d", 0, 50); err == nil {
        t.Fatalf("expected error on 401")
    }
    if calls != 1 { t.Fatalf("401 must not be retried, got %d requests", calls) }
}
