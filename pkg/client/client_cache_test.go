package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/cache"
)

// setupTestRedis creates a test Redis client.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

func TestGet_CachesSuccessfulResponses(t *testing.T) {
	manager := cache.NewManager(setupTestRedis(t), time.Minute)

	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&hits, 1)
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if r.URL.Path == "/garbage" {
			w.Write([]byte(`<html>upstream timeout</html>`))
			return
		}
		if n > 1 && r.URL.Path == "/ok" {
			t.Errorf("cached endpoint requested twice")
		}
		w.Write([]byte(`{"elements":[{"id":1}]}`))
	}))
	defer server.Close()

	c := newTestClient(t, func(cfg *Config) { cfg.Cache = manager })
	headers := http.Header{"Authorization": []string{"Bearer a"}}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		resp, err := c.Get(ctx, server.URL+"/ok", headers, nil)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if elems, _ := resp.Elements(); len(elems) != 1 {
			t.Errorf("Elements() len = %d, want 1", len(elems))
		}
	}
	if hits != 1 {
		t.Errorf("server hits = %d, want 1", hits)
	}

	for i := 0; i < 2; i++ {
		if _, err := c.Get(ctx, server.URL+"/fail", headers, nil); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
	}
	if hits != 3 {
		t.Errorf("server hits = %d, want 3 (error payloads are not cached)", hits)
	}

	for i := 0; i < 2; i++ {
		resp, err := c.Get(ctx, server.URL+"/garbage", headers, nil)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if resp.Status() != http.StatusOK {
			t.Errorf("Status() = %d, want error payload with 200", resp.Status())
		}
	}
	if hits != 5 {
		t.Errorf("server hits = %d, want 5 (undecodable 200 bodies are not cached)", hits)
	}
}
