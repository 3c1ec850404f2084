package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

// setupTestRedis connects to a local Redis on DB 15, skipping when none is
// running. The integration build tag runs the same checks against a container.
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

func TestNewManager(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	manager := NewManager(client, 0)
	if manager.redis != client {
		t.Error("Manager redis client not set correctly")
	}
	if manager.TTL() != DefaultTTL {
		t.Errorf("TTL() = %v, want %v", manager.TTL(), DefaultTTL)
	}
}

func TestNewManager_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewManager should panic with nil redis client")
		}
	}()
	NewManager(nil, time.Minute)
}

func TestManager_NewEntry(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	manager := NewManager(client, 10*time.Minute).WithClock(clock)

	entry := manager.NewEntry(200, []byte(`{"elements":[]}`))
	if !entry.CachedAt.Equal(clock.Now()) {
		t.Errorf("CachedAt = %v, want %v", entry.CachedAt, clock.Now())
	}
	if entry.TTL(clock.Now()) != 10*time.Minute {
		t.Errorf("TTL = %v, want 10m", entry.TTL(clock.Now()))
	}
}

func TestManager_SetAndGet(t *testing.T) {
	manager := NewManager(setupTestRedis(t), time.Minute)
	ctx := context.Background()

	key := Key{
		Endpoint: "https://api.linkedin.com/v2/adAccountsV2",
		Params:   map[string]string{"q": "search"},
		Token:    Fingerprint("t"),
	}
	entry := manager.NewEntry(200, []byte(`{"elements":[{"id":1}]}`))

	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got.Data) != string(entry.Data) {
		t.Errorf("Data = %s, want %s", got.Data, entry.Data)
	}
	if got.StatusCode != 200 {
		t.Errorf("StatusCode = %d, want 200", got.StatusCode)
	}

	// A different token must not see the entry.
	other := key
	other.Token = Fingerprint("u")
	if _, err := manager.Get(ctx, other); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get with other token error = %v, want ErrCacheMiss", err)
	}
}

func TestManager_Get_CacheMiss(t *testing.T) {
	manager := NewManager(setupTestRedis(t), time.Minute)

	_, err := manager.Get(context.Background(), Key{Endpoint: "https://example.test/none"})
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestManager_Get_ExpiredEntry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	manager := NewManager(setupTestRedis(t), time.Hour).WithClock(clock)
	ctx := context.Background()
	key := Key{Endpoint: "https://example.test/expired"}

	if err := manager.Set(ctx, key, manager.NewEntry(200, []byte(`{}`))); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	clock.Advance(2 * time.Hour)

	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss for expired entry, got %v", err)
	}
}

func TestManager_Set_AlreadyExpired(t *testing.T) {
	manager := NewManager(setupTestRedis(t), time.Minute)
	ctx := context.Background()
	key := Key{Endpoint: "https://example.test/stale"}

	entry := &Entry{Data: []byte(`{}`), Expires: time.Now().Add(-time.Hour)}
	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestManager_Delete(t *testing.T) {
	manager := NewManager(setupTestRedis(t), time.Minute)
	ctx := context.Background()
	key := Key{Endpoint: "https://example.test/delete"}

	if err := manager.Set(ctx, key, manager.NewEntry(200, []byte(`{}`))); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := manager.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss after Delete, got %v", err)
	}
}

func TestManager_Set_NilEntry(t *testing.T) {
	manager := NewManager(setupTestRedis(t), time.Minute)
	if err := manager.Set(context.Background(), Key{Endpoint: "x"}, nil); err == nil {
		t.Error("Set with nil entry should return error")
	}
}
