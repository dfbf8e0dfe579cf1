package redis

import (
	"context"
	"testing"
	"time"

	"github.com/pearsonlabs/factorpipe/pkg/config"
)

func disabledClient(t *testing.T) *Client {
	t.Helper()
	cfg := &config.Config{
		Redis: config.RedisConfig{
			Enabled: false,
		},
	}
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client
}

func TestNewClient_Disabled(t *testing.T) {
	client := disabledClient(t)

	if client.Enabled() {
		t.Error("Expected client to be disabled")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestRunLock_DisabledAlwaysGrants(t *testing.T) {
	client := disabledClient(t)
	lock := NewRunLock(client, "factor_transform", "run-1")

	ctx := context.Background()
	ok, err := lock.Acquire(ctx, time.Minute)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if !ok {
		t.Error("Expected disabled lock to grant")
	}

	// A second acquire also grants: there is nothing to contend on.
	ok, err = lock.Acquire(ctx, time.Minute)
	if err != nil || !ok {
		t.Errorf("Second Acquire() = (%v, %v), want (true, nil)", ok, err)
	}

	if err := lock.Release(ctx); err != nil {
		t.Errorf("Release() error = %v", err)
	}
}

func TestCache_DisabledIsPassthrough(t *testing.T) {
	client := disabledClient(t)
	cache := NewCache(client, "test")
	ctx := context.Background()

	var dest string
	found, err := cache.Get(ctx, "key", &dest)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Error("Expected miss from disabled cache")
	}

	if err := cache.Set(ctx, "key", "value", time.Minute); err != nil {
		t.Errorf("Set() error = %v", err)
	}

	calls := 0
	err = cache.GetOrSet(ctx, "key", &dest, time.Minute, func() (interface{}, error) {
		calls++
		return "computed", nil
	})
	if err != nil {
		t.Fatalf("GetOrSet() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected loader to run once, ran %d times", calls)
	}
	if dest != "computed" {
		t.Errorf("dest = %q, want computed", dest)
	}
}

func TestCacheKeys(t *testing.T) {
	if got := FactorRangeKey("AAPL", "2025-01-01", "2025-06-30"); got != "factors:AAPL:2025-01-01:2025-06-30" {
		t.Errorf("FactorRangeKey = %q", got)
	}
	if got := RunKey("abc"); got != "run:abc" {
		t.Errorf("RunKey = %q", got)
	}
}
