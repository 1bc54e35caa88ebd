package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type testPayload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newTestCache(t *testing.T) *CacheService {
	t.Helper()
	mr := miniredis.RunT(t)
	return NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

func TestSetGetRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	in := testPayload{Name: "sicilian", Count: 3}
	if err := c.Set(ctx, "study:test", in, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var out testPayload
	if err := c.Get(ctx, "study:test", &out); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: %+v != %+v", out, in)
	}
}

func TestGetMissingKeyLeavesDestZero(t *testing.T) {
	c := newTestCache(t)

	var out testPayload
	if err := c.Get(context.Background(), "study:absent", &out); err != nil {
		t.Fatalf("Get missing: %v", err)
	}
	if out.Name != "" || out.Count != 0 {
		t.Fatalf("dest modified for missing key: %+v", out)
	}
}

func TestDel(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "study:gone", testPayload{Name: "x"}, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := c.Del(ctx, "study:gone"); err != nil {
		t.Fatalf("Del: %v", err)
	}

	var out testPayload
	if err := c.Get(ctx, "study:gone", &out); err != nil {
		t.Fatalf("Get after delete: %v", err)
	}
	if out.Name != "" {
		t.Fatalf("value survived delete: %+v", out)
	}
}

func TestKeys(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	for _, key := range []string{"study:sessions:a", "study:sessions:b", "other:c"} {
		if err := c.Set(ctx, key, testPayload{Name: key}, time.Minute); err != nil {
			t.Fatalf("Set %s: %v", key, err)
		}
	}
	keys, err := c.Keys(ctx, "study:sessions:*")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("keys = %v, want 2 session keys", keys)
	}
}
