package cache

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"shopledger/backend/internal/domain"
)

func TestNoopAlwaysMisses(t *testing.T) {
	var c Cache = Noop{}
	ctx := context.Background()
	if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	var dest string
	hit, err := c.Get(ctx, "k", &dest)
	if err != nil || hit {
		t.Fatalf("expected miss, got hit=%v err=%v", hit, err)
	}
}

func TestRedisCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("SHOPLEDGER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set SHOPLEDGER_TEST_REDIS_ADDR to run redis integration test")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Fatalf("ping redis: %v", err)
	}

	c := NewRedisCache(rdb)
	key := fmt.Sprintf("financials:test:%d", time.Now().UnixNano())
	t.Cleanup(func() { _ = c.Delete(context.Background(), key) })

	var miss domain.BuyerFinancials
	if hit, err := c.Get(ctx, key, &miss); err != nil || hit {
		t.Fatalf("expected miss before set, got hit=%v err=%v", hit, err)
	}

	want := domain.BuyerFinancials{BuyerID: "buyer-1", SaleCount: 2, Balance: decimal.RequireFromString("900.50")}
	if err := c.Set(ctx, key, want, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	var got domain.BuyerFinancials
	hit, err := c.Get(ctx, key, &got)
	if err != nil || !hit {
		t.Fatalf("expected hit, got hit=%v err=%v", hit, err)
	}
	if got.BuyerID != want.BuyerID || got.SaleCount != 2 || !got.Balance.Equal(want.Balance) {
		t.Fatalf("unexpected cached value %+v", got)
	}

	if err := c.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if hit, _ := c.Get(ctx, key, &got); hit {
		t.Fatalf("expected miss after delete")
	}
}
