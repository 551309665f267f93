package redis

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Integration tests — skipped unless REDIS_URL is set.
func TestStoreGatewayIntegration(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set; skipping integration tests")
	}

	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("parse REDIS_URL: %v", err)
	}
	client := goredis.NewClient(opts)
	defer client.Close() //nolint:errcheck

	gw := NewStoreGateway(client)

	t.Run("Range_ReturnsAscendingByScore", func(t *testing.T) {
		ctx := context.Background()
		key := "journal-test:range"
		client.Del(ctx, key)
		defer client.Del(ctx, key)

		if err := client.ZAdd(ctx, key,
			goredis.Z{Score: 2, Member: "b"},
			goredis.Z{Score: 0, Member: "a"},
			goredis.Z{Score: 5, Member: "c"},
		).Err(); err != nil {
			t.Fatalf("seed ZADD: %v", err)
		}

		values, err := gw.Range(ctx, key, 0, 3)
		if err != nil {
			t.Fatalf("Range: %v", err)
		}
		if len(values) != 2 || string(values[0].Value) != "a" || string(values[1].Value) != "b" {
			t.Fatalf("unexpected range result: %+v", values)
		}
	})

	t.Run("Subscribe_ReceivesPublishedMessage", func(t *testing.T) {
		ctx := context.Background()
		channel := "journal-test:channel"

		sub, err := gw.Subscribe(ctx, channel)
		if err != nil {
			t.Fatalf("Subscribe: %v", err)
		}
		defer sub.Close() //nolint:errcheck

		time.Sleep(50 * time.Millisecond) // allow the subscription to register
		if err := client.Publish(ctx, channel, "7").Err(); err != nil {
			t.Fatalf("Publish: %v", err)
		}

		select {
		case payload := <-sub.Messages():
			if payload != "7" {
				t.Fatalf("expected payload %q, got %q", "7", payload)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("did not receive published message")
		}
	})
}
