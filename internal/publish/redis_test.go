package publish

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/launchlab/shotcore/internal/lifecycle"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func shot(id string) lifecycle.Decision {
	return lifecycle.Decision{
		Timestamp:  2,
		FinalState: lifecycle.StateFinalized,
		Refusal:    lifecycle.RefusalNone,
		Summary:    &lifecycle.EngineShotSummary{ShotID: id, FinalState: lifecycle.StateFinalized},
	}
}

func refusal(reason lifecycle.RefusalReason) lifecycle.Decision {
	return lifecycle.Decision{Timestamp: 3, FinalState: lifecycle.StateRefused, Refusal: reason}
}

// #region unit-tests
func TestDisabledIsNoop(t *testing.T) {
	r, err := NewRedis(context.Background(), Config{}, quiet())
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	if r.Enabled() {
		t.Fatal("expected disabled publisher")
	}
	if err := r.Publish(context.Background(), shot("a")); err != nil {
		t.Fatalf("disabled Publish must not fail: %v", err)
	}
	agg, err := r.Aggregates(context.Background())
	if err != nil || agg.Total != 0 {
		t.Fatalf("unexpected aggregates %+v (%v)", agg, err)
	}
	if _, err := r.Subscribe(context.Background()); err == nil {
		t.Fatal("expected error subscribing while disabled")
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestDefaultsAndKeys(t *testing.T) {
	r := NewRedisWithClient(nil, Config{}, nil)
	if r.cfg.Channel != "shotcore:decisions" || r.cfg.HistorySize != 500 {
		t.Fatalf("unexpected defaults %+v", r.cfg)
	}
	if got := r.key("refused", "by_reason"); got != "shotcore:refused:by_reason" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestUnreachableServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := NewRedis(ctx, Config{Addr: "127.0.0.1:1"}, quiet()); err == nil {
		t.Fatal("expected ping failure")
	}

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	r := NewRedisWithClient(client, Config{}, quiet())
	defer r.Close()
	if err := r.Publish(ctx, shot("a")); err == nil {
		t.Fatal("expected publish error against a closed port")
	}
}
// #endregion unit-tests

// #region integration-tests
// TestRoundTrip runs against a live server when SHOTCORE_TEST_REDIS is set.
func TestRoundTrip(t *testing.T) {
	addr := os.Getenv("SHOTCORE_TEST_REDIS")
	if addr == "" {
		t.Skip("SHOTCORE_TEST_REDIS not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	prefix := "shotcore-test-" + uuid.NewString()
	r, err := NewRedis(ctx, Config{Addr: addr, KeyPrefix: prefix, Channel: prefix + ":decisions", HistorySize: 2}, quiet())
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	defer r.Close()
	r.WithSession(func() string { return "sess-1" })

	ps, err := r.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer ps.Close()

	for _, d := range []lifecycle.Decision{shot("a"), refusal(lifecycle.RefusalTrackingLost), shot("b")} {
		if err := r.Publish(ctx, d); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	msg, err := ps.ReceiveMessage(ctx)
	if err != nil {
		t.Fatalf("ReceiveMessage: %v", err)
	}
	var ev Event
	if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil || ev.Label != "finalized" || ev.SessionID != "sess-1" {
		t.Fatalf("unexpected event %s (%v)", msg.Payload, err)
	}

	agg, err := r.Aggregates(ctx)
	if err != nil {
		t.Fatalf("Aggregates: %v", err)
	}
	if agg.Total != 3 || agg.Accepted != 2 || agg.Refused != 1 || agg.ByReason[lifecycle.RefusalTrackingLost] != 1 {
		t.Fatalf("unexpected aggregates %+v", agg)
	}

	hist, err := r.History(ctx, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 2 || hist[0].Decision.Summary.ShotID != "b" {
		t.Fatalf("expected 2 newest events, got %+v", hist)
	}

	keys, _ := r.client.Keys(ctx, prefix+":*").Result()
	r.client.Del(ctx, keys...)
}
// #endregion integration-tests
