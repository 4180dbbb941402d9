package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/launchlab/shotcore/internal/lifecycle"
	"github.com/launchlab/shotcore/internal/session"
)

// #region types
// Config configures the Redis outcome channel. An empty Addr disables it.
type Config struct {
	Addr        string
	Password    string
	DB          int
	Channel     string
	KeyPrefix   string
	HistorySize int64
}

// Event is the payload published for every decision.
type Event struct {
	Label     string             `json:"label"`
	SessionID string             `json:"session_id,omitempty"`
	Decision  lifecycle.Decision `json:"decision"`
}
// #endregion types

// #region redis
// Redis publishes decisions on a pub/sub channel and keeps running counters
// and a bounded history list.
type Redis struct {
	client  *redis.Client
	cfg     Config
	log     *slog.Logger
	session func() string
}

// NewRedis connects and pings. With an empty Addr it returns a disabled
// publisher whose Publish is a no-op.
func NewRedis(ctx context.Context, cfg Config, log *slog.Logger) (*Redis, error) {
	r := newRedis(nil, cfg, log)
	if cfg.Addr == "" {
		r.log.Info("publish: redis disabled")
		return r, nil
	}
	r.client = redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.client.Ping(pingCtx).Err(); err != nil {
		r.client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	r.log.Info("publish: redis connected", "addr", cfg.Addr, "channel", r.cfg.Channel)
	return r, nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, cfg Config, log *slog.Logger) *Redis {
	return newRedis(client, cfg, log)
}

func newRedis(client *redis.Client, cfg Config, log *slog.Logger) *Redis {
	if cfg.Channel == "" {
		cfg.Channel = "shotcore:decisions"
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "shotcore"
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 500
	}
	if log == nil {
		log = slog.Default()
	}
	return &Redis{client: client, cfg: cfg, log: log}
}

// WithSession tags every event with the id returned by current.
func (r *Redis) WithSession(current func() string) *Redis {
	r.session = current
	return r
}

// Enabled reports whether a client is attached.
func (r *Redis) Enabled() bool { return r.client != nil }

// Close releases the connection.
func (r *Redis) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

// Publish implements lifecycle.Sink.
func (r *Redis) Publish(ctx context.Context, d lifecycle.Decision) error {
	if r.client == nil {
		return nil
	}
	ev := Event{Label: d.Label(), Decision: d}
	if r.session != nil {
		ev.SessionID = r.session()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode decision: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, r.key("total"))
		if d.Finalized() {
			pipe.Incr(ctx, r.key("accepted"))
		} else {
			pipe.Incr(ctx, r.key("refused"))
			pipe.HIncrBy(ctx, r.key("refused", "by_reason"), string(d.Refusal), 1)
		}
		pipe.Set(ctx, r.key("last"), payload, 0)
		pipe.LPush(ctx, r.key("history"), payload)
		pipe.LTrim(ctx, r.key("history"), 0, r.cfg.HistorySize-1)
		pipe.Publish(ctx, r.cfg.Channel, payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Aggregates reads the running counters.
func (r *Redis) Aggregates(ctx context.Context) (session.Aggregates, error) {
	agg := session.Aggregates{ByReason: make(map[lifecycle.RefusalReason]int)}
	if r.client == nil {
		return agg, nil
	}
	vals, err := r.client.MGet(ctx, r.key("total"), r.key("accepted"), r.key("refused")).Result()
	if err != nil {
		return agg, fmt.Errorf("read counters: %w", err)
	}
	counts := make([]int, len(vals))
	for i, v := range vals {
		if s, ok := v.(string); ok {
			counts[i], _ = strconv.Atoi(s)
		}
	}
	agg.Total, agg.Accepted, agg.Refused = counts[0], counts[1], counts[2]

	reasons, err := r.client.HGetAll(ctx, r.key("refused", "by_reason")).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return agg, fmt.Errorf("read reasons: %w", err)
	}
	for k, v := range reasons {
		n, _ := strconv.Atoi(v)
		agg.ByReason[lifecycle.RefusalReason(k)] = n
	}
	return agg, nil
}

// History returns up to limit recent events, newest first.
func (r *Redis) History(ctx context.Context, limit int64) ([]Event, error) {
	if r.client == nil || limit <= 0 {
		return nil, nil
	}
	raw, err := r.client.LRange(ctx, r.key("history"), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	out := make([]Event, 0, len(raw))
	for _, s := range raw {
		var ev Event
		if err := json.Unmarshal([]byte(s), &ev); err != nil {
			return nil, fmt.Errorf("decode history: %w", err)
		}
		out = append(out, ev)
	}
	return out, nil
}

// Subscribe returns the pub/sub handle for the decision channel.
func (r *Redis) Subscribe(ctx context.Context) (*redis.PubSub, error) {
	if r.client == nil {
		return nil, errors.New("publish: redis disabled")
	}
	ps := r.client.Subscribe(ctx, r.cfg.Channel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", r.cfg.Channel, err)
	}
	return ps, nil
}

func (r *Redis) key(parts ...string) string {
	return r.cfg.KeyPrefix + ":" + strings.Join(parts, ":")
}
// #endregion redis
