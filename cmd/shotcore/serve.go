package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/launchlab/shotcore/internal/config"
	"github.com/launchlab/shotcore/internal/engine"
	"github.com/launchlab/shotcore/internal/frame"
	"github.com/launchlab/shotcore/internal/hud"
	"github.com/launchlab/shotcore/internal/lifecycle"
	"github.com/launchlab/shotcore/internal/logging"
	"github.com/launchlab/shotcore/internal/publish"
	"github.com/launchlab/shotcore/internal/session"
)

var (
	serveInput     string
	serveLabel     string
	serveExitOnEOF bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the live engine",
	Long: `Reads frames as JSON lines from --input, runs them through the lifecycle
controller, persists every outcome and telemetry event to SQLite, and serves
the live HUD over gRPC and WebSocket. Decisions are also published to Redis
when redis.addr is configured.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveInput, "input", "-", "frame source: JSON lines file, or - for stdin")
	serveCmd.Flags().StringVar(&serveLabel, "label", "", "session label")
	serveCmd.Flags().BoolVar(&serveExitOnEOF, "exit-on-eof", false, "stop once the input is exhausted")
	rootCmd.AddCommand(serveCmd)
}

// #region serve
func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := session.NewStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer store.Close()
	sess, err := store.StartSession(ctx, serveLabel)
	if err != nil {
		return err
	}
	log.Info("serve: session started", "session_id", sess.ID, "db", cfg.Store.Path)

	tally := session.NewTally()
	eng := engine.New(engine.Options{
		Lifecycle:    cfg.Lifecycle,
		RingCapacity: cfg.Engine.RingCapacity,
		Sinks:        []lifecycle.Sink{store, tally},
		Logger:       log,
	})

	redis, err := publish.NewRedis(ctx, publish.Config{
		Addr:      cfg.Redis.Addr,
		Password:  cfg.Redis.Password,
		DB:        cfg.Redis.DB,
		Channel:   cfg.Redis.Channel,
		KeyPrefix: cfg.Redis.KeyPrefix,
	}, log)
	if err != nil {
		log.Warn("serve: redis unavailable, continuing without it", "error", err)
	} else {
		defer redis.Close()
		eng.AddSink(redis.WithSession(store.Current))
	}

	hub := hud.NewHub(eng, cfg.Engine.TickInterval, log)
	hudServer := hud.NewServer(eng, log)
	eng.AddSink(hub)
	eng.AddSink(hudServer)

	runner := engine.NewRunner(eng, engine.RunnerConfig{
		QueueDepth:    cfg.Engine.QueueDepth,
		TickInterval:  cfg.Engine.TickInterval,
		FlushInterval: cfg.Engine.FlushInterval,
	}, logging.NewRecorder(store.DB(), eng.Ring(), sess.ID))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 4)
	go hub.Run(ctx)
	if stopHTTP, err := serveWebSocket(cfg, hub, tally, log, errc); err != nil {
		return err
	} else if stopHTTP != nil {
		defer stopHTTP()
	}
	if stopGRPC, err := serveGRPC(cfg, hudServer, log, errc); err != nil {
		return err
	} else if stopGRPC != nil {
		defer stopGRPC()
	}

	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()
	go func() {
		err := feedFrames(ctx, serveInput, runner, log)
		if err != nil {
			errc <- err
			return
		}
		if serveExitOnEOF {
			for runner.Pending() > 0 {
				time.Sleep(10 * time.Millisecond)
			}
			cancel()
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		log.Error("serve: component failed", "error", err)
		cancel()
	}
	<-done

	agg := tally.Aggregates()
	log.Info("serve: stopped",
		"session_id", sess.ID,
		"total", agg.Total,
		"accepted", agg.Accepted,
		"refused", agg.Refused,
	)
	return nil
}
// #endregion serve

// #region transports
func serveWebSocket(cfg config.Config, hub *hud.Hub, tally *session.Tally, log *slog.Logger, errc chan<- error) (func(), error) {
	if cfg.HUD.WSAddr == "" {
		return nil, nil
	}
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		agg := tally.Aggregates()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":      "ok",
			"clients":     hub.ClientCount(),
			"total":       agg.Total,
			"accepted":    agg.Accepted,
			"refused":     agg.Refused,
			"accept_rate": agg.AcceptRate(),
		})
	})

	lis, err := net.Listen("tcp", cfg.HUD.WSAddr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", cfg.HUD.WSAddr, err)
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("websocket server: %w", err)
		}
	}()
	log.Info("serve: websocket hud listening", "addr", lis.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}, nil
}

func serveGRPC(cfg config.Config, hudServer *hud.Server, log *slog.Logger, errc chan<- error) (func(), error) {
	if cfg.HUD.GRPCAddr == "" {
		return nil, nil
	}
	lis, err := net.Listen("tcp", cfg.HUD.GRPCAddr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", cfg.HUD.GRPCAddr, err)
	}
	gs := grpc.NewServer()
	hudServer.Register(gs)
	go func() {
		if err := gs.Serve(lis); err != nil {
			errc <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	log.Info("serve: grpc hud listening", "addr", lis.Addr().String())
	return func() {
		hudServer.Close()
		stopped := make(chan struct{})
		go func() {
			gs.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(3 * time.Second):
			log.Warn("serve: grpc graceful stop timed out, forcing")
			gs.Stop()
		}
	}, nil
}
// #endregion transports

// #region input
// feedFrames decodes one JSON frame per line and submits it in order.
func feedFrames(ctx context.Context, path string, runner *engine.Runner, log *slog.Logger) error {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var f frame.Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			log.Warn("serve: skipping malformed frame", "line", line, "error", err)
			continue
		}
		if err := runner.Submit(ctx, f); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, engine.ErrStopped) {
				return nil
			}
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	log.Info("serve: input exhausted", "lines", line)
	return nil
}
// #endregion input
