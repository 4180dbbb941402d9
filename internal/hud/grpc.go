package hud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/launchlab/shotcore/internal/engine"
	"github.com/launchlab/shotcore/internal/lifecycle"
)

const (
	serviceName          = "launchcore.hud.v1.HUD"
	methodGetState       = "/" + serviceName + "/GetState"
	methodWatchDecisions = "/" + serviceName + "/WatchDecisions"
	watchBuffer          = 16
)

// #region service-desc
type hudService interface {
	getState(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
	watchDecisions(in *emptypb.Empty, stream grpc.ServerStream) error
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*hudService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetState", Handler: getStateHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "WatchDecisions", Handler: watchDecisionsHandler, ServerStreams: true},
	},
	Metadata: "launchcore/hud/v1/hud.proto",
}

func getStateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(hudService).getState(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetState}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(hudService).getState(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func watchDecisionsHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(hudService).watchDecisions(in, stream)
}
// #endregion service-desc

// #region server
// Server serves the live HUD over gRPC: a unary state query and a stream of
// terminal decisions.
type Server struct {
	source StateSource
	log    *slog.Logger

	mu       sync.Mutex
	watchers map[chan *structpb.Struct]struct{}
	dropped  atomic.Uint64

	done      chan struct{}
	closeOnce sync.Once
}

// NewServer creates a HUD service backed by source.
func NewServer(source StateSource, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		source:   source,
		log:      log,
		watchers: make(map[chan *structpb.Struct]struct{}),
		done:     make(chan struct{}),
	}
}

// Register attaches the service to gs.
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&serviceDesc, s)
}

// Publish implements lifecycle.Sink. Watchers that fall behind lose decisions.
func (s *Server) Publish(_ context.Context, d lifecycle.Decision) error {
	msg, err := toStruct(d)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.watchers {
		select {
		case ch <- msg:
		default:
			s.dropped.Add(1)
		}
	}
	return nil
}

// Close ends every open decision stream so a graceful stop can complete.
// Streams opened afterwards return immediately.
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Watchers returns the number of open decision streams.
func (s *Server) Watchers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers)
}

// Dropped returns how many decisions slow watchers missed.
func (s *Server) Dropped() uint64 { return s.dropped.Load() }

func (s *Server) getState(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	if s.source == nil {
		return nil, status.Error(codes.Unavailable, "no state source")
	}
	out, err := toStruct(s.source.State())
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *Server) watchDecisions(_ *emptypb.Empty, stream grpc.ServerStream) error {
	ch := make(chan *structpb.Struct, watchBuffer)
	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.watchers, ch)
		s.mu.Unlock()
	}()
	s.log.Debug("hud: decision watcher attached")

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.done:
			return nil
		case msg := <-ch:
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		}
	}
}
// #endregion server

// #region client
// Client is a HUD consumer.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to a HUD server. Extra options follow the insecure default.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close shuts down the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// State fetches the current snapshot.
func (c *Client) State(ctx context.Context) (engine.Snapshot, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, methodGetState, &emptypb.Empty{}, out); err != nil {
		return engine.Snapshot{}, fmt.Errorf("get state: %w", err)
	}
	var snap engine.Snapshot
	if err := fromStruct(out, &snap); err != nil {
		return engine.Snapshot{}, err
	}
	return snap, nil
}

// WatchDecisions calls fn for each decision until ctx ends, the stream
// closes, or fn returns an error.
func (c *Client) WatchDecisions(ctx context.Context, fn func(lifecycle.Decision) error) error {
	stream, err := c.conn.NewStream(ctx, &serviceDesc.Streams[0], methodWatchDecisions)
	if err != nil {
		return fmt.Errorf("watch decisions: %w", err)
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return fmt.Errorf("watch decisions: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("watch decisions: %w", err)
	}
	for {
		msg := new(structpb.Struct)
		if err := stream.RecvMsg(msg); err != nil {
			if errors.Is(err, io.EOF) || status.Code(err) == codes.Canceled {
				return nil
			}
			return fmt.Errorf("receive decision: %w", err)
		}
		var d lifecycle.Decision
		if err := fromStruct(msg, &d); err != nil {
			return err
		}
		if err := fn(d); err != nil {
			return err
		}
	}
}
// #endregion client
