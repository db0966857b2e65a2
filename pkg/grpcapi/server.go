// Package grpcapi implements the gRPC MergeService.
package grpcapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/psaab/srxmerge/pkg/config"
	"github.com/psaab/srxmerge/pkg/configstore"
	"github.com/psaab/srxmerge/pkg/logging"
	"github.com/psaab/srxmerge/pkg/merge"
	"github.com/psaab/srxmerge/pkg/report"
)

// Config configures the gRPC server.
type Config struct {
	Store  *configstore.Store
	Merger *merge.Merger
	Events *logging.EventBuffer // nil disables WatchMerges
	Logger *slog.Logger
}

// Server implements MergeServiceServer.
type Server struct {
	store  *configstore.Store
	merger *merge.Merger
	events *logging.EventBuffer
	logger *slog.Logger
	addr   string
}

// NewServer creates a new gRPC server for addr.
func NewServer(addr string, cfg Config) *Server {
	s := &Server{
		store:  cfg.Store,
		merger: cfg.Merger,
		events: cfg.Events,
		logger: cfg.Logger,
		addr:   addr,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.merger == nil {
		s.merger = merge.New(merge.WithLogger(s.logger))
	}
	if s.store == nil {
		s.store = configstore.New("", configstore.WithMerger(s.merger), configstore.WithLogger(s.logger))
	}
	return s
}

// Register adds the service to gs.
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&ServiceDesc, s)
}

// Run starts the gRPC server and blocks until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("gRPC listen: %w", err)
	}
	srv := grpc.NewServer()
	s.Register(srv)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("gRPC server listening", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	srv.GracefulStop()
	return nil
}

// toStatus converts a store or merge error.
func toStatus(err error) error {
	var pe *config.ParseError
	var fe *merge.FailedError
	switch {
	case errors.As(err, &pe):
		return status.Errorf(codes.InvalidArgument, "%v", err)
	case errors.As(err, &fe):
		return status.Errorf(codes.FailedPrecondition, "%v", err)
	case errors.Is(err, configstore.ErrNotConfiguring):
		return status.Errorf(codes.FailedPrecondition, "%v", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Errorf(codes.Internal, "%v", err)
	}
}

// toStruct encodes v through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encode: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode: %v", err)
	}
	return out, nil
}

func field(in *structpb.Struct, name string) *structpb.Value {
	return in.GetFields()[name]
}

func parseField(in *structpb.Struct, name string) (*config.Node, error) {
	n, err := config.Parse(field(in, name).GetStringValue())
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%s: %v", name, err)
	}
	return n, nil
}

// resultStruct reports a merge pass. Fatal diagnostics are not an RPC
// error: the document carries ok=false and the findings.
func resultStruct(res *merge.ResolvedConfig, err error) (*structpb.Struct, error) {
	var fe *merge.FailedError
	if err != nil && !errors.As(err, &fe) {
		return nil, toStatus(err)
	}
	return toStruct(report.NewDocument(res))
}

func (s *Server) Merge(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var base *config.Node
	if field(in, "use_active").GetBoolValue() {
		base = s.store.Active()
	} else {
		var err error
		if base, err = parseField(in, "base"); err != nil {
			return nil, err
		}
	}
	doc, err := parseField(in, "document")
	if err != nil {
		return nil, err
	}
	return resultStruct(s.merger.Merge(ctx, base, doc))
}

func (s *Server) Check(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	doc, err := parseField(in, "document")
	if err != nil {
		return nil, err
	}
	return resultStruct(s.merger.Merge(ctx, nil, doc))
}

// GetConfig renders the active configuration. "format" is text (default)
// or set.
func (s *Server) GetConfig(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	out := map[string]any{"config_mode": s.store.InConfigMode()}
	switch f := field(in, "format").GetStringValue(); f {
	case "", "text":
		out["output"] = s.store.ShowActive()
	case "set":
		out["output"] = s.store.ShowActiveSet()
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unknown format %q", f)
	}
	if res := s.store.ActiveConfig(); res != nil {
		out["id"] = res.ID
		out["policies"] = len(res.Policies)
	}
	return structpb.NewStruct(out)
}

func (s *Server) EnterConfigure(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := s.store.EnterConfigure(); err != nil {
		return nil, status.Errorf(codes.FailedPrecondition, "%v", err)
	}
	return &structpb.Struct{}, nil
}

func (s *Server) ExitConfigure(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	s.store.ExitConfigure()
	return &structpb.Struct{}, nil
}

// LoadConfig applies "text" to the candidate with "mode" merge (default)
// or override.
func (s *Server) LoadConfig(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	text := field(in, "text").GetStringValue()
	switch mode := field(in, "mode").GetStringValue(); mode {
	case "", "merge":
		return resultStruct(s.store.LoadMerge(ctx, text))
	case "override":
		if err := s.store.LoadOverride(text); err != nil {
			return nil, toStatus(err)
		}
		return &structpb.Struct{}, nil
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unknown load mode %q", mode)
	}
}

// Commit activates the candidate. Unlike Merge, fatal diagnostics fail
// the RPC.
func (s *Server) Commit(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if field(in, "check").GetBoolValue() {
		res, err := s.store.CommitCheck(ctx)
		return resultStruct(res, err)
	}
	res, err := s.store.Commit(ctx, field(in, "comment").GetStringValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(report.NewDocument(res))
}

func (s *Server) Rollback(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	n := int(field(in, "n").GetNumberValue())
	if err := s.store.Rollback(n); err != nil {
		if errors.Is(err, configstore.ErrNotConfiguring) {
			return nil, toStatus(err)
		}
		return nil, status.Errorf(codes.NotFound, "%v", err)
	}
	return &structpb.Struct{}, nil
}

// Compare diffs the candidate against the active tree, or against
// rollback slot "rollback" when set.
func (s *Server) Compare(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if !s.store.InConfigMode() {
		return nil, toStatus(configstore.ErrNotConfiguring)
	}
	var out string
	if v := field(in, "rollback"); v != nil {
		var err error
		if out, err = s.store.ShowCompareRollback(int(v.GetNumberValue())); err != nil {
			return nil, status.Errorf(codes.NotFound, "%v", err)
		}
	} else {
		out = s.store.ShowCompare()
	}
	return structpb.NewStruct(map[string]any{"output": out})
}

// WatchMerges streams merge events until the client goes away. "result"
// is an optional comma-separated filter.
func (s *Server) WatchMerges(in *structpb.Struct, stream grpc.ServerStream) error {
	if s.events == nil {
		return status.Error(codes.Unavailable, "event buffer not available")
	}
	var filter map[string]bool
	if r := field(in, "result").GetStringValue(); r != "" {
		filter = make(map[string]bool)
		for _, v := range strings.Split(r, ",") {
			filter[strings.TrimSpace(v)] = true
		}
	}

	sub := s.events.Subscribe(128)
	defer sub.Close()
	// Headers go out now so clients know the subscription is live.
	if err := stream.SendHeader(metadata.MD{}); err != nil {
		return err
	}

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case rec := <-sub.C:
			if filter != nil && !filter[rec.Result] {
				continue
			}
			msg, err := toStruct(rec)
			if err != nil {
				return err
			}
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		}
	}
}

var _ MergeServiceServer = (*Server)(nil)
