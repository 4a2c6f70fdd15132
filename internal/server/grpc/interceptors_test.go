package grpcserver

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

type fakeAddr struct{}

func (fakeAddr) Network() string { return "tcp" }
func (fakeAddr) String() string  { return "127.0.0.1:12345" }

func TestLoggingUnary_Passthrough(t *testing.T) {
	t.Parallel()

	ic := LoggingUnary(zaptest.NewLogger(t))
	ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: fakeAddr{}})

	h := func(ctx context.Context, req any) (any, error) { return "ok", nil }
	info := &grpc.UnaryServerInfo{FullMethod: "/lanxat.Ops/Method"}

	resp, err := ic(ctx, "req", info, h)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s, _ := resp.(string); s != "ok" {
		t.Fatalf("resp mismatch: %v", resp)
	}

	wantErr := errors.New("boom")
	hErr := func(ctx context.Context, req any) (any, error) { return nil, wantErr }
	_, err = ic(ctx, "req", info, hErr)
	if !errors.Is(err, wantErr) {
		t.Fatalf("want original error, got: %v", err)
	}
}

func TestLoggingUnary_HealthProbesAtDebug(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	ic := LoggingUnary(zap.New(core))
	h := func(ctx context.Context, req any) (any, error) { return nil, nil }

	_, _ = ic(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: healthPrefix + "Check"}, h)
	_, _ = ic(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/lanxat.Ops/Other"}, h)

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("want 2 entries, got %d", len(entries))
	}
	if entries[0].Level != zapcore.DebugLevel || entries[1].Level != zapcore.InfoLevel {
		t.Fatalf("levels: %v, %v", entries[0].Level, entries[1].Level)
	}
}

func TestRecoverUnary_CatchesPanic(t *testing.T) {
	t.Parallel()

	ic := RecoverUnary(zaptest.NewLogger(t))
	info := &grpc.UnaryServerInfo{FullMethod: "/lanxat.Ops/Panic"}
	panicH := func(ctx context.Context, req any) (any, error) {
		panic("oh no")
	}

	_, err := ic(context.Background(), "req", info, panicH)
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Internal {
		t.Fatalf("want codes.Internal, got: %v", err)
	}
}

func TestRecoverUnary_NoPanicPassThrough(t *testing.T) {
	t.Parallel()

	ic := RecoverUnary(zaptest.NewLogger(t))
	info := &grpc.UnaryServerInfo{FullMethod: "/lanxat.Ops/Ok"}
	h := func(ctx context.Context, req any) (any, error) { return 42, nil }

	resp, err := ic(context.Background(), "req", info, h)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if resp.(int) != 42 {
		t.Fatalf("resp mismatch: %v", resp)
	}
}

func TestRecoverStream_CatchesPanic(t *testing.T) {
	t.Parallel()

	ic := RecoverStream(zaptest.NewLogger(t))
	info := &grpc.StreamServerInfo{FullMethod: healthPrefix + "Watch"}
	err := ic(nil, nil, info, func(any, grpc.ServerStream) error { panic("stream") })
	if status.Code(err) != codes.Internal {
		t.Fatalf("want codes.Internal, got: %v", err)
	}

	err = ic(nil, nil, info, func(any, grpc.ServerStream) error { return nil })
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}
