package app

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"goattach/internal/daemon"
)

func TestAppPingNotRunning(t *testing.T) {
	stubDaemon(t, false, nil)

	app := New(Options{})
	if _, err := app.Ping(context.Background(), time.Second); err == nil || err.Error() != "attacher is not serving status" {
		t.Fatalf("expected not serving error, got %v", err)
	}
}

func TestAppPingSuccess(t *testing.T) {
	var method string
	stubDaemon(t, true, fakeClient(&fakeConn{
		invoke: func(ctx context.Context, m string, args interface{}, reply interface{}, opts ...grpc.CallOption) error {
			method = m
			resp, ok := reply.(*wrapperspb.StringValue)
			if !ok {
				t.Fatalf("unexpected reply type %T", reply)
			}
			resp.Value = "pong"
			return nil
		},
	}))

	app := New(Options{})
	msg, err := app.Ping(context.Background(), 500*time.Millisecond)
	if err != nil {
		t.Fatalf("Ping returned error: %v", err)
	}
	if msg != "pong" {
		t.Fatalf("expected pong, got %q", msg)
	}
	if method != "/goattach.v1.Status/Ping" {
		t.Fatalf("unexpected method %q", method)
	}
}

func TestAppPingDialError(t *testing.T) {
	stubDaemon(t, true, func(context.Context, string) (daemon.StatusClient, io.Closer, error) {
		return nil, nil, errors.New("dial failed")
	})

	app := New(Options{})
	if _, err := app.Ping(context.Background(), time.Second); err == nil || err.Error() != "connect to attacher: dial failed" {
		t.Fatalf("expected wrapped dial error, got %v", err)
	}
}

func TestAppPingInvalidTimeout(t *testing.T) {
	stubDaemon(t, true, func(context.Context, string) (daemon.StatusClient, io.Closer, error) {
		return nil, nil, errors.New("should not dial")
	})

	app := New(Options{})
	if _, err := app.Ping(context.Background(), 0); err == nil || err.Error() != "timeout must be greater than 0" {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestAppUsesConfiguredSocket(t *testing.T) {
	var seen string
	resetDaemonDeps()
	daemonIsRunning = func(socket string) bool { seen = socket; return false }
	t.Cleanup(resetDaemonDeps)

	app := New(Options{Socket: "/tmp/custom.sock"})
	_, _ = app.Ping(context.Background(), time.Second)
	if seen != "/tmp/custom.sock" {
		t.Fatalf("expected configured socket, got %q", seen)
	}
}
