package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"goattach/internal/daemon"
)

var (
	daemonIsRunning  = daemon.IsRunning
	dialDaemonClient = dialStatus
)

func dialStatus(ctx context.Context, socket string) (daemon.StatusClient, io.Closer, error) {
	client, conn, err := daemon.Dial(ctx, socket)
	if err != nil {
		return nil, nil, err
	}
	return client, conn, nil
}

func resetDaemonDeps() {
	daemonIsRunning = daemon.IsRunning
	dialDaemonClient = dialStatus
}

func (a *App) withClient(ctx context.Context, timeout time.Duration, fn func(context.Context, daemon.StatusClient) error) error {
	if timeout <= 0 {
		return errors.New("timeout must be greater than 0")
	}
	socket := daemon.SocketPath(a.socket)
	if !daemonIsRunning(socket) {
		return errors.New("attacher is not serving status")
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, conn, err := dialDaemonClient(ctx, socket)
	if err != nil {
		return fmt.Errorf("connect to attacher: %w", err)
	}
	if conn != nil {
		defer conn.Close()
	}

	return fn(ctx, client)
}
