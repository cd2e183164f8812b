package main

import (
	"context"
	"time"

	"goattach/internal/app"
	"goattach/internal/journal"
)

// socketPath overrides the status socket for the client subcommands.
var socketPath string

type controllerAPI interface {
	Ping(ctx context.Context, timeout time.Duration) (string, error)
	Status() (app.DaemonStatus, error)
	Outcomes(ctx context.Context, params app.ListParams) ([]journal.Entry, error)
	Counts(ctx context.Context, timeout time.Duration) (map[journal.Outcome]int, error)
	StopDaemon(force bool) error
}

var controllerFactory = func() controllerAPI {
	return app.New(app.Options{Socket: socketPath})
}

func controller() controllerAPI {
	return controllerFactory()
}
