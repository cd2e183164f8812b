package app

// Options configures the top-level controller.
type Options struct {
	// Socket is the status socket; empty means daemon.SocketPath("").
	Socket string
}

// App exposes high-level operations that the CLI/TUI can reuse.
type App struct {
	socket string
}

// New constructs the shared controller facade.
func New(opts Options) *App {
	return &App{
		socket: opts.Socket,
	}
}

// Socket returns the configured socket path (if any).
func (a *App) Socket() string {
	return a.socket
}
