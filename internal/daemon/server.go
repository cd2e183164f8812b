package daemon

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"goattach/internal/journal"
)

// Server serves the status service on a UNIX socket.
type Server struct {
	grpc *grpc.Server
	ln   net.Listener
	path string
}

// Close stops the server and unlinks the socket and pid file.
func (s *Server) Close() error {
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}
	if s.path != "" {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return RemovePID(s.path)
}

// Path returns the socket path.
func (s *Server) Path() string { return s.path }

// Start binds socket (SocketPath("") if empty) and serves the journal on it.
func Start(socket string, j *journal.Journal, logger *slog.Logger) (*Server, error) {
	if j == nil {
		return nil, errors.New("status server needs a journal")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	path := SocketPath(socket)
	if err := EnsureRuntimeDir(path); err != nil {
		return nil, err
	}

	// If stale socket file exists but no attacher answers on it, remove it
	if _, err := os.Stat(path); err == nil {
		if IsRunning(path) {
			return nil, fmt.Errorf("another attacher is already serving on %s", path)
		}
		if err := os.Remove(path); err != nil {
			return nil, err
		}
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		ln.Close()
		return nil, err
	}

	gs := grpc.NewServer()
	RegisterStatusServer(gs, &service{journal: j})
	s := &Server{grpc: gs, ln: ln, path: path}
	if err := WritePID(path, os.Getpid()); err != nil {
		s.Close()
		return nil, err
	}
	go func() {
		if err := gs.Serve(ln); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Error("status server stopped", "socket", path, "error", err)
		}
	}()
	logger.Info("serving status", "socket", path)
	return s, nil
}

// StopRunning sends a termination signal to the attacher serving on socket, if any.
func StopRunning(socket string, force bool) error {
	path := SocketPath(socket)
	pid, err := RunningPID(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if IsRunning(path) {
				return fmt.Errorf("attacher is running but PID file %q is missing; stop it manually", PIDPath(path))
			}
			return nil
		}
		return fmt.Errorf("unable to read attacher PID: %w", err)
	}
	if pid == os.Getpid() {
		return errors.New("refusing to stop current process")
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := sendSignal(proc, path, syscall.SIGTERM); err != nil {
		return err
	}
	if waitForShutdown(path, 3*time.Second) {
		return nil
	}
	if !force {
		return fmt.Errorf("attacher process %d did not exit after SIGTERM", pid)
	}
	if err := sendSignal(proc, path, syscall.SIGKILL); err != nil {
		return err
	}
	if waitForShutdown(path, 2*time.Second) {
		return nil
	}
	return fmt.Errorf("attacher process %d did not exit after SIGKILL", pid)
}

func sendSignal(proc *os.Process, socket string, sig syscall.Signal) error {
	if err := proc.Signal(sig); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			_ = RemovePID(socket)
			return nil
		}
		return err
	}
	return nil
}

func waitForShutdown(socket string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if !IsRunning(socket) {
			_ = RemovePID(socket)
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(100 * time.Millisecond)
	}
}
