package app

import "goattach/internal/daemon"

// DaemonStatus represents what is known about a running attacher.
type DaemonStatus struct {
	Running bool
	PID     int
	Socket  string
}

// Status returns whether an attacher serves status on the socket and its PID if known.
func (a *App) Status() (DaemonStatus, error) {
	socket := daemon.SocketPath(a.socket)
	if !daemonIsRunning(socket) {
		return DaemonStatus{Running: false, Socket: socket}, nil
	}
	pid, err := daemon.RunningPID(socket)
	if err != nil {
		return DaemonStatus{Running: true, Socket: socket}, err
	}
	return DaemonStatus{Running: true, PID: pid, Socket: socket}, nil
}

// StopDaemon attempts to stop the running attacher.
func (a *App) StopDaemon(force bool) error {
	return daemon.StopRunning(a.socket, force)
}
