package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/emptypb"
)

// SocketBaseName is the UNIX socket filename
const SocketBaseName = "goattach.sock"

const pidFileName = "goattach.pid"

// SocketPath returns the full path to the status socket.
// Order of precedence (first wins):
// 1) explicit, usually the status_socket setting
// 2) GOATTACH_SOCKET (absolute path to socket)
// 3) if runtime=linux:
//   - GOATTACH_RUNTIME_DIR or $XDG_RUNTIME_DIR or /run/user/<UID>
//     else (darwin, *bsd, etc):
//   - GOATTACH_RUNTIME_DIR or /tmp
func SocketPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv("GOATTACH_SOCKET"); env != "" {
		return env
	}

	uid := currentUID()

	// Allow override of parent dir
	if rd := os.Getenv("GOATTACH_RUNTIME_DIR"); rd != "" {
		return filepath.Join(rd, SocketBaseName)
	}

	if runtime.GOOS == "linux" {
		if v := os.Getenv("XDG_RUNTIME_DIR"); v != "" {
			return filepath.Join(v, SocketBaseName)
		}
		return filepath.Join("/run/user", uid, SocketBaseName)
	}

	// macOS / BSD / other unix: keep it short to avoid sun_path length limit
	return filepath.Join("/tmp", "goattach-"+uid+".sock")
}

// EnsureRuntimeDir creates the directory holding the socket.
func EnsureRuntimeDir(socket string) error {
	return os.MkdirAll(filepath.Dir(socket), 0o700)
}

// PIDPath returns the pid file next to socket.
func PIDPath(socket string) string {
	return filepath.Join(filepath.Dir(socket), pidFileName)
}

// WritePID stores pid into the pid file next to socket.
func WritePID(socket string, pid int) error {
	if err := EnsureRuntimeDir(socket); err != nil {
		return err
	}
	return os.WriteFile(PIDPath(socket), []byte(fmt.Sprintf("%d\n", pid)), 0o600)
}

// RemovePID removes the pid file if it exists
func RemovePID(socket string) error {
	if err := os.Remove(PIDPath(socket)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// RunningPID returns the pid stored in the pid file if any
func RunningPID(socket string) (int, error) {
	data, err := os.ReadFile(PIDPath(socket))
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// IsRunning pings the status service on socket and reports whether it answered.
func IsRunning(socket string) bool {
	if _, err := os.Stat(socket); err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	client, conn, err := Dial(ctx, socket)
	if err != nil {
		return false
	}
	defer conn.Close()

	if _, err := client.Ping(ctx, &emptypb.Empty{}); err != nil {
		return false
	}
	return true
}

func currentUID() string {
	u, err := user.Current()
	if err == nil && u != nil && u.Uid != "" {
		return u.Uid
	}
	return "0"
}
