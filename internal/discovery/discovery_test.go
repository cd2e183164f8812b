package discovery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goattach/internal/command"
	"goattach/internal/command/commandtest"
	"goattach/internal/users"
	"goattach/internal/vm"
)

type fakeProps struct {
	props map[string]map[string]string
	fail  map[string]error
	seen  []string
}

func (f *fakeProps) Properties(ctx context.Context, pid string, u *users.User) (map[string]string, error) {
	f.seen = append(f.seen, pid+"@"+u.Username())
	if err := f.fail[pid]; err != nil {
		return nil, err
	}
	if p, ok := f.props[pid]; ok {
		return p, nil
	}
	return map[string]string{}, nil
}

type fakeStrategy struct {
	name      string
	available bool
	infos     []vm.Info
	err       error
	calls     int
}

func (f *fakeStrategy) Name() string                        { return f.name }
func (f *fakeStrategy) Available(ctx context.Context) bool { return f.available }
func (f *fakeStrategy) Discover(ctx context.Context) ([]vm.Info, error) {
	f.calls++
	return f.infos, f.err
}

func newDescriber(t *testing.T, props *fakeProps) *Describer {
	t.Helper()
	reg, err := users.New(users.Options{
		Current: "alice",
		Runner:  &commandtest.Fake{},
		Lookup:  func(name string) (string, error) { return name, nil },
	})
	require.NoError(t, err)
	return &Describer{Users: reg, Properties: props}
}

func pids(infos []vm.Info) []string {
	out := make([]string, 0, len(infos))
	for _, i := range infos {
		out = append(out, i.PID())
	}
	return out
}

func TestCompoundUsesFirstAvailable(t *testing.T) {
	a := &fakeStrategy{name: "a", available: false, infos: []vm.Info{vm.New("1", "alice", nil, "")}}
	b := &fakeStrategy{name: "b", available: true, infos: []vm.Info{vm.New("2", "alice", nil, "")}}
	c := &fakeStrategy{name: "c", available: true}

	infos, err := NewCompound(nil, a, b, c).Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, pids(infos))
	assert.Zero(t, a.calls)
	assert.Equal(t, 1, b.calls)
	assert.Zero(t, c.calls)
}

type countingStrategy struct {
	fakeStrategy
	availableCalls int
}

func (c *countingStrategy) Available(ctx context.Context) bool {
	c.availableCalls++
	return c.available
}

func TestCompoundKeepsSelectedStrategy(t *testing.T) {
	a := &countingStrategy{fakeStrategy: fakeStrategy{name: "hsperfdata"}}
	b := &countingStrategy{fakeStrategy: fakeStrategy{name: "ps", available: true}}
	compound := NewCompound(nil, a, b)

	s, err := compound.Select(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ps", s.Name())

	a.available = true
	for i := 0; i < 2; i++ {
		_, err := compound.Discover(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, a.availableCalls)
	assert.Equal(t, 1, b.availableCalls)
	assert.Equal(t, 2, b.calls)
	assert.Zero(t, a.calls)
}

func TestCompoundNoStrategy(t *testing.T) {
	compound := NewCompound(nil, &fakeStrategy{name: "a"})
	_, err := compound.Discover(context.Background())
	assert.ErrorIs(t, err, ErrNoStrategy)
	assert.False(t, compound.Available(context.Background()))
}

func TestCompoundWrapsStrategyError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewCompound(nil, &fakeStrategy{name: "ps", available: true, err: boom}).Discover(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "ps")
}

func writeMarker(t *testing.T, dir, user, pid string) {
	t.Helper()
	d := filepath.Join(dir, perfDataPrefix+user)
	require.NoError(t, os.MkdirAll(d, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(d, pid), []byte("perf"), 0o644))
}

func TestHotSpotScanSkipsFailedQueries(t *testing.T) {
	tmp := t.TempDir()
	writeMarker(t, tmp, "alice", "100")
	writeMarker(t, tmp, "alice", "200")
	writeMarker(t, tmp, "alice", "not-a-pid")
	writeMarker(t, tmp, "bob", "300")
	require.NoError(t, os.MkdirAll(filepath.Join(tmp, "unrelated"), 0o755))

	props := &fakeProps{
		props: map[string]map[string]string{
			"100": {vm.PropCommand: "app.Main", vm.PropVersion: "17"},
		},
		fail: map[string]error{"200": errors.New("jcmd failed")},
	}
	scan := &HotSpotScan{Dirs: StaticDirs(tmp, filepath.Join(tmp, "missing")), Describer: newDescriber(t, props)}

	require.True(t, scan.Available(context.Background()))
	infos, err := scan.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"100", "300"}, pids(infos))
	assert.Equal(t, "alice", infos[0].User())
	assert.Equal(t, "bob", infos[1].User())
	main, _ := infos[0].Main()
	assert.Equal(t, "app.Main", main)
}

func TestHotSpotScanUnavailableWithoutPerfData(t *testing.T) {
	scan := &HotSpotScan{Dirs: StaticDirs(t.TempDir())}
	assert.False(t, scan.Available(context.Background()))
}

func TestHotSpotScanSeesDirsAddedLater(t *testing.T) {
	first, later := t.TempDir(), t.TempDir()
	dirs := []string{first}
	writeMarker(t, first, "alice", "100")
	writeMarker(t, later, "bob", "200")

	scan := &HotSpotScan{
		Dirs:      func(context.Context) []string { return dirs },
		Describer: newDescriber(t, &fakeProps{}),
	}
	infos, err := scan.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"100"}, pids(infos))

	dirs = append(dirs, later)
	infos, err = scan.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"100", "200"}, pids(infos))
}

const psOut = `USER       PID %CPU %MEM    VSZ   RSS TTY      STAT START   TIME COMMAND
root         1  0.0  0.1 167744 11512 ?        Ss   Oct12   0:03 /sbin/init
alice     4242  1.2  6.3 5000000 512000 ?      Sl   Oct12  10:00 /usr/bin/java -jar app.jar
bob       4343  0.1  0.3 200000 10000 pts/1    S+   10:00   0:00 vim Notes.java
garbage java
`

func TestParseProcessList(t *testing.T) {
	got := ParseProcessList([]byte(psOut), "java")
	assert.Equal(t, []Candidate{{User: "alice", PID: "4242"}, {User: "bob", PID: "4343"}}, got)
}

func TestPsScanDiscover(t *testing.T) {
	runner := &commandtest.Fake{Handler: func(call commandtest.Call) (command.Result, error) {
		return command.Result{Stdout: []byte(psOut)}, nil
	}}
	props := &fakeProps{fail: map[string]error{"4343": errors.New("not a JVM")}}
	scan := &PsScan{Runner: runner, Describer: newDescriber(t, props)}

	infos, err := scan.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"4242"}, pids(infos))
	assert.Equal(t, "ps aux", runner.Calls()[0].Line())
}

func TestPsScanLaunchFailure(t *testing.T) {
	runner := &commandtest.Fake{Handler: func(call commandtest.Call) (command.Result, error) {
		return command.Result{}, errors.New("exec: \"ps\": executable file not found in $PATH")
	}}
	scan := &PsScan{Runner: runner, Command: []string{"ps", "-eo", "user,pid,args"}}

	_, err := scan.Discover(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ps -eo user,pid,args")
	assert.False(t, scan.Available(context.Background()))
}

func TestTempDirsPerUserOnDarwin(t *testing.T) {
	runner := &commandtest.Fake{Handler: func(call commandtest.Call) (command.Result, error) {
		switch call.Line() {
		case "dscl . list /Users":
			return command.Result{Stdout: []byte("_www\nalice\nbob\ncarol\n")}, nil
		case "/usr/local/bin/goattach tmpdir":
			return command.Result{Stdout: []byte("/var/folders/aa/T/\n")}, nil
		case "sudo -n -u bob true":
			return command.Result{}, nil
		case "sudo -n -u bob /usr/local/bin/goattach tmpdir":
			return command.Result{Stdout: []byte("/var/folders/bb/T/\n")}, nil
		}
		return command.Result{ExitCode: 1}, nil
	}}
	reg, err := users.New(users.Options{Current: "alice", Runner: runner, Lookup: func(n string) (string, error) { return n, nil }})
	require.NoError(t, err)

	src := &TempDirSource{Users: reg, Self: "/usr/local/bin/goattach", SelfArgs: []string{"tmpdir"}, goos: "darwin"}
	assert.Equal(t, []string{"/var/folders/aa/T/", "/var/folders/bb/T/"}, src.Dirs(context.Background()))
}

func TestTempDirsPicksUpNewUsers(t *testing.T) {
	listing := "alice\n"
	runner := &commandtest.Fake{Handler: func(call commandtest.Call) (command.Result, error) {
		switch call.Line() {
		case "dscl . list /Users":
			return command.Result{Stdout: []byte(listing)}, nil
		case "/usr/local/bin/goattach tmpdir":
			return command.Result{Stdout: []byte("/var/folders/aa/T/\n")}, nil
		case "sudo -n -u dave true":
			return command.Result{}, nil
		case "sudo -n -u dave /usr/local/bin/goattach tmpdir":
			return command.Result{Stdout: []byte("/var/folders/dd/T/\n")}, nil
		}
		return command.Result{ExitCode: 1}, nil
	}}
	reg, err := users.New(users.Options{Current: "alice", Runner: runner, Lookup: func(n string) (string, error) { return n, nil }})
	require.NoError(t, err)
	src := &TempDirSource{Users: reg, Self: "/usr/local/bin/goattach", SelfArgs: []string{"tmpdir"}, goos: "darwin"}

	assert.Equal(t, []string{"/var/folders/aa/T/"}, src.Dirs(context.Background()))
	listing = "alice\ndave\n"
	assert.Equal(t, []string{"/var/folders/aa/T/", "/var/folders/dd/T/"}, src.Dirs(context.Background()))
	src.Dirs(context.Background())

	assert.Equal(t, 3, runner.CountPrefix("dscl . list /Users"))
	assert.Equal(t, 1, runner.CountPrefix("/usr/local/bin/goattach tmpdir"))
	assert.Equal(t, 1, runner.CountPrefix("sudo -n -u dave /usr/local/bin/goattach"))
}

func TestTempDirsLinux(t *testing.T) {
	src := &TempDirSource{goos: "linux"}
	assert.Equal(t, []string{"/tmp"}, src.Dirs(context.Background()))
}
