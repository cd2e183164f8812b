package agent

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
)

func TestConfigOrderAndDefaults(t *testing.T) {
	var c Config
	require.NoError(t, c.SetPair("server_url=http://127.0.0.1:8200"))
	require.NoError(t, c.SetPair("service_name=a=b"))
	require.NoError(t, c.SetPair("server_url=http://apm:8200"))

	assert.Equal(t, "server_url=http://apm:8200;service_name=a=b", c.String())
	assert.Equal(t, "server_url=http://apm:8200;service_name=a=b;activation_method=GOATTACH_CLI", c.WithDefaults().String())
	assert.Equal(t, 2, c.Len(), "WithDefaults must not modify the receiver")

	require.NoError(t, c.SetPair("activation_method=K8S"))
	v, _ := c.WithDefaults().Get(KeyActivationMethod)
	assert.Equal(t, "K8S", v)
}

func TestConfigRejectsMissingKey(t *testing.T) {
	var c Config
	assert.Error(t, c.SetPair("novalue"))
	assert.Error(t, c.SetPair("=x"))
}

func TestParseArgs(t *testing.T) {
	c, err := ParseArgs("a=1;b=2,3;;\n")
	require.NoError(t, err)
	assert.Equal(t, []Setting{{"a", "1"}, {"b", "2,3"}}, c.Settings())

	_, err = ParseArgs("a=1;oops")
	assert.Error(t, err)
}

func TestArgsProvider(t *testing.T) {
	runner := &commandtest.Fake{Handler: func(call commandtest.Call) (command.Result, error) {
		switch call.Line() {
		case "/opt/provider.sh 100":
			return command.Result{Stdout: []byte("service_name=billing;environment=prod\n")}, nil
		case "/opt/provider.sh 200":
			return command.Result{ExitCode: 3}, nil
		}
		return command.Result{}, errors.New("unexpected")
	}}
	p := &ArgsProvider{Runner: runner, Program: "/opt/provider.sh"}

	c, err := p.ConfigFor(context.Background(), "100")
	require.NoError(t, err)
	assert.Equal(t, "service_name=billing;environment=prod;activation_method=GOATTACH_CLI", c.String())

	_, err = p.ConfigFor(context.Background(), "200")
	assert.ErrorIs(t, err, ErrProviderRejected)

	_, err = p.ConfigFor(context.Background(), "300")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrProviderRejected)
}

func TestStaticAddsDefaults(t *testing.T) {
	var c Config
	c.Set("k", "v")
	got, err := Static(c).ConfigFor(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "k=v;activation_method=GOATTACH_CLI", got.String())
}

func TestJcmdAttach(t *testing.T) {
	runner := &commandtest.Fake{Handler: func(call commandtest.Call) (command.Result, error) {
		switch call.Args[0] {
		case "1":
			return command.Result{Stdout: []byte("1:\nreturn code: 0\n")}, nil
		case "2":
			return command.Result{Stdout: []byte("2:\nreturn code: 102\n")}, nil
		case "3":
			return command.Result{ExitCode: 1, Stderr: []byte("java.io.IOException: No such process")}, nil
		}
		return command.Result{}, nil
	}}
	j := &Jcmd{Runner: runner, Path: "/usr/bin/jcmd", AgentJar: "/opt/agent.jar"}
	var cfg Config
	cfg.Set("activation_method", "GOATTACH_CLI")

	require.NoError(t, j.Attach(context.Background(), "1", cfg))
	assert.Equal(t, []string{"1", "JVMTI.agent_load", "/opt/agent.jar", `"activation_method=GOATTACH_CLI"`}, runner.Calls()[0].Args)

	err := j.Attach(context.Background(), "2", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "return code: 102")

	err = j.Attach(context.Background(), "3", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No such process")
}

func TestJcmdAttachQuotesArguments(t *testing.T) {
	runner := &commandtest.Fake{}
	j := &Jcmd{Runner: runner, AgentJar: "/Users/John Smith/agent.jar"}
	var cfg Config
	cfg.Set("service_name", "my svc")
	cfg.Set("global_labels", `team="core"`)

	require.NoError(t, j.Attach(context.Background(), "7", cfg))
	assert.Equal(t, []string{
		"7", "JVMTI.agent_load",
		`"/Users/John Smith/agent.jar"`,
		`'service_name=my svc;global_labels=team="core"'`,
	}, runner.Calls()[0].Args)

	noOpts := &commandtest.Fake{}
	require.NoError(t, (&Jcmd{Runner: noOpts, AgentJar: "/opt/agent.jar"}).Attach(context.Background(), "8", Config{}))
	assert.Equal(t, []string{"8", "JVMTI.agent_load", "/opt/agent.jar"}, noOpts.Calls()[0].Args)

	cfg.Set("note", "it's")
	err := j.Attach(context.Background(), "9", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mixes single and double quotes")
	assert.Len(t, runner.Calls(), 1, "an unquotable argument must not reach jcmd")

	_, err = dcmdQuote(`C:\agents\`)
	assert.Error(t, err)
}

func TestJcmdSupports(t *testing.T) {
	j := &Jcmd{}
	for version, want := range map[string]bool{
		"1.8.0_292":   false,
		"1.7.0_80":    false,
		"9-internal":  true,
		"11.0.2":      true,
		"17":          true,
		"25.0.1+8-LT": true,
		"":            false,
		"unknown":     false,
	} {
		assert.Equalf(t, want, j.Supports(version), "version %q", version)
	}
}

func TestJcmdCheck(t *testing.T) {
	jar := filepath.Join(t.TempDir(), "agent.jar")
	require.NoError(t, os.WriteFile(jar, []byte("PK"), 0o644))
	runner := &commandtest.Fake{}

	require.NoError(t, (&Jcmd{Runner: runner, AgentJar: jar}).Check(context.Background()))
	assert.Equal(t, "jcmd -h", runner.Calls()[0].Line())

	assert.Error(t, (&Jcmd{Runner: runner}).Check(context.Background()))
	assert.Error(t, (&Jcmd{Runner: runner, AgentJar: filepath.Join(t.TempDir(), "missing.jar")}).Check(context.Background()))
	assert.Error(t, (&Jcmd{Runner: runner, AgentJar: t.TempDir()}).Check(context.Background()))

	broken := &commandtest.Fake{Handler: func(commandtest.Call) (command.Result, error) {
		return command.Result{}, errors.New("not found")
	}}
	assert.Error(t, (&Jcmd{Runner: broken, AgentJar: jar}).Check(context.Background()))
}

func TestForkerRunsChildAsUser(t *testing.T) {
	runner := &commandtest.Fake{Handler: func(call commandtest.Call) (command.Result, error) {
		if call.Line() == "sudo -n -u bob true" {
			return command.Result{}, nil
		}
		if call.Args[len(call.Args)-1] == "activation_method=GOATTACH_CLI" && call.Args[len(call.Args)-3] == "77" {
			return command.Result{}, nil
		}
		return command.Result{ExitCode: 1, Stderr: []byte("attach failed")}, nil
	}}
	reg, err := users.New(users.Options{Current: "alice", Runner: runner, Lookup: func(n string) (string, error) { return n, nil }})
	require.NoError(t, err)
	bob, err := reg.Resolve(context.Background(), "bob")
	require.NoError(t, err)

	f := &Forker{Users: reg, Self: "/usr/bin/goattach", Args: []string{"--log-level", "debug", "--agent-jar", "/opt/agent.jar"}}
	cfg := Config{}.WithDefaults()

	require.NoError(t, f.AttachAs(context.Background(), bob, "77", cfg))
	calls := runner.Calls()
	assert.Equal(t,
		"sudo -n -u bob /usr/bin/goattach --log-level debug --agent-jar /opt/agent.jar --no-fork --include-pid 77 --config activation_method=GOATTACH_CLI",
		calls[len(calls)-1].Line())

	err = f.AttachAs(context.Background(), bob, "78", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 1")
	assert.Contains(t, err.Error(), "attach failed")
}

func TestForkerRefusesUnswitchableUser(t *testing.T) {
	runner := &commandtest.Fake{Handler: func(commandtest.Call) (command.Result, error) {
		return command.Result{ExitCode: 1}, nil
	}}
	reg, err := users.New(users.Options{Current: "alice", Runner: runner, Lookup: func(n string) (string, error) { return n, nil }})
	require.NoError(t, err)
	carol, err := reg.Resolve(context.Background(), "carol")
	require.NoError(t, err)

	f := &Forker{Users: reg, Self: "/usr/bin/goattach"}
	err = f.AttachAs(context.Background(), carol, "1", Config{})
	assert.ErrorIs(t, err, users.ErrCannotSwitch)
	assert.Equal(t, 1, runner.CountPrefix("sudo"), "only the probe may run")
}
