package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"goattach/internal/agent"
	"goattach/internal/command"
	"goattach/internal/config"
	"goattach/internal/daemon"
	"goattach/internal/discovery"
	"goattach/internal/journal"
	"goattach/internal/logging"
	"goattach/internal/metrics"
	"goattach/internal/orchestrator"
	"goattach/internal/rules"
	"goattach/internal/users"
	"goattach/internal/vm"
)

type attachOptions struct {
	rules        rules.Set
	agentConfig  agent.Config
	argsProvider string
	agentJar     string

	continuous  bool
	list        bool
	listArgs    bool
	noFork      bool
	logLevel    string
	logFile     string
	serveStatus bool
	metricsAddr string
}

var attachOpts attachOptions

func init() {
	fs := rootCmd.Flags()
	fs.SortFlags = false
	addRuleFlags(fs, &attachOpts.rules)
	fs.BoolVarP(&attachOpts.continuous, "continuous", "c", false, "Keep polling for new JVMs until interrupted")
	fs.BoolVarP(&attachOpts.list, "list", "l", false, "Print the matching JVMs instead of attaching")
	fs.BoolVarP(&attachOpts.listArgs, "list-vmargs", "v", false, "Like --list, and also print each JVM's arguments")
	fs.BoolVar(&attachOpts.noFork, "no-fork", false, "Attach to the --include-pid targets directly, without discovery or switching users")
	fs.StringVar(&attachOpts.agentJar, "agent-jar", "", "Path of the Java agent jar to load (required unless listing)")
	fs.VarP(&configValue{cfg: &attachOpts.agentConfig}, "config", "C", "Agent setting key=value passed to every attached JVM (repeatable)")
	fs.StringVarP(&attachOpts.argsProvider, "args-provider", "A", "", "Program run as '<program> <pid>' that prints the agent settings for that JVM")
	fs.StringVarP(&attachOpts.logLevel, "log-level", "g", "info", "Log level: debug, info, warn, error or off")
	fs.StringVar(&attachOpts.logFile, "log-file", "", "Write logs to this rolling file instead of stdout")
	fs.BoolVar(&attachOpts.serveStatus, "serve-status", false, "Serve attach outcomes on the status socket")
	fs.StringVar(&attachOpts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9464")
	rootCmd.MarkFlagsMutuallyExclusive("config", "args-provider")
}

func runAttach(cmd *cobra.Command, args []string) error {
	opts := &attachOpts
	if opts.listArgs {
		opts.list = true
	}
	if !opts.list && opts.agentJar == "" {
		return errors.New("--agent-jar is required unless --list or --list-vmargs is given")
	}

	if configFile != "" {
		abs, err := filepath.Abs(configFile)
		if err != nil {
			return err
		}
		configFile = abs
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	logger, closer, err := logging.New(logging.Options{Level: opts.logLevel, File: opts.logFile, Stdout: cmd.OutOrStdout()})
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	self, err := os.Executable()
	if err != nil {
		logger.Warn("cannot determine own executable; JVMs of other users are unreachable", "error", err)
	}
	runner := command.Exec{}
	registry, err := users.New(users.Options{
		Runner:       runner,
		SudoPath:     cfg.SudoPath,
		ProbeTimeout: cfg.ProbeTimeout,
	})
	if err != nil {
		return err
	}

	jar := opts.agentJar
	if jar != "" {
		// the JVM resolves relative paths against its own working directory
		if jar, err = filepath.Abs(jar); err != nil {
			return err
		}
	}

	var source agent.ConfigSource = agent.Static(opts.agentConfig)
	if opts.argsProvider != "" {
		source = &agent.ArgsProvider{Runner: runner, Program: opts.argsProvider}
	}

	j, err := journal.New(cfg.JournalCapacity, cfg.JournalFile)
	if err != nil {
		return err
	}
	j.Logger = logger

	collector := metrics.Noop()
	if opts.metricsAddr != "" {
		prom := metrics.NewPrometheus("")
		collector = prom
		go func() {
			if err := prom.Serve(ctx, opts.metricsAddr, logger); err != nil {
				logger.Error("metrics server failed", "addr", opts.metricsAddr, "error", err)
			}
		}()
	}

	if opts.serveStatus {
		srv, err := daemon.Start(cfg.StatusSocket, j, logger)
		if err != nil {
			return fmt.Errorf("start status server: %w", err)
		}
		defer srv.Close()
	}

	props := &vm.Jcmd{
		Users:    registry,
		Runner:   runner,
		Path:     cfg.JcmdPath,
		Self:     self,
		SelfArgs: selfArgs("properties"),
	}
	if opts.list {
		if err := checkListing(ctx, props); err != nil {
			return err
		}
	}
	describer := &discovery.Describer{Users: registry, Properties: props, AttachedProperty: cfg.AttachedProperty}

	var discoverer orchestrator.Discoverer
	if !opts.noFork || opts.rules.DiscoveryRequired() {
		discoverer = newDiscoverer(cfg, registry, runner, self, describer, logger)
	}

	orch, err := orchestrator.New(orchestrator.Options{
		Discoverer: discoverer,
		Describer:  describer,
		Rules:      &opts.rules,
		Users:      registry,
		Attacher:   &agent.Jcmd{Runner: runner, Path: cfg.JcmdPath, AgentJar: jar},
		Forker:     &agent.Forker{Users: registry, Self: self, Args: forwardedArgs(opts, jar)},
		Config:     source,
		Journal:    j,
		Metrics:    collector,
		Logger:     logger,
		Continuous: opts.continuous,
		Interval:   cfg.PollInterval,
		NoFork:     opts.noFork,
		List:       opts.list,
		ListArgs:   opts.listArgs,
		Out:        cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}

	if opts.continuous && opts.logFile != "" {
		spin := spinner.New(spinner.CharSets[21], 120*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
		spin.Suffix = " Watching..."
		spin.Start()
		defer spin.Stop()
	}

	summary, err := orch.Run(ctx)
	if err != nil {
		return err
	}
	logger.Debug("run finished", "cycles", summary.Cycles, "failures", summary.Failures())
	if opts.noFork {
		if n := summary.Failures(); n > 0 {
			return fmt.Errorf("%d target(s) could not be attached", n)
		}
	}
	return nil
}

// checkListing fails early when jcmd cannot run at all; listing reads the
// metadata of every JVM through it. Attaching has its own check.
func checkListing(ctx context.Context, props *vm.Jcmd) error {
	if err := props.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", orchestrator.ErrCapability, err)
	}
	return nil
}

func newDiscoverer(cfg config.Config, registry *users.Registry, runner command.Runner, self string, describer *discovery.Describer, logger *slog.Logger) *discovery.Compound {
	dirs := discovery.StaticDirs(cfg.MarkerDirs...)
	if len(cfg.MarkerDirs) == 0 {
		src := &discovery.TempDirSource{Users: registry, Self: self, SelfArgs: selfArgs("tmpdir"), Logger: logger}
		dirs = src.Dirs
	}
	return discovery.NewCompound(logger,
		&discovery.HotSpotScan{Dirs: dirs, Describer: describer, Logger: logger},
		&discovery.PsScan{Runner: runner, Command: cfg.PsCommand, Token: cfg.RuntimeToken, Describer: describer, Logger: logger},
	)
}

// selfArgs builds the arguments of a hidden helper subcommand run as another user.
func selfArgs(sub string) []string {
	args := []string{sub}
	if configFile != "" {
		args = append(args, "--config-file", configFile)
	}
	return args
}

// forwardedArgs are the flags a re-executed child inherits; the Forker adds
// the target pid and the resolved agent settings.
func forwardedArgs(opts *attachOptions, jar string) []string {
	args := []string{"--log-level", opts.logLevel}
	if opts.logFile != "" {
		args = append(args, "--log-file", opts.logFile)
	}
	if configFile != "" {
		args = append(args, "--config-file", configFile)
	}
	if jar != "" {
		args = append(args, "--agent-jar", jar)
	}
	return args
}
