// Package orchestrator runs the discover, match and attach loop.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"goattach/internal/agent"
	"goattach/internal/discovery"
	"goattach/internal/journal"
	"goattach/internal/metrics"
	"goattach/internal/rules"
	"goattach/internal/users"
	"goattach/internal/vm"
)

// ErrCapability is returned when the attach mechanism fails its startup self-test.
var ErrCapability = errors.New("attach capability unavailable")

const DefaultInterval = time.Second

// Discoverer lists JVMs through the first available strategy.
type Discoverer interface {
	Select(ctx context.Context) (discovery.Strategy, error)
	Discover(ctx context.Context) ([]vm.Info, error)
}

// Describer reads the metadata of a known pid.
type Describer interface {
	Describe(ctx context.Context, pid, username string) (vm.Info, error)
}

// Forker attaches as another user.
type Forker interface {
	AttachAs(ctx context.Context, u *users.User, pid string, cfg agent.Config) error
}

// Options wires the orchestrator's collaborators.
type Options struct {
	Discoverer Discoverer
	Describer  Describer
	Rules      *rules.Set
	Users      *users.Registry
	Attacher   agent.Attacher
	Forker     Forker
	Config     agent.ConfigSource

	Journal *journal.Journal
	Metrics metrics.Collector
	Logger  *slog.Logger

	// Continuous keeps polling every Interval until the context is done.
	Continuous bool
	Interval   time.Duration
	// NoFork attaches to the include-pid targets directly as the current user,
	// without discovery, when those are the only rules.
	NoFork bool
	// List prints matching JVMs to Out instead of attaching.
	List     bool
	ListArgs bool
	Out      io.Writer
	// SelfPID is excluded from every poll. Defaults to os.Getpid.
	SelfPID string
}

// Orchestrator owns the state of one run.
type Orchestrator struct {
	opts   Options
	seen   SeenSet
	logger *slog.Logger
	stats  Summary
	cycle  uint64
}

// Summary counts the outcomes of a run.
type Summary struct {
	Cycles int
	Counts map[journal.Outcome]int
}

// Failures returns the number of per-instance failures.
func (s Summary) Failures() int {
	n := 0
	for o, c := range s.Counts {
		if o.Failure() || o == journal.Rejected {
			n += c
		}
	}
	return n
}

// New validates opts and returns an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Rules == nil {
		opts.Rules = &rules.Set{}
	}
	if opts.Users == nil {
		return nil, errors.New("orchestrator: user registry is required")
	}
	if !opts.List && opts.Attacher == nil {
		return nil, errors.New("orchestrator: attacher is required")
	}
	if opts.Config == nil {
		opts.Config = agent.Static(agent.Config{})
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Noop()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.SelfPID == "" {
		opts.SelfPID = strconv.Itoa(os.Getpid())
	}
	return &Orchestrator{
		opts:   opts,
		logger: opts.Logger,
		stats:  Summary{Counts: make(map[journal.Outcome]int)},
	}, nil
}

// Run executes one pass, or polls until ctx is done in continuous mode.
// Errors are startup-fatal conditions; per-instance failures only show up
// in the summary, the journal and the logs.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	if !o.opts.List {
		if err := o.opts.Attacher.Check(ctx); err != nil {
			return o.summary(), fmt.Errorf("%w: %v", ErrCapability, err)
		}
	}

	if o.opts.NoFork && !o.opts.Rules.DiscoveryRequired() {
		o.attachPIDs(context.WithoutCancel(ctx))
		return o.summary(), nil
	}

	if o.opts.Discoverer == nil {
		return o.summary(), discovery.ErrNoStrategy
	}
	strategy, err := o.opts.Discoverer.Select(ctx)
	if err != nil {
		return o.summary(), err
	}
	o.logger.Info("discovering JVMs", "strategy", strategy.Name(), "rules", o.opts.Rules.String(), "continuous", o.opts.Continuous)

	for {
		// A started cycle runs to completion even if ctx is cancelled meanwhile.
		err := o.Poll(context.WithoutCancel(ctx))
		if !o.opts.Continuous {
			return o.summary(), err
		}
		if err != nil {
			o.logger.Error("discovery failed", "error", err)
		}
		select {
		case <-ctx.Done():
			o.logger.Info("stopping", "cycles", o.stats.Cycles)
			return o.summary(), nil
		case <-time.After(o.opts.Interval):
		}
	}
}

// Poll runs a single discovery cycle and handles every new JVM in discovery order.
func (o *Orchestrator) Poll(ctx context.Context) error {
	o.cycle++
	o.stats.Cycles++
	start := time.Now()
	infos, err := o.opts.Discoverer.Discover(ctx)
	o.opts.Metrics.Poll(time.Since(start), err)
	if err != nil {
		return err
	}
	o.opts.Metrics.Discovered(len(infos))

	for _, info := range infos {
		if !o.seen.Admit(info.PID()) {
			continue
		}
		o.handle(ctx, info)
	}
	return nil
}

func (o *Orchestrator) attachPIDs(ctx context.Context) {
	o.cycle++
	o.stats.Cycles++
	current := o.opts.Users.Current()
	for _, pid := range o.opts.Rules.IncludePIDs() {
		if !o.seen.Admit(pid) {
			continue
		}
		o.contain(pid, func() decision {
			if o.opts.Describer == nil {
				return decision{outcome: journal.Failed, err: errors.New("no metadata source configured")}
			}
			info, err := o.opts.Describer.Describe(ctx, pid, current.Username())
			if err != nil {
				return decision{outcome: journal.Failed, err: fmt.Errorf("read metadata: %w", err)}
			}
			d := o.decide(ctx, info)
			d.info = info
			return d
		})
	}
}

type decision struct {
	info    vm.Info
	outcome journal.Outcome
	rule    string
	detail  string
	err     error
}

func (o *Orchestrator) handle(ctx context.Context, info vm.Info) {
	o.contain(info.PID(), func() decision {
		d := o.decide(ctx, info)
		d.info = info
		return d
	})
}

// contain runs fn for one target and records its decision. A panic is
// recorded as a failure of that target only.
func (o *Orchestrator) contain(pid string, fn func() decision) {
	var d decision
	func() {
		defer func() {
			if r := recover(); r != nil {
				d = decision{outcome: journal.Failed, err: fmt.Errorf("panic: %v", r)}
			}
		}()
		d = fn()
	}()
	if d.info.PID() == "" {
		d.info = vm.New(pid, "", nil, "")
	}
	o.record(d)
}

func (o *Orchestrator) decide(ctx context.Context, info vm.Info) decision {
	if info.PID() == o.opts.SelfPID {
		return decision{outcome: journal.Self}
	}

	rule, ok := o.opts.Rules.FirstMatch(info)
	if !ok {
		return decision{outcome: journal.Excluded, detail: "no rule matches"}
	}
	if rule.Direction == rules.Exclude {
		return decision{outcome: journal.Excluded, rule: rule.String()}
	}

	if o.opts.List {
		o.print(info)
		return decision{outcome: journal.Listed, rule: rule.String()}
	}
	d := o.act(ctx, info)
	d.rule = rule.String()
	return d
}

func (o *Orchestrator) act(ctx context.Context, info vm.Info) decision {
	u, err := o.opts.Users.Resolve(ctx, info.User())
	if err != nil {
		return decision{outcome: journal.Failed, err: err}
	}
	if !o.opts.Attacher.Supports(info.Version()) {
		return decision{outcome: journal.Unsupported, detail: "java version " + strconv.Quote(info.Version())}
	}
	if info.Attached() {
		return decision{outcome: journal.AlreadyAttached}
	}
	if !u.IsCurrent() && !u.CanSwitch() {
		return decision{
			outcome: journal.PermissionDenied,
			detail:  fmt.Sprintf("%s cannot switch to user %s", o.opts.Users.Current(), u),
		}
	}

	cfg, err := o.opts.Config.ConfigFor(ctx, info.PID())
	if err != nil {
		if errors.Is(err, agent.ErrProviderRejected) {
			return decision{outcome: journal.Rejected, err: err}
		}
		return decision{outcome: journal.Failed, err: err}
	}

	if u.IsCurrent() {
		err = o.opts.Attacher.Attach(ctx, info.PID(), cfg)
	} else if o.opts.Forker == nil {
		err = errors.New("attaching as another user is not configured")
	} else {
		err = o.opts.Forker.AttachAs(ctx, u, info.PID(), cfg)
	}
	if err != nil {
		return decision{outcome: journal.Failed, err: err}
	}
	return decision{outcome: journal.Attached}
}

func (o *Orchestrator) print(info vm.Info) {
	main, _ := info.Main()
	line := info.PID() + " " + main
	if o.opts.ListArgs {
		if args, ok := info.Args(); ok {
			line += " " + args
		}
	}
	fmt.Fprintln(o.opts.Out, line)
}

func (o *Orchestrator) record(d decision) {
	o.stats.Counts[d.outcome]++
	o.opts.Metrics.Outcome(d.outcome)

	main, _ := d.info.Main()
	detail := d.detail
	if d.err != nil {
		detail = d.err.Error()
	}
	if o.opts.Journal != nil {
		o.opts.Journal.Record(journal.Entry{
			PID:     d.info.PID(),
			User:    d.info.User(),
			Main:    main,
			Version: d.info.Version(),
			Outcome: d.outcome,
			Rule:    d.rule,
			Detail:  detail,
			Cycle:   o.cycle,
		})
	}

	attrs := []any{"pid", d.info.PID(), "user", d.info.User(), "main", main, "outcome", string(d.outcome)}
	if d.rule != "" {
		attrs = append(attrs, "rule", d.rule)
	}
	if detail != "" {
		attrs = append(attrs, "detail", detail)
	}
	switch d.outcome {
	case journal.Attached:
		o.logger.Info("attached agent", attrs...)
	case journal.Failed, journal.Rejected:
		o.logger.Error("unable to attach", attrs...)
	case journal.PermissionDenied:
		o.logger.Warn("unable to attach", attrs...)
	case journal.Excluded, journal.Self:
		o.logger.Debug("skipping JVM", attrs...)
	case journal.Listed:
		o.logger.Debug("listed JVM", attrs...)
	default:
		o.logger.Info("skipping JVM", attrs...)
	}
}

func (o *Orchestrator) summary() Summary {
	out := Summary{Cycles: o.stats.Cycles, Counts: make(map[journal.Outcome]int, len(o.stats.Counts))}
	for k, v := range o.stats.Counts {
		out.Counts[k] = v
	}
	return out
}
