package main

import (
	"strings"

	"github.com/spf13/pflag"

	"goattach/internal/agent"
	"goattach/internal/rules"
)

// ruleValue appends to a shared rule set, so the order of rule flags on the
// command line is the evaluation order.
type ruleValue struct {
	set    *rules.Set
	option string
	last   string
}

func (v *ruleValue) String() string { return v.last }

func (v *ruleValue) Set(s string) error {
	if v.option == rules.OptIncludeAll {
		if strings.EqualFold(s, "false") {
			return nil
		}
		s = ""
	}
	if err := v.set.Add(v.option, s); err != nil {
		return err
	}
	v.last = s
	return nil
}

func (v *ruleValue) Type() string {
	if v.option == rules.OptIncludeAll {
		return "bool"
	}
	if strings.HasSuffix(v.option, "-pid") {
		return "pid"
	}
	if strings.HasSuffix(v.option, "-user") {
		return "user"
	}
	return "regex"
}

type ruleFlag struct {
	option string
	usage  string
	hidden bool
}

var ruleFlags = []ruleFlag{
	{option: rules.OptIncludeAll, usage: "Attach to every discovered JVM not excluded by an earlier rule"},
	{option: rules.OptIncludePID, usage: "Attach to the JVM with this pid (repeatable)"},
	{option: rules.OptExcludePID, usage: "Skip the JVM with this pid (repeatable)"},
	{option: rules.OptIncludeMain, usage: "Attach to JVMs whose main class or jar matches this regex (repeatable)"},
	{option: rules.OptExcludeMain, usage: "Skip JVMs whose main class or jar matches this regex (repeatable)"},
	{option: rules.OptIncludeUser, usage: "Attach to JVMs owned by this user (repeatable)"},
	{option: rules.OptExcludeUser, usage: "Skip JVMs owned by this user (repeatable)"},
	{option: rules.OptIncludeArgs, usage: "Attach to JVMs whose arguments match this regex (repeatable)"},
	{option: rules.OptExcludeArgs, usage: "Skip JVMs whose arguments match this regex (repeatable)"},
	{option: rules.OptIncludeArgs + "s", hidden: true},
	{option: rules.OptExcludeArgs + "s", hidden: true},
}

// addRuleFlags registers every include/exclude flag on fs, all feeding set.
func addRuleFlags(fs *pflag.FlagSet, set *rules.Set) {
	for _, rf := range ruleFlags {
		usage := rf.usage
		if usage == "" {
			usage = "alias of --" + strings.TrimSuffix(rf.option, "s")
		}
		f := fs.VarPF(&ruleValue{set: set, option: rf.option}, rf.option, "", usage)
		if rf.option == rules.OptIncludeAll {
			f.NoOptDefVal = "true"
		}
		f.Hidden = rf.hidden
	}
}

// configValue collects repeatable key=value agent settings in order.
type configValue struct {
	cfg *agent.Config
}

func (v *configValue) String() string { return v.cfg.String() }

func (v *configValue) Set(s string) error {
	return v.cfg.SetPair(s)
}

func (v *configValue) Type() string { return "key=value" }
