package main

import (
	"log"

	"github.com/spf13/cobra"
)

// configFile is the optional YAML configuration shared by every subcommand.
var configFile string

var rootCmd = &cobra.Command{
	Use:   "goattach [flags]",
	Short: "goattach: attach a Java agent to running JVMs",
	Long: `goattach discovers running JVMs, matches them against ordered include/exclude rules
and loads a Java agent into the matching ones, switching to the JVM owner's account when needed.

Rules are evaluated in the order they are given; the first matching rule decides.`,
	Example: `  goattach --agent-jar agent.jar --exclude-user root --include-all
  goattach --agent-jar agent.jar -c --include-main 'com\.example\..*' -C service_name=api
  goattach --list-vmargs --include-all`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runAttach,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config-file", "", "Path to a YAML configuration file")
	// Malformed rules are reported before anything is discovered, with usage.
	rootCmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		c.PrintErrln(c.UsageString())
		return err
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
