package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"goattach/internal/command"
	"goattach/internal/config"
	"goattach/internal/vm"
)

// The helpers below are run by goattach itself, as the owner of a JVM, to
// read what only that user can see.

var propertiesPID string

func init() {
	rootCmd.AddCommand(cmdProperties, cmdTmpDir)
	cmdProperties.Flags().StringVar(&propertiesPID, "pid", "", "Pid of the JVM to query")
	_ = cmdProperties.MarkFlagRequired("pid")
}

var cmdProperties = &cobra.Command{
	Use:    "properties --pid <pid>",
	Short:  "Print the metadata of a JVM owned by the current user as JSON",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		j := &vm.Jcmd{Runner: command.Exec{}, Path: cfg.JcmdPath}
		props, err := j.Local(cmd.Context(), propertiesPID)
		if err != nil {
			return err
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(props)
	},
}

var cmdTmpDir = &cobra.Command{
	Use:    "tmpdir",
	Short:  "Print the temp dir of the current user",
	Hidden: true,
	Args:   cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), os.TempDir())
	},
}
