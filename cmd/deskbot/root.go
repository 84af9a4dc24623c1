package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

func Execute() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "deskbot",
		Short:         "LINE help-desk bot",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().String("config", "", "Config file path (default: $DESKBOT_HOME/config.yaml).")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newClassifyCmd())
	cmd.AddCommand(newKBCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deskbot v%s\n", version)
		},
	}
}
