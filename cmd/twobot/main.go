// twobot - OneBot v11 bot engine
// License: MIT
//
// Copyright (c) 2026 twobot contributors

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sipeed/twobot/cmd/twobot/internal"
	"github.com/sipeed/twobot/cmd/twobot/internal/call"
	"github.com/sipeed/twobot/cmd/twobot/internal/configcmd"
	"github.com/sipeed/twobot/cmd/twobot/internal/console"
	"github.com/sipeed/twobot/cmd/twobot/internal/cron"
	"github.com/sipeed/twobot/cmd/twobot/internal/serve"
	"github.com/sipeed/twobot/cmd/twobot/internal/version"
)

func NewTwobotCommand() *cobra.Command {
	var configPath string

	// cron has its own PersistentPreRunE; the root hook must still apply --config.
	cobra.EnableTraverseRunHooks = true

	cmd := &cobra.Command{
		Use:           "twobot",
		Short:         "OneBot v11 bot engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			internal.SetConfigPath(configPath)
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.twobot/config.json)")

	cmd.AddCommand(
		serve.NewServeCommand(),
		call.NewCallCommand(),
		console.NewConsoleCommand(),
		configcmd.NewConfigCommand(),
		cron.NewCronCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	if err := NewTwobotCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
