package cron

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sipeed/twobot/cmd/twobot/internal"
	"github.com/sipeed/twobot/pkg/config"
)

func NewCronCommand() *cobra.Command {
	var cfg *config.Config

	cmd := &cobra.Command{
		Use:     "cron",
		Aliases: []string{"c"},
		Short:   "Inspect scheduled actions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			var err error
			cfg, err = internal.LoadConfig(false)
			if err != nil {
				return fmt.Errorf("error loading config: %w", err)
			}
			return nil
		},
	}

	cmd.AddCommand(
		newListCommand(func() *config.Config { return cfg }),
	)

	return cmd
}
