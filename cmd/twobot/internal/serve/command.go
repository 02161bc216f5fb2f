package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sipeed/twobot/cmd/twobot/internal"
	"github.com/sipeed/twobot/pkg/bot"
	"github.com/sipeed/twobot/pkg/config"
	"github.com/sipeed/twobot/pkg/cron"
	"github.com/sipeed/twobot/pkg/logger"
)

const checkTimeout = 5 * time.Second

func NewServeCommand() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"s"},
		Short:   "Accept gateway connections and run the bot",
		Args:    cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return serveCmd(debug)
		},
	}

	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	return cmd
}

func serveCmd(debug bool) error {
	cfg, err := internal.LoadConfig(debug)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, schedules, err := setup(cfg)
	if err != nil {
		return err
	}

	checkGateway(ctx, b)

	go func() {
		if err := schedules.Run(ctx); err != nil {
			logger.ErrorCF("serve", "Scheduler stopped", map[string]any{"error": err.Error()})
		}
	}()

	logger.InfoCF("serve", "Waiting for gateway connections", map[string]any{
		"addr": cfg.WSAddr(),
		"path": cfg.WSPath,
		"api":  cfg.APIBaseURL(),
	})
	return b.Run(ctx)
}

// setup builds the bot with the built-in handlers and loads the configured
// schedules against its invoker.
func setup(cfg *config.Config) (*bot.Bot, *cron.CronService, error) {
	b := bot.New(cfg)
	registerHandlers(b)

	schedules := cron.NewCronService(b.Invoker())
	if err := schedules.LoadConfig(cfg.Schedules); err != nil {
		return nil, nil, fmt.Errorf("loading schedules: %w", err)
	}
	return b, schedules, nil
}

// checkGateway checks the HTTP API once. Failure is only a warning; the
// reverse connection may still come up.
func checkGateway(ctx context.Context, b *bot.Bot) bool {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	if !b.Sync(false).TestConnection(ctx) {
		logger.WarnCF("serve", "Gateway HTTP API unreachable", map[string]any{
			"api": b.Config().APIBaseURL(),
		})
		return false
	}
	logger.InfoCF("serve", "Gateway HTTP API reachable", map[string]any{
		"api": b.Config().APIBaseURL(),
	})
	return true
}
