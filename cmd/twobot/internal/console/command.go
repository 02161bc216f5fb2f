package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/sipeed/twobot/cmd/twobot/internal"
	"github.com/sipeed/twobot/pkg/config"
)

const helpText = `Commands:
  <action> [params-json]   call an action, e.g. get_group_list or send_group_msg {"group_id":1,"message":"hi"}
  get | post               switch between query string and JSON body
  help                     show this help
  exit | quit              leave the console`

func NewConsoleCommand() *cobra.Command {
	var post bool

	cmd := &cobra.Command{
		Use:     "console",
		Aliases: []string{"repl"},
		Short:   "Interactive console for gateway actions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := internal.LoadConfig(false)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return consoleCmd(cmd.Context(), cfg, post)
		},
	}

	cmd.Flags().BoolVar(&post, "post", false, "Start in POST mode")

	return cmd
}

func consoleCmd(ctx context.Context, cfg *config.Config, post bool) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "twobot> ",
		HistoryFile:     filepath.Join(os.TempDir(), ".twobot_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("error initializing readline: %w", err)
	}
	defer rl.Close()

	c := &console{cfg: cfg, post: post, out: rl.Stdout()}
	fmt.Fprintf(c.out, "Connected to %s. Type help for commands.\n", cfg.APIBaseURL())

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				fmt.Fprintln(c.out, "Goodbye!")
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}
		if c.exec(ctx, line) {
			fmt.Fprintln(c.out, "Goodbye!")
			return nil
		}
	}
}

type console struct {
	cfg  *config.Config
	post bool
	out  io.Writer
}

// exec runs one input line and reports whether the console should exit.
func (c *console) exec(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	action, raw, _ := strings.Cut(line, " ")
	switch action {
	case "exit", "quit":
		return true
	case "help":
		fmt.Fprintln(c.out, helpText)
		return false
	case "get", "post":
		c.post = action == "post"
		fmt.Fprintf(c.out, "Mode: %s\n", strings.ToUpper(action))
		return false
	}

	params, err := internal.ParseParams(raw)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return false
	}
	res, err := internal.NewSyncApiSet(c.cfg, c.post).Call(ctx, action, params).Wait(ctx)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return false
	}
	internal.PrintResult(c.out, res)
	return false
}
