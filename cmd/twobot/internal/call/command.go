package call

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sipeed/twobot/cmd/twobot/internal"
)

func NewCallCommand() *cobra.Command {
	var post bool

	cmd := &cobra.Command{
		Use:   "call <action> [params-json]",
		Short: "Call a gateway action over the HTTP API",
		Example: `  twobot call get_login_info
  twobot call send_group_msg '{"group_id":123,"message":"hello"}' --post`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := internal.LoadConfig(false)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			raw := ""
			if len(args) == 2 {
				raw = args[1]
			}
			params, err := internal.ParseParams(raw)
			if err != nil {
				return err
			}

			res, err := internal.NewSyncApiSet(cfg, post).Call(cmd.Context(), args[0], params).Wait(cmd.Context())
			if err != nil {
				return err
			}
			internal.PrintResult(cmd.OutOrStdout(), res)
			if !res.OK {
				return fmt.Errorf("%s failed", args[0])
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&post, "post", false, "Send params as a JSON body instead of a query string")

	return cmd
}
