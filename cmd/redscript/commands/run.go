package commands

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var keys, argv []string
	cmd := &cobra.Command{
		Use:   "run NAME",
		Short: "Run a registered script against the first configured address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, cancel := e.context(cmd.Context())
			defer cancel()

			params := make([]any, len(argv))
			for i, a := range argv {
				params[i] = a
			}
			v, err := e.reg.Run(ctx, e.clients[0], args[0], keys, params...)
			if errors.Is(err, redis.Nil) {
				v, err = nil, nil
			}
			if err != nil {
				return err
			}
			formatReply(cmd.OutOrStdout(), v, "")
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&keys, "key", "k", nil, "script key (KEYS[n]); repeatable")
	cmd.Flags().StringArrayVarP(&argv, "arg", "a", nil, "script argument (ARGV[n]); repeatable")
	return cmd
}
