package commands

import (
	"github.com/spf13/cobra"
)

func newLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Prime every configured instance with all registered scripts",
		Long: `load sends one pipelined batch of SCRIPT LOAD commands to each configured
address. Instances are primed concurrently; all failures are reported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, cancel := e.context(cmd.Context())
			defer cancel()

			if err := e.reg.EnsureLoaded(ctx, e.pipeliners()...); err != nil {
				return err
			}
			okColor.Fprintf(cmd.OutOrStdout(), "primed %d script(s) on %d instance(s)\n",
				e.reg.Len(), len(e.clients))
			return nil
		},
	}
}
