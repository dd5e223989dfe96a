package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/redscript"
)

func newDigestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "digest FILE...",
		Short: "Print the SHA-1 Redis uses to cache each script file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range args {
				b, err := os.ReadFile(f)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", redscript.Digest(string(b)), f)
			}
			return nil
		},
	}
}
