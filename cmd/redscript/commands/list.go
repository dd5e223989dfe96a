package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered scripts and their digests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			out := cmd.OutOrStdout()
			for _, name := range e.reg.Names() {
				s, _ := e.reg.Get(name)
				fmt.Fprintf(out, "%s  %s\n", s.Hash(), name)
			}
			return nil
		},
	}
}
