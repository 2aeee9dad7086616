package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mensylisir/xmbuild/common"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", common.AppName, Version)
		},
	}
}
