package cmd

import (
	"fmt"

	"github.com/sarchlab/regslave/regfile"
	"github.com/spf13/cobra"
)

var registersCmd = &cobra.Command{
	Use:   "registers",
	Short: "List the register map.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		for _, d := range regfile.Map() {
			fmt.Fprintf(cmd.OutOrStdout(), "%-8s index %d address 0x%02x %s\n",
				d.Name, d.Index, d.Address(), d.Access)
		}
	},
}

func init() {
	rootCmd.AddCommand(registersCmd)
}
