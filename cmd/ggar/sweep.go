package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove expired designs from the store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := cfg.Store.Open()
		if err != nil {
			return err
		}
		defer st.Close()
		n, err := st.Sweep(cmd.Context(), cfg.Store.MaxAge)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired designs\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
