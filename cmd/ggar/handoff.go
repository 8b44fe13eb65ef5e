package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gogpu/ggar/handoff"
)

var (
	handoffOut           string
	handoffSelfContained bool
)

var handoffCmd = &cobra.Command{
	Use:   "handoff [design.json]",
	Short: "Store a design and write its handoff QR code",
	Long: `Handoff stores a design in the configured store and writes the QR code
an AR session scans to open it. With --self-contained the code carries the
whole payload and nothing is stored.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := readDesign(args[0])
		if err != nil {
			return err
		}
		enc, err := handoff.NewEncoder(cfg.QR)
		if err != nil {
			return err
		}

		var code *handoff.Code
		if handoffSelfContained {
			if code, err = enc.EncodeSnapshot(snap); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "design %s (self-contained)\n", snap.ID)
		} else {
			st, err := cfg.Store.Open()
			if err != nil {
				return err
			}
			defer st.Close()
			ticket, err := handoff.NewService(st, enc, cfg.Server.BaseURL).Handoff(cmd.Context(), snap)
			if err != nil {
				return err
			}
			code = ticket.Code
			fmt.Fprintf(cmd.OutOrStdout(), "design %s\n%s\n", ticket.DesignID, code.URL)
		}
		return os.WriteFile(handoffOut, code.PNG, 0o644)
	},
}

func init() {
	rootCmd.AddCommand(handoffCmd)
	handoffCmd.Flags().StringVarP(&handoffOut, "output", "o", "qr.png", "Output PNG file")
	handoffCmd.Flags().BoolVar(&handoffSelfContained, "self-contained", false, "Embed the whole payload instead of storing it")
}
