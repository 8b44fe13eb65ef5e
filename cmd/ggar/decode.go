package main

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // scanned photos
	_ "image/png"
	"os"

	"github.com/spf13/cobra"

	"github.com/gogpu/ggar/codec"
	"github.com/gogpu/ggar/handoff"
)

var (
	decodeImage  bool
	decodeLookup bool
)

var decodeCmd = &cobra.Command{
	Use:   "decode [text|image]",
	Short: "Decode a scanned handoff code",
	Long: `Decode interprets scanned handoff text, or with --image reads the QR code
from a PNG or JPEG file. With --lookup the design is read from the store and
its payload printed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dec := handoff.NewDecoder()
		var (
			res *handoff.Result
			err error
		)
		if decodeImage {
			res, err = decodeFile(dec, args[0])
		} else {
			res, err = dec.Decode(args[0])
		}
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "design %s (%s)\n", res.DesignID, res.Source)
		if !decodeLookup {
			return nil
		}

		snap := res.Snapshot
		if snap == nil {
			st, err := cfg.Store.Open()
			if err != nil {
				return err
			}
			defer st.Close()
			if snap, err = st.Get(cmd.Context(), res.DesignID); err != nil {
				return err
			}
		}
		data, err := codec.Encode(snap)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n", data)
		return nil
	},
}

func decodeFile(dec *handoff.Decoder, path string) (*handoff.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Join(handoff.ErrNoCode, err)
	}
	return dec.DecodeImage(img)
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().BoolVar(&decodeImage, "image", false, "Treat the argument as an image file")
	decodeCmd.Flags().BoolVar(&decodeLookup, "lookup", false, "Print the design payload")
}
