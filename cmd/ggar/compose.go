package main

import (
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gogpu/ggar/codec"
	"github.com/gogpu/ggar/compose"
	"github.com/gogpu/ggar/design"
	"github.com/gogpu/ggar/texture"
)

var (
	composeOut   string
	composeRoots []string
)

var composeCmd = &cobra.Command{
	Use:   "compose [design.json]",
	Short: "Compose a design payload into a texture PNG",
	Long: `Compose reads a design payload, rasterises it the way the AR model's
design surface receives it, and writes the texture as PNG.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := readDesign(args[0])
		if err != nil {
			return err
		}
		// Local runs may read images next to the design and under --assets.
		cc := cfg.Compose
		cc.FileRoots = append(append([]string(nil), cc.FileRoots...), composeRoots...)
		if args[0] != "-" {
			cc.FileRoots = append(cc.FileRoots, filepath.Dir(args[0]))
		}
		comp, err := cc.Compositor()
		if err != nil {
			return err
		}

		// A one-material scene stands in for the product model.
		surface := texture.NewMaterial(cfg.Marker.Name, texture.NewTexture(cfg.Marker.SourceContains, texture.DefaultUV()))
		scene := &texture.Scene{Root: &texture.Node{Name: "product", Materials: []*texture.Material{surface}}}
		adapter := texture.NewAdapter(cfg.Marker, nil)

		c := compose.NewCoalescer(comp.Compose, adapter.Sink(scene))
		if _, err := c.Do(cmd.Context(), snap); err != nil {
			return err
		}
		tex := surface.Texture()

		f, err := os.Create(composeOut)
		if err != nil {
			return err
		}
		if err := png.Encode(f, tex.Pixels()); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		d := tex.Desc
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %dx%d %s, %d mip levels\n",
			composeOut, d.Size.Width, d.Size.Height, d.ColorSpace, d.MipLevelCount)
		return nil
	},
}

// readDesign decodes a payload from path, or stdin for "-".
func readDesign(path string) (*design.Snapshot, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = readAllStdin()
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	return codec.Decode(data)
}

func readAllStdin() ([]byte, error) {
	return io.ReadAll(os.Stdin)
}

func init() {
	rootCmd.AddCommand(composeCmd)
	composeCmd.Flags().StringVarP(&composeOut, "output", "o", "texture.png", "Output PNG file")
	composeCmd.Flags().StringSliceVar(&composeRoots, "assets", nil, "Extra directories image sources may be read from")
}
