package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eringen/pubcompose/imageproc"
)

func cropCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crop <input> <output.jpg>",
		Short: "Crop a picture to the 720x720 post square",
		Long: `Crop a picture the way uploaded photos are cropped: scale it to cover a
720x720 square and keep the bottom-left corner.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer in.Close()

			out, err := imageproc.CropSquareJPEG(in)
			if err != nil {
				return fmt.Errorf("crop %s: %w", args[0], err)
			}
			if err := os.WriteFile(args[1], out, 0o644); err != nil {
				return err
			}
			logger.Info("cropped", "in", args[0], "out", args[1], "kb", len(out)/1024)
			return nil
		},
	}
}
