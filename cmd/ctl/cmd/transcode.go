package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jpfielding/dcmimage.go/pkg/codec"
	"github.com/jpfielding/dcmimage.go/pkg/dicom"
	"github.com/jpfielding/dcmimage.go/pkg/dicom/transfer"
	"github.com/jpfielding/dcmimage.go/pkg/output"
	"github.com/jpfielding/dcmimage.go/pkg/raster"
	"github.com/spf13/cobra"
)

// NewTranscodeCmd decodes every frame of a file and writes the object
// again with another transfer syntax
func NewTranscodeCmd(ctx context.Context, a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcode",
		Short: "rewrite the pixel data with another transfer syntax",
		Long:  "Decodes all frames and encodes them with the requested transfer syntax, given as a UID or a codec name (" + strings.Join(codec.Names(), ", ") + "). Syntaxes that cannot hold the image fall back to a suitable one.",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := pathArg(cmd, args)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			out, _ := flags.GetString("out")
			if out == "" {
				return fmt.Errorf("--out is required")
			}

			param, err := a.cfg.WriteParam()
			if err != nil {
				return err
			}
			if flags.Changed("syntax") {
				name, _ := flags.GetString("syntax")
				ts, err := syntaxByName(name)
				if err != nil {
					return err
				}
				param = param.WithSyntax(ts)
			}
			if flags.Changed("quality") {
				param.CompressionQuality, _ = flags.GetInt("quality")
			}
			if flags.Changed("prediction") {
				param.Prediction, _ = flags.GetInt("prediction")
			}
			if flags.Changed("point-transform") {
				param.PointTransform, _ = flags.GetInt("point-transform")
			}
			if flags.Changed("near-lossless") {
				param.NearLosslessError, _ = flags.GetInt("near-lossless")
			}
			return runTranscode(ctx, a, path, out, param)
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("file", "f", "", "DICOM file path")
	pf.StringP("out", "o", "", "output DICOM path")
	pf.StringP("syntax", "s", "", "transfer syntax UID or codec name, defaults to the configuration")
	pf.Int("quality", 80, "lossy compression quality")
	pf.Int("prediction", 1, "lossless JPEG predictor (1-7)")
	pf.Int("point-transform", 0, "lossless JPEG point transform")
	pf.Int("near-lossless", 0, "JPEG-LS near lossless error")
	return cmd
}

func runTranscode(ctx context.Context, a *app, path, out string, param *output.WriteParam) error {
	s, err := a.open(path)
	if err != nil {
		return err
	}
	defer s.Close()

	frames := make([]*raster.Image, s.NumFrames())
	for f := range frames {
		if frames[f], err = s.ReadFrame(ctx, f); err != nil {
			return err
		}
	}
	data, err := output.New(frames, s.Descriptor(), param.Syntax)
	if err != nil {
		return err
	}
	ds := s.Dataset()
	if err := data.Write(ds, param); err != nil {
		return err
	}
	n, err := dicom.WriteFile(out, ds)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	slog.InfoContext(ctx, "transcoded",
		slog.String("from", s.Syntax().Name()),
		slog.String("to", data.Syntax().Name()),
		slog.String("path", data.Path().String()),
		slog.Int("frames", len(frames)),
		slog.Int64("bytes", n),
		slog.String("out", out))
	return nil
}

// syntaxByName accepts a transfer syntax UID or the name of a registered
// codec
func syntaxByName(name string) (transfer.Syntax, error) {
	ts := transfer.FromUID(strings.TrimSpace(name))
	if ts.Name() != string(ts) {
		return ts, nil
	}
	c, err := codec.ByName(strings.ToLower(name))
	if err != nil {
		return "", fmt.Errorf("unknown transfer syntax %q: %w", name, err)
	}
	return c.Syntaxes()[0], nil
}
