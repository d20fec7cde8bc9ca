package cmd

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"

	"github.com/jpfielding/dcmimage.go/pkg/lut"
	"github.com/jpfielding/dcmimage.go/pkg/raster"
	"github.com/spf13/cobra"
	"golang.org/x/image/draw"
)

// NewRenderCmd writes one frame as a display ready PNG
func NewRenderCmd(ctx context.Context, a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "render a frame to PNG",
		Long:  "Applies the modality and VOI lookup tables to a frame and writes an 8 bit PNG. Flags override the render section of the configuration.",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := pathArg(cmd, args)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			frame, _ := flags.GetInt("frame")
			out, _ := flags.GetString("out")
			width, _ := flags.GetInt("width")

			p := a.cfg.ReadParam()
			if flags.Changed("window") || flags.Changed("level") {
				if !flags.Changed("window") || !flags.Changed("level") {
					return fmt.Errorf("--window and --level are set together")
				}
				w, _ := flags.GetFloat64("window")
				l, _ := flags.GetFloat64("level")
				p.SetWindowLevel(w, l)
			}
			if flags.Changed("shape") {
				name, _ := flags.GetString("shape")
				shape, ok := lut.ShapeByName(name)
				if !ok {
					return fmt.Errorf("unknown VOI LUT shape %q", name)
				}
				p.SetShape(shape)
			}
			if flags.Changed("inverse") {
				p.InverseLUT, _ = flags.GetBool("inverse")
			}
			if flags.Changed("padding") {
				on, _ := flags.GetBool("padding")
				p.SetPixelPadding(on)
			}

			s, err := a.open(path)
			if err != nil {
				return err
			}
			defer s.Close()
			rendered, err := s.RenderFrame(ctx, frame, p)
			if err != nil {
				return err
			}
			img, err := raster.ToGoImage(rendered)
			if err != nil {
				return err
			}
			if width > 0 && width != img.Bounds().Dx() {
				img = scale(img, width)
			}
			if out == "" {
				out = fmt.Sprintf("frame_%d.png", frame)
			}
			if err := writePNG(out, img); err != nil {
				return err
			}
			slog.InfoContext(ctx, "frame rendered",
				slog.Int("frame", frame), slog.String("image", rendered.String()), slog.String("out", out))
			return nil
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("file", "f", "", "DICOM file path")
	pf.Int("frame", 0, "frame index")
	pf.Float64("window", 0, "window width")
	pf.Float64("level", 0, "window center")
	pf.String("shape", "", "VOI LUT function (LINEAR, LINEAR_EXACT, SIGMOID, SIGMOID_NORM, LOG, LOG_INV)")
	pf.Bool("inverse", false, "invert the rendered values")
	pf.Bool("padding", true, "exclude pixel padding from the window")
	pf.Int("width", 0, "scale the output to this width, keeping the aspect ratio")
	pf.StringP("out", "o", "", "output PNG path")
	return cmd
}

// scale resamples img to width pixels with a Catmull-Rom kernel
func scale(img image.Image, width int) image.Image {
	b := img.Bounds()
	height := max(1, b.Dy()*width/b.Dx())
	rect := image.Rect(0, 0, width, height)
	var dst draw.Image
	switch img.(type) {
	case *image.Gray:
		dst = image.NewGray(rect)
	case *image.Gray16:
		dst = image.NewGray16(rect)
	default:
		dst = image.NewRGBA(rect)
	}
	draw.CatmullRom.Scale(dst, rect, img, b, draw.Src, nil)
	return dst
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return f.Close()
}
