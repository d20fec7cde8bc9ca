package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/jpfielding/dcmimage.go/pkg/adapter"
	"github.com/jpfielding/dcmimage.go/pkg/descriptor"
	"github.com/jpfielding/dcmimage.go/pkg/dicom"
	"github.com/jpfielding/dcmimage.go/pkg/dicom/sdicom"
	"github.com/jpfielding/dcmimage.go/pkg/raster"
	"github.com/jpfielding/dcmimage.go/pkg/reader"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"
)

// NewInfoCmd describes the image of a file and the value range of its
// frames
func NewInfoCmd(ctx context.Context, a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "describe the pixel data of a DICOM file",
		Long:  "Prints the image description, the color decision and per frame value ranges. The suyashkumar parser builds the description from github.com/suyashkumar/dicom attributes.",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := pathArg(cmd, args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch parser, _ := cmd.Flags().GetString("parser"); parser {
			case "suyashkumar":
				ds, err := sdicom.ParseFile(path)
				if err != nil {
					return err
				}
				printDescriptor(out, ds, descriptor.New(ds))
				return nil
			case "native":
			default:
				return fmt.Errorf("unknown parser %q (native|suyashkumar)", parser)
			}

			s, err := a.open(path)
			if err != nil {
				return err
			}
			defer s.Close()
			maxFrames, _ := cmd.Flags().GetInt("max-frames")
			stats, _ := cmd.Flags().GetBool("stats")
			return runInfo(ctx, out, s, maxFrames, stats)
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("file", "f", "", "DICOM file path")
	pf.String("parser", "native", "attribute parser (native|suyashkumar)")
	pf.Int("max-frames", 3, "frames to measure, all when negative")
	pf.Bool("stats", false, "print mean, deviation and percentiles of each frame")
	return cmd
}

func printDescriptor(out io.Writer, ds *dicom.Dataset, desc *descriptor.Descriptor) {
	syntax := dicom.GetTransferSyntax(ds)
	fmt.Fprintf(out, "TransferSyntax: %s (%s)\n", syntax, syntax.Name())
	fmt.Fprintf(out, "Image: %s\n", desc)
	fmt.Fprintf(out, "Modality: %s\n", desc.Modality)
	fmt.Fprintf(out, "SOPClassUID: %s\n", desc.SOPClassUID)
	if m := desc.ModalityLUT; m != nil {
		fmt.Fprintf(out, "Rescale: slope=%g intercept=%g type=%s\n", m.Slope(), m.Intercept(), m.RescaleType())
	}
	if v, ok := desc.PixelPaddingValue(); ok {
		fmt.Fprintf(out, "PixelPaddingValue: %d\n", v)
	}
	if n := len(desc.EmbeddedOverlays) + len(desc.Overlays); n > 0 {
		fmt.Fprintf(out, "Overlays: %d embedded, %d planes\n", len(desc.EmbeddedOverlays), len(desc.Overlays))
	}
}

func runInfo(ctx context.Context, out io.Writer, s *reader.Session, maxFrames int, stats bool) error {
	printDescriptor(out, s.Dataset(), s.Descriptor())
	fmt.Fprintf(out, "Photometric: %s decoded as %s\n", s.Descriptor().Photometric, s.Photometric())
	fmt.Fprintf(out, "BitsCompressed: %d\n", s.Descriptor().BitsCompressed)
	if hdr := s.Header(); hdr != nil {
		fmt.Fprintf(out, "Bitstream: %s\n", hdr)
	}

	frames := s.NumFrames()
	if maxFrames >= 0 {
		frames = min(frames, maxFrames)
	}
	for f := 0; f < frames; f++ {
		img, err := s.ReadFrame(ctx, f)
		if err != nil {
			fmt.Fprintf(out, "\n--- Frame %d ---\nDecode error: %v\n", f, err)
			continue
		}
		ad := s.Adapter(img, f)
		mm := ad.MinMax()
		fmt.Fprintf(out, "\n--- Frame %d ---\n", f)
		fmt.Fprintf(out, "Image: %s\n", img)
		fmt.Fprintf(out, "Range: min=%g max=%g bitsStored=%d\n", mm.Min, mm.Max, ad.BitsStored())

		p := adapter.DefaultPresentation{PixelPadding: true}
		fmt.Fprintf(out, "Default window: W=%g L=%g %s\n", ad.DefaultWindow(p), ad.DefaultLevel(p), ad.DefaultShape(p))
		for _, preset := range ad.Presets(p) {
			fmt.Fprintf(out, "Preset: %s\n", preset)
		}
		if stats {
			printStats(out, img)
		}
	}
	return nil
}

// printStats reports the sample distribution of a frame
func printStats(out io.Writer, img *raster.Image) {
	if img.Len() == 0 {
		return
	}
	mean, std := raster.Stats(img)
	values := make([]float64, img.Len())
	for i := range values {
		values[i] = img.Sample(i)
	}
	sort.Float64s(values)
	q := func(p float64) float64 { return stat.Quantile(p, stat.Empirical, values, nil) }
	fmt.Fprintf(out, "Stats: mean=%.3f std=%.3f p1=%g median=%g p99=%g\n", mean, std, q(0.01), q(0.5), q(0.99))
}
