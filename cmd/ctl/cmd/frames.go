package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jpfielding/dcmimage.go/pkg/dicom/transfer"
	"github.com/jpfielding/dcmimage.go/pkg/reader"
	"github.com/spf13/cobra"
)

// NewFramesCmd lists the byte segments of each frame and optionally
// writes one frame bitstream to disk
func NewFramesCmd(ctx context.Context, a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "frames",
		Short: "list frame segments of the pixel data",
		Long:  "Resolves each frame to its file segments. With --dump-frame the stored bitstream of that frame is written undecoded.",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := pathArg(cmd, args)
			if err != nil {
				return err
			}
			dumpFrame, _ := cmd.Flags().GetInt("dump-frame")
			out, _ := cmd.Flags().GetString("out")

			s, err := a.open(path)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := listFrames(cmd.OutOrStdout(), s); err != nil {
				return err
			}
			if dumpFrame < 0 {
				return nil
			}
			return dumpFrameBytes(ctx, s, dumpFrame, out)
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("file", "f", "", "DICOM file path")
	pf.Int("dump-frame", -1, "index of the frame to write to disk")
	pf.String("out", "", "output path for the dumped frame")
	return cmd
}

func listFrames(out io.Writer, s *reader.Session) error {
	fmt.Fprintf(out, "TransferSyntax: %s (%s)\n", s.Syntax(), s.Syntax().Name())
	fmt.Fprintf(out, "Frames: %d\n", s.NumFrames())
	for f := 0; f < s.NumFrames(); f++ {
		stream, err := s.Stream(f)
		if err != nil {
			return fmt.Errorf("frame %d: %w", f, err)
		}
		fmt.Fprintf(out, "frame %d: segments=%d bytes=%d", f, stream.NumSegments(), stream.Len())
		for i := range stream.Positions {
			fmt.Fprintf(out, " [%d+%d]", stream.Positions[i], stream.Lengths[i])
		}
		fmt.Fprintln(out)
	}
	return nil
}

func dumpFrameBytes(ctx context.Context, s *reader.Session, frame int, out string) error {
	b, err := s.FrameBytes(frame)
	if err != nil {
		return err
	}
	if out == "" {
		out = fmt.Sprintf("frame_%d%s", frame, frameExtension(s))
	}
	if err := os.WriteFile(out, b, 0o644); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	slog.InfoContext(ctx, "frame written", slog.Int("frame", frame), slog.Int("bytes", len(b)), slog.String("out", out))
	return nil
}

// frameExtension picks a file suffix that image tools recognize
func frameExtension(s *reader.Session) string {
	switch s.Syntax().Family() {
	case transfer.FamilyJPEG2000, transfer.FamilyHTJ2K:
		return ".j2k"
	case transfer.FamilyJPEG:
		return ".jpg"
	case transfer.FamilyJPEGLS:
		return ".jls"
	case transfer.FamilyJPEGXL:
		return ".jxl"
	default:
		return ".bin"
	}
}
