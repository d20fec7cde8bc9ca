package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/jpfielding/dcmimage.go/pkg/config"
	"github.com/jpfielding/dcmimage.go/pkg/logging"
	"github.com/jpfielding/dcmimage.go/pkg/reader"
	"github.com/spf13/cobra"
)

// app holds the settings shared by the commands of one run
type app struct {
	cfg     *config.Config
	logFile io.Closer
}

func NewRoot(ctx context.Context, gitsha string) *cobra.Command {
	a := &app{cfg: config.DefaultConfig()}
	cmd := &cobra.Command{
		Use:          "dcmctl",
		Short:        "inspect, render and transcode DICOM images",
		Long:         "dcmctl reads DICOM pixel data frame by frame, renders frames for display and rewrites them with another transfer syntax.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(ctx, cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logFile != nil {
				a.logFile.Close()
			}
		},
		Run: func(cmd *cobra.Command, args []string) {
			printCommandTree(cmd, 0)
		},
	}
	cmd.AddCommand(
		NewVersionCmd(ctx, gitsha),
		NewDumpCmd(ctx),
		NewInfoCmd(ctx, a),
		NewFramesCmd(ctx, a),
		NewRenderCmd(ctx, a),
		NewTranscodeCmd(ctx, a),
		NewConfigCmd(ctx, a),
	)
	pf := cmd.PersistentFlags()
	pf.String("config", "", "YAML configuration file")
	pf.String("log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	pf.Bool("log-json", false, "log JSON records")
	pf.String("log-file", "", "also log to this file, rotated by size")
	return cmd
}

// setup loads the configuration, applies the flags over it and installs
// the default logger
func (a *app) setup(ctx context.Context, cmd *cobra.Command) error {
	flags := cmd.Flags()
	if path, _ := flags.GetString("config"); path != "" {
		cfg, err := config.LoadConfig(path)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}
	if flags.Changed("log-level") {
		a.cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-json") {
		a.cfg.Log.JSON, _ = flags.GetBool("log-json")
	}
	if flags.Changed("log-file") {
		a.cfg.Log.File, _ = flags.GetString("log-file")
	}

	level, ok := logging.ParseLevel(a.cfg.Log.Level)
	var w io.Writer = os.Stderr
	if a.cfg.Log.File != "" {
		rw := logging.RotatingWriter(a.cfg.LogFile())
		a.logFile = rw
		w = io.MultiWriter(os.Stderr, rw)
	}
	slog.SetDefault(logging.Logger(w, a.cfg.Log.JSON, level))
	if !ok {
		slog.WarnContext(ctx, "Invalid log level, defaulting to INFO", "level", a.cfg.Log.Level)
	}
	return nil
}

// open starts a frame session with the configured cache and color rules
func (a *app) open(path string) (*reader.Session, error) {
	return reader.Open(path,
		reader.WithLUTCache(a.cfg.LUTCache()),
		reader.WithKeepRGBForLossyJPEG(a.cfg.Render.KeepRGBForLossyJPEG),
	)
}

// pathArg takes the file from --file or the first argument
func pathArg(cmd *cobra.Command, args []string) (string, error) {
	path, _ := cmd.Flags().GetString("file")
	if path == "" && len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return "", fmt.Errorf("file path is required. Use --file flag or provide as argument")
	}
	return path, nil
}

func printCommandTree(cmd *cobra.Command, indent int) {
	fmt.Println(strings.Repeat("\t", indent), cmd.Use+":", cmd.Short)
	for _, subCmd := range cmd.Commands() {
		printCommandTree(subCmd, indent+1)
	}
}

func NewVersionCmd(ctx context.Context, gitsha string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "git sha for this build",
		Long:  "git sha for this build",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), gitsha)
		},
	}
	return cmd
}
