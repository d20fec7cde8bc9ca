package cmd

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"os"
	"strings"

	"github.com/jpfielding/dcmimage.go/pkg/dicom"
	"github.com/jpfielding/dcmimage.go/pkg/dicom/sdicom"
	"github.com/spf13/cobra"
)

// NewDumpCmd prints the attributes of a file, stdin or URL
func NewDumpCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "DICOM attribute dump",
		Long:  "Prints the attributes of a DICOM file as text or JSON. Pixel data is summarized by its byte regions.",
		RunE: func(cmd *cobra.Command, args []string) error {
			uri, _ := cmd.Flags().GetString("uri")
			if uri == "" && len(args) > 0 {
				uri = args[0]
			}
			uri = strings.TrimPrefix(uri, "file://")

			var ds *dicom.Dataset
			var err error
			switch parser, _ := cmd.Flags().GetString("parser"); parser {
			case "suyashkumar":
				ds, err = sdicom.ParseFile(uri)
			case "native":
				ds, err = dumpNative(ctx, cmd, uri)
			default:
				return fmt.Errorf("unknown parser %q (native|suyashkumar)", parser)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format, _ := cmd.Flags().GetString("format"); format {
			case "text":
				fmt.Fprintln(out, ds)
			default:
				j, err := json.Marshal(ds)
				if err != nil {
					return fmt.Errorf("encoding json: %w", err)
				}
				out.Write(j)
			}
			return nil
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("uri", "u", "", "DICOM file path, URL or - for stdin")
	pf.StringP("format", "f", "json", "output format (text|json)")
	pf.String("parser", "native", "attribute parser (native|suyashkumar)")
	pf.Bool("verbose", false, "dump the HTTP exchange to stderr")
	pf.Bool("insecure", false, "skip TLS verification for https URLs")
	return cmd
}

func dumpNative(ctx context.Context, cmd *cobra.Command, uri string) (*dicom.Dataset, error) {
	var in io.Reader
	switch {
	case uri == "":
		return nil, fmt.Errorf("uri is required")
	case uri == "-":
		in = os.Stdin
	case strings.HasPrefix(uri, "http"):
		insecure, _ := cmd.Flags().GetBool("insecure")
		cl := &http.Client{
			Transport: &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: insecure}},
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		resp, err := cl.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to download: %w", err)
		}
		defer resp.Body.Close()
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			reqDump, _ := httputil.DumpRequest(req, true)
			os.Stderr.Write(reqDump)
			resDump, _ := httputil.DumpResponse(resp, false)
			os.Stderr.Write(resDump)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("download %s: %s", uri, resp.Status)
		}
		in = resp.Body
	default:
		f, err := os.Open(uri)
		if err != nil {
			return nil, fmt.Errorf("failed to open file: %w", err)
		}
		defer f.Close()
		in = f
	}
	ds, err := dicom.ParseWithOptions(in, dicom.ReadOptions{SkipPixelBytes: true})
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return ds, nil
}
