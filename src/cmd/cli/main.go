package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	_ "golang.org/x/image/webp"

	"yv-capture/src/capture"
	"yv-capture/src/config"
	"yv-capture/src/dataurl"
	"yv-capture/src/runtimeinit"
	"yv-capture/src/screenshot"
	"yv-capture/src/singleinstance"
)

const (
	maxFileSizeMB = 25
	maxFileSize   = maxFileSizeMB * 1024 * 1024
)

type cliOptions struct {
	envPath    string
	jsonOutput bool
	verbose    bool
	outPath    string
	endpoint   string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(os.Args)
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"yvctl"}
	}
	opts := &cliOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "yvctl",
		Short:         "Control the capture resident and run the image pipeline offline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Configure logging BEFORE any other operations.
			if opts.verbose {
				log.SetOutput(os.Stderr)
			} else {
				log.SetOutput(io.Discard)
			}
			return nil
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.envPath, "env", "", "Path to a .env file")
	pf.BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")

	cmd.AddCommand(
		newCaptureCmd(opts),
		newSimpleCmd(opts, "clear", "Clear the stage and the stored capture", singleinstance.CmdClear),
		newSimpleCmd(opts, "status", "Print the resident's panel state", singleinstance.CmdStatus),
		newCropCmd(opts),
		newCutoutCmd(opts),
		newFetchCmd(opts),
	)
	return cmd
}

func (o *cliOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithOptions(config.LoadOptions{EnvPathOverride: o.envPath})
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func (o *cliOptions) verbosef(format string, args ...any) {
	if o.verbose {
		fmt.Fprintf(os.Stderr, "[verbose] "+format+"\n", args...)
	}
}

func newCaptureCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "capture top|bottom",
		Short:     "Start capture mode in the resident for a slot",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(capture.TargetTop), string(capture.TargetBottom)},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := capture.ParseTarget(args[0])
			if err != nil {
				return err
			}
			return opts.delegate(cmd, singleinstance.Request{Command: singleinstance.CmdCapture, Target: target})
		},
	}
}

func newSimpleCmd(opts *cliOptions, use, short, command string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.delegate(cmd, singleinstance.Request{Command: command})
		},
	}
}

func (o *cliOptions) delegate(cmd *cobra.Command, req singleinstance.Request) error {
	// Load .env so SINGLEINSTANCE_PORT_* apply to the scan
	if _, err := o.loadConfig(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	delegated, body, err := singleinstance.NewClient().Send(ctx, req)
	if !delegated {
		if err != nil {
			return err
		}
		return fmt.Errorf("no resident running")
	}
	if err != nil {
		return err
	}
	if o.jsonOutput {
		return writeJSON(cmd.OutOrStdout(), map[string]string{"command": req.Command, "reply": strings.TrimRight(body, "\n")})
	}
	fmt.Fprint(cmd.OutOrStdout(), body)
	return nil
}

// ImageResult describes an image written by crop, cutout or fetch.
type ImageResult struct {
	Source      string  `json:"source"`
	Output      string  `json:"output,omitempty"`
	ContentType string  `json:"content_type"`
	ByteLength  int     `json:"byte_length"`
	Width       int     `json:"width,omitempty"`
	Height      int     `json:"height,omitempty"`
	Timestamp   string  `json:"timestamp"`
	Duration    float64 `json:"duration_seconds"`
}

func newCropCmd(opts *cliOptions) *cobra.Command {
	var (
		file string
		rect string
		dpr  float64
	)
	cmd := &cobra.Command{
		Use:   "crop",
		Short: "Crop a CSS-pixel rect out of a viewport screenshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := parseRect(rect)
			if err != nil {
				return err
			}
			start := time.Now()
			data, err := readInput(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			if !isPNG(data) {
				return fmt.Errorf("input is not a valid PNG file (invalid magic number)")
			}
			opts.verbosef("Cropping %s at dpr %g from %d bytes", r, dpr, len(data))
			out, err := screenshot.CropDataURL(dataurl.EncodePNG(data), r, dpr)
			if err != nil {
				return err
			}
			return opts.emitImage(cmd, file, out, time.Since(start))
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Path to the screenshot PNG (use '-' for stdin)")
	cmd.Flags().StringVar(&rect, "rect", "", "Selection rect in CSS pixels: x,y,w,h")
	cmd.Flags().Float64Var(&dpr, "dpr", 1, "Device pixel ratio of the screenshot")
	cmd.Flags().StringVarP(&opts.outPath, "out", "o", "", "Output file (default stdout)")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("rect")
	return cmd
}

func newCutoutCmd(opts *cliOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "cutout",
		Short: "Send an image to the background-removal service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if opts.endpoint != "" {
				cfg.CutoutEndpoint = opts.endpoint
			}
			start := time.Now()
			data, err := readInput(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			client := runtimeinit.NewCutter(cfg)
			opts.verbosef("Posting %d bytes to %s", len(data), client.Endpoint())
			out, err := client.Cutout(cmd.Context(), dataurl.Encode(http.DetectContentType(data), data))
			if err != nil {
				return err
			}
			return opts.emitImage(cmd, file, out, time.Since(start))
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Path to the input image (use '-' for stdin)")
	cmd.Flags().StringVar(&opts.endpoint, "endpoint", "", "Cutout service base URL (overrides CUTOUT_ENDPOINT)")
	cmd.Flags().StringVarP(&opts.outPath, "out", "o", "", "Output file (default stdout)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newFetchCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch URL",
		Short: "Download an image the way the orchestrator does (no credentials)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			start := time.Now()
			res := runtimeinit.NewFetcher(cfg).Fetch(cmd.Context(), args[0])
			if !res.OK {
				return fmt.Errorf("%s", res.Error)
			}
			opts.verbosef("Fetched %d bytes of %s", res.ByteLength, res.ContentType)
			return opts.emitImage(cmd, args[0], res.DataURL, time.Since(start))
		},
	}
	cmd.Flags().StringVarP(&opts.outPath, "out", "o", "", "Output file (default stdout)")
	return cmd
}

// emitImage writes the decoded image to --out (or stdout) and, with --json,
// prints a summary instead of raw bytes on stdout.
func (o *cliOptions) emitImage(cmd *cobra.Command, source, dataURL string, elapsed time.Duration) error {
	contentType, data, err := dataurl.Decode(dataURL)
	if err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	res := ImageResult{
		Source:      source,
		Output:      o.outPath,
		ContentType: contentType,
		ByteLength:  len(data),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Duration:    elapsed.Seconds(),
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		res.Width, res.Height = cfg.Width, cfg.Height
	}

	if o.outPath != "" {
		if err := os.WriteFile(o.outPath, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", o.outPath, err)
		}
	}
	if o.jsonOutput {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	if o.outPath == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %dx%d %d bytes -> %s\n", res.ContentType, res.Width, res.Height, res.ByteLength, res.Output)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	return nil
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(io.LimitReader(stdin, maxFileSize+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", path, err)
		}
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("input file is empty")
	}
	if len(data) > maxFileSize {
		return nil, fmt.Errorf("input file exceeds maximum size of %d MB", maxFileSizeMB)
	}
	return data, nil
}

func isPNG(data []byte) bool {
	return len(data) >= 8 && bytes.Equal(data[:8], []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a})
}

// parseRect parses "x,y,w,h" in CSS pixels.
func parseRect(s string) (capture.Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return capture.Rect{}, fmt.Errorf("rect must be x,y,w,h, got %q", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return capture.Rect{}, fmt.Errorf("rect component %d: %w", i, err)
		}
		v[i] = f
	}
	r := capture.Rect{X: v[0], Y: v[1], W: v[2], H: v[3]}
	if r.Empty() {
		return capture.Rect{}, fmt.Errorf("rect must have positive width and height")
	}
	return r, nil
}
