package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/devello/devello-studios/internal/action"
	"github.com/devello/devello-studios/internal/apimodel"
	"github.com/devello/devello-studios/internal/cli"
	"github.com/devello/devello-studios/internal/client"
	"github.com/devello/devello-studios/internal/imageprep"
	"github.com/devello/devello-studios/internal/resolve"
)

var (
	styleFlag  string
	xFlag      float64
	yFlag      float64
	promptFlag string
)

var lightingCmd = &cobra.Command{
	Use:   "lighting <image-file|image-url>",
	Short: "Relight a photo with a style preset",
	Long: "Relight a photo. Styles: " + action.StyleNames() + `.
The first is the default. Short names such as "evening" are accepted.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		style, known := action.ResolveStyle(styleFlag)
		if !known {
			log.Warn().Str("style", styleFlag).Str("using", string(style)).Msg("Unknown lighting style, using default")
		}
		img := loadImage(args[0])
		req, err := action.NewLighting(img, style)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid request")
		}
		runEdit(req)
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <image-file|image-url>",
	Short: "Apply a prompt-driven edit at a point in the photo",
	Long: `Apply an edit at the normalized point (--x, --y), where 0,0 is the top-left
corner and 1,1 the bottom-right. Without --prompt the prompt is read from stdin.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		prompt := promptFlag
		if strings.TrimSpace(prompt) == "" {
			prompt = cli.PromptForLine(os.Stdin, os.Stderr, "Edit prompt", "")
		}
		img := loadImage(args[0])
		req, err := action.NewHotspotEdit(img, apimodel.Hotspot{X: xFlag, Y: yFlag}, prompt)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid request")
		}
		runEdit(req)
	},
}

var jobCmd = &cobra.Command{
	Use:   "job <jobId>",
	Short: "Follow an existing job until it finishes",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c := cli.InitClient(apiURLFlag, tokenFlag)
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		res, err := newResolver(c).Resolve(ctx, &apimodel.ActionResponse{
			OK:     true,
			Status: apimodel.StatusProcessing,
			JobID:  args[0],
		})
		if err != nil {
			cli.HandleResolveError(err)
		}
		finish(ctx, res)
	},
}

func init() {
	lightingCmd.Flags().StringVarP(&styleFlag, "style", "s", string(action.DefaultStyle), "Lighting style")
	editCmd.Flags().Float64Var(&xFlag, "x", 0.5, "Horizontal position, 0 (left) to 1 (right)")
	editCmd.Flags().Float64Var(&yFlag, "y", 0.5, "Vertical position, 0 (top) to 1 (bottom)")
	editCmd.Flags().StringVarP(&promptFlag, "prompt", "p", "", "What to change at the point")
}

// loadImage turns a CLI argument into an ImageRef: URLs pass through, files
// are prepared and base64 encoded.
func loadImage(arg string) action.ImageRef {
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
		return action.FromURL(arg)
	}
	path := cli.ValidateAndResolveFile(arg)
	res, err := imageprep.PrepareFile(path, imageprep.DefaultOptions)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Failed to prepare image")
	}
	if !res.Fits {
		log.Warn().Int("bytes", len(res.JPEG)).Msg("Image is still above the upload budget at minimum quality")
	}
	return action.FromBase64(res.Base64())
}

func newResolver(c *client.Client) *resolve.Resolver {
	opts := []resolve.Option{
		resolve.WithInterval(time.Duration(intervalFlag) * time.Second),
		resolve.WithMaxAttempts(maxAttemptsFlag),
	}
	if !quietFlag {
		opts = append(opts, resolve.WithObserver(cli.ProgressObserver(os.Stderr, time.Now())))
	}
	return resolve.New(c, opts...)
}

func runEdit(req action.EditRequest) {
	c := cli.InitClient(apiURLFlag, tokenFlag)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := newResolver(c).Run(ctx, c, req)
	if err != nil {
		cli.HandleResolveError(err)
	}
	finish(ctx, res)
}

// finish prints or saves the result.
func finish(ctx context.Context, res *resolve.Result) {
	if outputFlag == "" {
		printRef(os.Stdout, res.OutputURL)
		return
	}
	hc := &http.Client{Timeout: 60 * time.Second}
	if err := cli.WriteOutput(ctx, hc, res.OutputURL, outputFlag); err != nil {
		log.Fatal().Err(err).Msg("Failed to save output")
	}
}

// printRef prints URLs in full and abbreviates inline data URLs.
func printRef(w io.Writer, ref string) {
	if strings.HasPrefix(ref, "data:") {
		header, _, _ := strings.Cut(ref, ",")
		fmt.Fprintf(w, "%s,... (%d bytes; use --output to save)\n", header, len(ref))
		return
	}
	fmt.Fprintln(w, ref)
}
