package main

import (
	"time"

	"github.com/spf13/cobra"

	"opsplan/internal/capture"
)

type captureOptions struct {
	url     string
	view    string
	out     string
	width   int
	height  int
	timeout time.Duration
}

func addCapture(topLevel *cobra.Command, ro *rootOptions) {
	co := &captureOptions{}

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture the running calendar page to a PNG.",
		Example: `
opsplan capture
opsplan capture --view month --out ./preview.png
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			url := co.url
			if url == "" {
				url = ro.calendarURL(co.view)
			}
			out := co.out
			if out == "" {
				out = ro.cfg.PreviewPath
			}
			opts := ro.captureFor(url, out)
			opts.Width, opts.Height, opts.Timeout = co.width, co.height, co.timeout
			return capture.CalendarPNG(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&co.url, "url", "", "Page to capture (defaults to the local /calendar)")
	cmd.Flags().StringVar(&co.view, "view", "week", "View mode when --url is not set: month, week, day or agenda")
	cmd.Flags().StringVar(&co.out, "out", "", "Output PNG path (defaults to preview_path)")
	cmd.Flags().IntVar(&co.width, "width", capture.DefaultWidth, "Viewport width in pixels")
	cmd.Flags().IntVar(&co.height, "height", capture.DefaultHeight, "Viewport height in pixels")
	cmd.Flags().DurationVar(&co.timeout, "timeout", capture.DefaultTimeoutSec*time.Second, "Capture timeout")

	topLevel.AddCommand(cmd)
}
