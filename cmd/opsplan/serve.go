package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"opsplan/internal/capture"
	appLog "opsplan/internal/log"
	"opsplan/internal/scheduler"
	"opsplan/internal/web"
)

type serveOptions struct {
	listen    string
	noPreload bool
}

func addServe(topLevel *cobra.Command, ro *rootOptions) {
	so := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the calendar page and API, refreshing data on the configured schedule.",
		Example: `
opsplan serve
opsplan serve --listen 0.0.0.0:8080 --debug
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if so.listen != "" {
				ro.cfg.Listen = so.listen
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, ro, so)
		},
	}
	cmd.Flags().StringVar(&so.listen, "listen", "", "HTTP listen address (overrides config if set)")
	cmd.Flags().BoolVar(&so.noPreload, "no-preload", false, "Do not load calendar data before the first request")

	topLevel.AddCommand(cmd)
}

func runServe(ctx context.Context, ro *rootOptions, so *serveOptions) error {
	cfg := ro.cfg
	appLog.Info("opsplan starting", "version", version, "listen", cfg.Listen)

	st := ro.newStore()
	if !so.noPreload {
		// A failed preload is not fatal; the page shows the retry message.
		if _, err := st.Refresh(ctx); err != nil {
			appLog.Error("initial load failed", err)
		}
	}

	sched := scheduler.New(ro.location())
	if err := sched.Add("refresh", cfg.RefreshCron, func(ctx context.Context) error {
		st.Invalidate()
		_, err := st.Get(ctx)
		return err
	}); err != nil {
		return err
	}
	if cfg.CaptureCron != "" {
		opts := ro.captureFor(ro.calendarURL("week"), cfg.PreviewPath)
		if err := sched.Add("capture", cfg.CaptureCron, func(ctx context.Context) error {
			return capture.CalendarPNG(ctx, opts)
		}); err != nil {
			return err
		}
	}

	srv := web.NewServer(cfg, st)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})
	g.Go(func() error {
		sched.Run(gctx)
		return nil
	})

	err := g.Wait()
	appLog.Info("opsplan exiting")
	return err
}

func (ro *rootOptions) captureFor(url, out string) capture.Options {
	opts := capture.Options{URL: url, OutputPath: out}
	if ba := ro.cfg.BasicAuth; ba != nil {
		opts.Username, opts.Password = ba.Username, ba.Password
	}
	return opts
}
