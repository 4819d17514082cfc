package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"opsplan/internal/config"
	"opsplan/internal/ics"
	appLog "opsplan/internal/log"
	"opsplan/internal/opsapi"
	"opsplan/internal/store"
)

const version = "0.3.0"

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	debug      bool

	cfg *config.Config
}

// New builds the opsplan command tree.
func New() *cobra.Command {
	ro := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "opsplan",
		Short:         "OpsFlux project calendar: planner views, ICS export and wall-display capture.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return ro.load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().StringVar(&ro.configPath, "config", "/etc/opsplan/config.yaml", "Path to config file")
	cmd.PersistentFlags().BoolVar(&ro.debug, "debug", false, "Log at debug level regardless of config")

	addServe(cmd, ro)
	addCapture(cmd, ro)
	addExport(cmd, ro)
	return cmd
}

func (ro *rootOptions) load() error {
	cfg, err := config.Load(ro.configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", ro.configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := appLog.ParseLevel(cfg.LogLevel)
	if ro.debug {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)

	appLog.Info("effective config",
		"config_path", ro.configPath,
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"refresh", cfg.RefreshCron,
		"capture", cfg.CaptureCron,
		"api", appLog.RedactURL(cfg.API.BaseURL),
		"feeds", len(cfg.Feeds),
		"fetch_concurrency", cfg.FetchConcurrency,
	)
	ro.cfg = cfg
	return nil
}

func (ro *rootOptions) location() *time.Location {
	loc, err := time.LoadLocation(ro.cfg.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", ro.cfg.Timezone)
		return time.Local
	}
	return loc
}

// newStore wires the backend client and feed fetcher from config.
func (ro *rootOptions) newStore() *store.Store {
	cfg := ro.cfg
	timeout := time.Duration(cfg.API.TimeoutSeconds) * time.Second

	client := opsapi.NewClient(cfg.API.BaseURL, timeout, opsapi.WithToken(cfg.API.Token))

	feeds := make([]ics.Feed, 0, len(cfg.Feeds))
	for _, f := range cfg.Feeds {
		if f.URL == "" {
			continue
		}
		feeds = append(feeds, ics.Feed{ID: f.ID, Name: f.Name, URL: f.URL, Color: f.Color})
	}

	return store.New(store.Options{
		Backend:         client,
		Fetcher:         ics.NewFetcher(cfg.CacheDir, timeout),
		Feeds:           feeds,
		Location:        ro.location(),
		Concurrency:     cfg.FetchConcurrency,
		IncludeArchived: cfg.IncludeArchived,
	})
}

// calendarURL is the local address of the rendered calendar page.
func (ro *rootOptions) calendarURL(view string) string {
	return "http://" + ro.cfg.Listen + "/calendar?view=" + view
}
