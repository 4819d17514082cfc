package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"opsplan/internal/ics"
	"opsplan/internal/planner"
)

type exportOptions struct {
	out  string
	name string
}

func addExport(topLevel *cobra.Command, ro *rootOptions) {
	eo := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Load the calendar once and write it as iCalendar.",
		Example: `
opsplan export > opsflux.ics
opsplan export --out /srv/www/opsflux.ics
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := ro.newStore().Refresh(cmd.Context())
			if err != nil {
				return err
			}

			routes := planner.Routes{Base: ro.cfg.AppBaseURL}
			body := ics.Export(snap.Events, ics.ExportOptions{
				Name: eo.name,
				Now:  time.Now(),
				Link: routes.EventLink,
			})

			if eo.out == "" {
				_, err = cmd.OutOrStdout().Write([]byte(body))
				return err
			}
			return os.WriteFile(eo.out, []byte(body), 0o644)
		},
	}
	cmd.Flags().StringVar(&eo.out, "out", "", "Write to this file instead of stdout")
	cmd.Flags().StringVar(&eo.name, "name", "OpsFlux", "Calendar name (X-WR-CALNAME)")

	topLevel.AddCommand(cmd)
}
