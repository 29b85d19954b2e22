package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gtcal/internal/ics"
	appLog "gtcal/internal/log"
	"gtcal/internal/refresh"
	"gtcal/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server and the scheduled cache warmer",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		appLog.Info("gtcal starting", "version", version)

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		if a.cfg.RefreshCron != "" {
			w := refresh.NewWarmer(a.service, a.cfg.Landing.YearsBack, a.cfg.Landing.YearsAhead)
			sched, err := w.Start(ctx, a.cfg.RefreshCron)
			if err != nil {
				appLog.Error("invalid refresh schedule; cache warming disabled", err, "schedule", a.cfg.RefreshCron)
			} else {
				defer func() { <-sched.Stop().Done() }()
			}
		}

		srv := web.NewServer(a.cfg, a.service, a.registry)
		if err := srv.ListenAndServe(ctx); err != nil {
			return err
		}
		appLog.Info("gtcal exiting")
		return nil
	},
}

var (
	renderOut    string
	renderVerify bool
)

var renderCmd = &cobra.Command{
	Use:   "render TERM",
	Short: "Render one term's calendar to stdout or a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		doc, err := a.service.Render(ctx, args[0])
		if err != nil {
			return err
		}

		if renderVerify {
			rep, err := ics.Inspect(doc.Body)
			if err != nil {
				return fmt.Errorf("verify %s: %w", doc.Filename(), err)
			}
			for _, p := range rep.Problems {
				fmt.Fprintln(cmd.ErrOrStderr(), p)
			}
			if len(rep.Problems) > 0 {
				return fmt.Errorf("verify %s: %d problem(s)", doc.Filename(), len(rep.Problems))
			}
			appLog.Info("calendar verified", "name", rep.Name, "vevents", len(rep.Events))
		}

		if renderOut == "" || renderOut == "-" {
			_, err = cmd.OutOrStdout().Write(doc.Body)
			return err
		}
		if err := os.WriteFile(renderOut, doc.Body, 0o644); err != nil {
			return err
		}
		appLog.Info("calendar written", "path", renderOut, "events", doc.Events, "source", doc.Source)
		return nil
	},
}

var warmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Render every landing page term once to fill the cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		res := refresh.NewWarmer(a.service, a.cfg.Landing.YearsBack, a.cfg.Landing.YearsAhead).Run(ctx)
		if res.Failed > 0 {
			return errors.New("one or more terms failed to render")
		}
		return nil
	},
}

func init() {
	renderCmd.Flags().StringVarP(&renderOut, "output", "o", "", "Write the calendar to this file instead of stdout")
	renderCmd.Flags().BoolVar(&renderVerify, "verify", false, "Parse the rendered calendar back and fail on malformed events")
}
