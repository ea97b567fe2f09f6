package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/sportcut/sportcut-agent/internal/api"
	"github.com/sportcut/sportcut-agent/internal/config"
	"github.com/sportcut/sportcut-agent/internal/logging"
	"github.com/sportcut/sportcut-agent/internal/pipeline"
	"github.com/sportcut/sportcut-agent/internal/playback"
	"github.com/sportcut/sportcut-agent/internal/ui"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "sportcut-agent",
		Short:         "Local highlight editor for match videos",
		SilenceUsage:  true,
		SilenceErrors: true,
		// Serving is the default.
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	root.AddCommand(newServeCmd(&envFile))
	root.AddCommand(newIngestCmd(&envFile))
	root.AddCommand(newHistoryCmd(&envFile))
	root.AddCommand(newVersionCmd())
	return root
}

func newServeCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the loopback API and the system tray",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe(*envFile)
		},
	}
}

func runServe(envFile string) error {
	startTime := time.Now()

	a, err := loadApp(envFile)
	if err != nil {
		return err
	}
	defer a.close()
	logger := a.logger

	authToken, err := a.authToken(context.Background())
	if err != nil {
		return err
	}
	logger.Info("loopback API token ready", "token", logging.SanitizeToken(authToken))

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════════════════════════╗")
	fmt.Printf("║  SPORTCUT AGENT v%-61s ║\n", config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-49d║\n", a.cfg.Port())
	fmt.Printf("║  Auth Token: %-65s ║\n", authToken)
	fmt.Println("╚═══════════════════════════════════════════════════════════════════════════════╝")
	fmt.Println()

	apiServer := api.NewServer(api.ServerConfig{
		Port:      a.cfg.Port(),
		Editor:    a.editor,
		Tokens:    a.journal,
		Journal:   a.journal,
		Metrics:   a.metrics,
		Video:     playback.NewServer(logging.WithComponent(logger, "playback")),
		Logger:    logging.WithComponent(logger, "api"),
		StartTime: startTime,
		Version:   config.Version,
		Offline:   a.offline,
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- apiServer.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	quitCh := make(chan struct{})
	quit := func() {
		select {
		case <-quitCh:
		default:
			close(quitCh)
		}
	}

	if a.cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Source: a.editor,
			APIURL: fmt.Sprintf("http://127.0.0.1:%d", a.cfg.Port()),
			Logger: logging.WithComponent(logger, "tray"),
			OnSave: func() error {
				ctx, cancel := context.WithTimeout(context.Background(), a.cfg.RequestTimeout())
				defer cancel()
				return a.editor.Save(ctx)
			},
			OnQuit: quit,
		})
		a.setOnChange(tray.Refresh)
		go tray.Run()
	}

	var runErr error
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case <-quitCh:
	case runErr = <-serverErr:
		if runErr != nil {
			logger.Error("HTTP server error", "error", runErr)
		}
	}

	logger.Info("initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return runErr
}

func newIngestCmd(envFile *string) *cobra.Command {
	var edl bool

	cmd := &cobra.Command{
		Use:   "ingest <video>",
		Short: "Upload a video, wait for highlight detection and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*envFile)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.editor.SelectFile(args[0]); err != nil {
				return err
			}
			a.editor.Wait()

			snap := a.editor.Snapshot()
			if snap.Pipeline.Stage != pipeline.Done {
				return fmt.Errorf("ingestion failed: %s", snap.Pipeline.Err)
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "file id: %s (duplicate: %v)\n", snap.Session.FileID, snap.Session.Duplicate)
			for _, c := range snap.Categories {
				_, _ = fmt.Fprintf(out, "  %-14s %d\n", c.Category, c.Count)
			}
			_, _ = fmt.Fprintf(out, "  %-14s %d\n", "custom", len(snap.Custom))

			if !edl {
				return nil
			}
			for _, c := range snap.Categories {
				for _, item := range c.Items {
					if _, err := a.editor.ToggleSelection(item.Key()); err != nil {
						return err
					}
				}
			}
			res, err := a.editor.ExportEDL(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "cut list: %s (%d ranges, %s)\n", res.Path, res.RangeCount, humanize.IBytes(uint64(res.Size)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&edl, "edl", false, "write a cut list of the first page of every category")
	return cmd
}

func newHistoryCmd(envFile *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent ingestions and exports",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(*envFile)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			runs, err := a.journal.Runs(ctx, limit)
			if err != nil {
				return err
			}
			exports, err := a.journal.Exports(ctx, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 && len(exports) == 0 {
				_, _ = fmt.Fprintln(out, "no history")
				return nil
			}
			for _, r := range runs {
				_, _ = fmt.Fprintf(out, "run    %s  %-9s %-20s %s (%s)\n",
					humanize.Time(r.StartedAt), r.Status, r.Stage, r.Filename, humanize.IBytes(uint64(r.SizeBytes)))
			}
			for _, e := range exports {
				_, _ = fmt.Fprintf(out, "export %s  %-9s %-5s %s\n", humanize.Time(e.CreatedAt), e.Status, e.Kind, e.Path)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of entries of each kind")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "sportcut-agent %s (commit %s, built %s)\n",
				config.Version, config.GitCommit, config.BuildTime)
		},
	}
}
