package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/mcdev12/auctioneer/go/internal/auction/catalog"
	"github.com/mcdev12/auctioneer/go/internal/auction/export"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the auction engine and its HTTP and WebSocket API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts.env)
		},
	}
}

func runServe(parent context.Context, env EnvConfig) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(env.ConfigPath)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services, err := setupServices(runCtx, env, cfg)
	if err != nil {
		return err
	}
	defer services.Close()
	services.Start(runCtx)

	server := setupServer(env.Port, services)
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("received shutdown signal")
	case err := <-errCh:
		log.Error().Err(err).Msg("HTTP server failed")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	// No timer may settle a round after the persister's final flush.
	services.Engine.Close()
	cancel()
	services.Wait()

	saved, failed := services.Persister.Counts()
	log.Info().Uint64("snapshots_saved", saved).Uint64("snapshots_failed", failed).Msg("auction service shutdown complete")
	return nil
}

func newExportCommand(opts *rootOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the saved auction history as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			store, closeStore, err := openStore(ctx, opts.env)
			if err != nil {
				return err
			}
			defer closeStore()

			snap, err := store.Load(ctx)
			if err != nil {
				return fmt.Errorf("failed to load snapshot: %w", err)
			}
			if out == "-" {
				return export.WriteCSV(cmd.OutOrStdout(), snap.History, snap.Catalog)
			}
			if out == "" {
				out = filepath.Join(opts.env.ExportDir, export.FileName(time.Now()))
			}
			if err := export.WriteFile(out, snap.History, snap.Catalog); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d records to %s\n", len(snap.History), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", `output file, "-" for stdout (default: timestamped file in EXPORT_DIR)`)
	return cmd
}

func newCheckCatalogCommand(_ *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check-catalog <file.csv>",
		Short: "Validate a catalog CSV and summarize it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			lots, err := catalog.ReadCSV(f)
			if err != nil {
				return err
			}
			if len(lots) == 0 {
				return fmt.Errorf("%s contains no lots", args[0])
			}

			roles := make(map[string]int)
			for _, l := range lots {
				roles[l.Role]++
			}
			names := make([]string, 0, len(roles))
			for r := range roles {
				names = append(names, r)
			}
			sort.Strings(names)

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%d lots\n", len(lots))
			for _, r := range names {
				label := r
				if label == "" {
					label = "(no role)"
				}
				fmt.Fprintf(w, "  %s: %d\n", label, roles[r])
			}
			return nil
		},
	}
}
