package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/clprof/internal/server"
	"github.com/cwbudde/clprof/internal/store"
)

var (
	serveAddr    string
	serveDataDir string
	serveMemory  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts the HTTP API that accepts uploaded traces, computes their profiling
sessions and serves summaries, exports and Prometheus metrics. Sessions are
persisted to the data directory unless --memory is set.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "", "Report storage directory (default from config)")
	serveCmd.Flags().BoolVar(&serveMemory, "memory", false, "Keep sessions in memory only")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	c := currentConfig()
	addr := c.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	var st store.Store
	if !serveMemory {
		fsStore, err := store.NewFSStore(dataDir(serveDataDir))
		if err != nil {
			return fmt.Errorf("failed to create report store: %w", err)
		}
		st = fsStore
	}

	srv := server.NewServer(addr, st,
		server.WithExportOptions(c.ExportOptions()),
		server.WithSummarySorts(c.AggSort(), c.OverlapSort()),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
