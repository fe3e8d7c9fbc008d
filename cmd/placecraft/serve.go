package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"placecraft/internal/logger"
	"placecraft/internal/mcp"
	"placecraft/internal/resolver"
	"placecraft/internal/store"
	"placecraft/internal/tracker"
)

func serveCmd() *cobra.Command {
	var trackerAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(trackerAddr)
		},
	}
	cmd.Flags().StringVar(&trackerAddr, "tracker", "", "Address for the live visit websocket feed (overrides tracker.addr)")
	return cmd
}

func runServe(trackerAddr string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	proj, err := loadProject()
	if err != nil {
		return err
	}
	// stdout carries the MCP protocol.
	logger.SetOutput(os.Stderr)

	db, err := openDB(ctx, proj.cfg)
	if err != nil {
		return err
	}
	defer db.Close(context.Background())

	prof, err := proj.loadSession(ctx, os.Stderr, db)
	if err != nil {
		return err
	}
	defer prof.Unload()

	detachRecorder := store.RecordVisits(context.Background(), db, nil)
	defer detachRecorder()

	if trackerAddr == "" {
		trackerAddr = proj.cfg.Tracker.Addr
	}
	if trackerAddr != "" {
		hub := tracker.NewHub()
		detachHub := hub.Attach()
		defer detachHub()
		defer hub.Close()

		mux := http.NewServeMux()
		mux.Handle("/visits", hub.Handler())
		srv := &http.Server{Addr: trackerAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			logger.Log.WithField("addr", trackerAddr).Info("tracker listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Log.WithError(err).Error("tracker server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	server := mcp.NewServer(proj.catalog, prof, resolver.New(proj.registry), db, buildVersion())
	return server.Run(ctx, &sdk.StdioTransport{})
}
