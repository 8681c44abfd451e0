package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"docrag/internal/adapter/auth"
	"docrag/internal/api"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve queries over HTTP",
	Long: `Load or rebuild the cached vector table, then serve:

  POST /v1/query    {"query": "...", "top_k": 4, "include_chunks": true}
  GET  /v1/status   cache status
  GET  /healthz     liveness
  GET  /readyz      readiness (503 until the table is loaded)
  GET  /metrics     Prometheus metrics

The process exits if the table cannot be built at startup.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	log := GetLogger()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, GetRootDir(), log)
	if err != nil {
		return err
	}
	answerer, err := a.answerer(log)
	if err != nil {
		return err
	}

	a.manager.SetProgress(terminalProgress("Embedding", os.Stderr))
	if _, err := a.manager.Ensure(ctx); err != nil {
		return fmt.Errorf("vector table unavailable at startup: %w", err)
	}

	metrics := api.NewMetrics("docrag", a.manager)
	if a.queryCache != nil {
		metrics.RegisterQueryCache(a.queryCache)
	}
	handler := api.NewHandler(answerer, a.manager, api.HandlerOptions{
		DefaultTopK:    cfg.Retrieve.TopK,
		RetryAfterSecs: cfg.Server.RetryAfterSecs,
	}, metrics, log)
	validator := auth.FromEnv(cfg.Server.AuthTokensEnv)

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(handler, validator, metrics, log),
		ReadHeaderTimeout: seconds(cfg.Server.ReadTimeoutSecs),
		ReadTimeout:       seconds(cfg.Server.ReadTimeoutSecs),
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":   addr,
			"auth":   validator.Enabled(),
			"chunks": a.store.Len(),
		}).Info("serving")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
