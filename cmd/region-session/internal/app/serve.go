package app

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/metaverse-go/region-session/internal/config"
	"github.com/metaverse-go/region-session/internal/telemetry"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Expose the metrics/health HTTP surface without opening a region circuit",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	devLog, _ := cmd.Flags().GetBool("dev-log")
	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level := zapcore.InfoLevel
	_ = level.UnmarshalText([]byte(cfg.LogLevel))
	log, err := telemetry.NewLogger(devLog || cfg.LogDevMode, level)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()

	reg := telemetry.NewRegistry()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info("serving metrics/health", zap.String("addr", cfg.MetricsAddr))

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("shutting down")
		return srv.Close()
	}
}
