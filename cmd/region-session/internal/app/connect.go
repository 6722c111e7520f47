package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/metaverse-go/region-session/internal/config"
	"github.com/metaverse-go/region-session/internal/telemetry"
	"github.com/metaverse-go/region-session/pkg/appearance"
	"github.com/metaverse-go/region-session/pkg/capability"
	"github.com/metaverse-go/region-session/pkg/events"
	"github.com/metaverse-go/region-session/pkg/session"
	"github.com/metaverse-go/region-session/pkg/sessionmgr"
)

func newConnectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Open one region circuit and hold it open until interrupted",
		RunE:  runConnect,
	}
	return cmd
}

func runConnect(cmd *cobra.Command, _ []string) error {
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

	telemetry.Banner("region-session connect", cmd.Root().Version)

	remoteAddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", cfg.RegionHost, cfg.RegionPort))
	if err != nil {
		return fmt.Errorf("resolve region address: %w", err)
	}

	localConn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return fmt.Errorf("bind outbound udp socket: %w", err)
	}
	defer localConn.Close()

	mgr := sessionmgr.New(log, localConn)
	defer mgr.Shutdown()

	agentID, _ := uuid.Parse(cfg.AgentID)
	sessionID, _ := uuid.Parse(cfg.SessionID)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	const regionHandle = 1
	sess, err := mgr.Open(ctx, session.Config{
		RemoteAddr:   remoteAddr,
		RegionHandle: regionHandle,
		CircuitCode:  cfg.CircuitCode,
		AgentID:      agentID,
		SessionID:    sessionID,
	})
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	log.Info("region circuit established", zap.String("remote_addr", remoteAddr.String()))

	reg := telemetry.NewRegistry()
	reg.MustRegister(sess.Stats())
	if cfg.MetricsAddr != "" {
		go serveMetrics(log, cfg.MetricsAddr, reg)
	}

	go readLoop(ctx, log, localConn, mgr, regionHandle)
	go disconnectSweepLoop(ctx, mgr, cfg)

	if cfg.UpdateAvatarAppearanceURL != "" {
		startAppearancePipeline(ctx, log, cfg, sess, agentID, sessionID)
	}

	<-ctx.Done()
	log.Info("shutting down")
	return nil
}

func readLoop(ctx context.Context, log *zap.Logger, conn *net.UDPConn, mgr *sessionmgr.Manager, regionHandle uint64) {
	buf := make([]byte, 2048)
	for {
		if ctx.Err() != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		mgr.Dispatch(regionHandle, addr, data)
	}
}

func startAppearancePipeline(ctx context.Context, log *zap.Logger, cfg config.Config, sess *session.Session, agentID, sessionID uuid.UUID) {
	hub := events.NewHub()
	hub.Subscribe(appearance.TopicAppearanceSet, func(ev events.Event) {
		if set, ok := ev.Data.(appearance.AppearanceSetEvent); ok {
			log.Info("appearance set", zap.Bool("success", set.Success), zap.Error(set.Err))
		}
	})

	capClient := capability.NewClient(log, capability.Config{
		UpdateAvatarAppearanceURL: cfg.UpdateAvatarAppearanceURL,
		AgentID:                   agentID,
		SessionID:                 sessionID,
	}, nil)

	state := appearance.NewState()
	pipe := appearance.NewPipeline(state, appearance.Deps{
		Log:         log,
		ServerBake:  capClient,
		LiveObjects: alwaysPresentQuery{},
		Sender:      sess,
		Hub:         hub,
		AgentID:     agentID,
		SessionID:   sessionID,
	})
	pipe.RequestSetAppearance(ctx, appearance.RunOptions{ServerSideBaking: cfg.ServerSideBaking})
}

func disconnectSweepLoop(ctx context.Context, mgr *sessionmgr.Manager, cfg config.Config) {
	interval := time.Duration(cfg.DisconnectSweepIntervalSeconds) * time.Second
	stale := time.Duration(cfg.DisconnectSweepStaleSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			mgr.DisconnectSweep(stale)
		case <-ctx.Done():
			return
		}
	}
}

func serveMetrics(log *zap.Logger, addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	log.Info("metrics listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warn("metrics server stopped", zap.Error(err))
	}
}
