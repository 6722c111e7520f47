package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/metaverse-go/region-session/internal/config"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the configuration resolved from the environment",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fmt.Printf("region:        %s:%d\n", cfg.RegionHost, cfg.RegionPort)
	fmt.Printf("circuit_code:  %d\n", cfg.CircuitCode)
	fmt.Printf("agent_id:      %s\n", cfg.AgentID)
	fmt.Printf("session_id:    %s\n", cfg.SessionID)
	fmt.Printf("server_bake:   %v (%s)\n", cfg.ServerSideBaking, cfg.UpdateAvatarAppearanceURL)
	fmt.Printf("log_level:     %s (dev=%v)\n", cfg.LogLevel, cfg.LogDevMode)
	fmt.Printf("metrics_addr:  %s\n", cfg.MetricsAddr)
	fmt.Printf("sweep:         every %ds, stale after %ds\n", cfg.DisconnectSweepIntervalSeconds, cfg.DisconnectSweepStaleSeconds)
	return nil
}
