// Package telemetry wires structured logging and the metrics registry
// shared by every session-layer component: a zap.Logger for structured
// logs, a prometheus.Registry for metrics, and console-art helpers for
// operator-facing CLI output.
package telemetry

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ANSI color codes for the console banner and section headers.
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorCyan   = "\033[36m"
)

// NewLogger builds a zap.Logger. development selects a human-readable
// console encoder; production selects JSON, suited to being scraped by a
// log pipeline rather than read on a terminal.
func NewLogger(development bool, level zapcore.Level) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}

// Section prints a section header to stdout, for operator-facing CLI
// output alongside the structured zap logs.
func Section(title string) {
	border := "═══════════════════════════════════════════════════════════"
	fmt.Printf("\n%s╔%s╗%s\n", colorCyan, border, colorReset)
	fmt.Printf("%s║%s %-57s %s║%s\n", colorCyan, colorReset, title, colorCyan, colorReset)
	fmt.Printf("%s╚%s╝%s\n\n", colorCyan, border, colorReset)
}

// Banner prints the application banner.
func Banner(title, version string) {
	banner := `
╔═══════════════════════════════════════════════════════════╗
║                                                           ║
║   ██████╗ ███████╗ ██████╗ ██╗ ██████╗ ███╗   ██╗         ║
║   ██╔══██╗██╔════╝██╔════╝ ██║██╔═══██╗████╗  ██║         ║
║   ██████╔╝█████╗  ██║  ███╗██║██║   ██║██╔██╗ ██║         ║
║   ██╔══██╗██╔══╝  ██║   ██║██║██║   ██║██║╚██╗██║         ║
║   ██║  ██║███████╗╚██████╔╝██║╚██████╔╝██║ ╚████║         ║
║   ╚═╝  ╚═╝╚══════╝ ╚═════╝ ╚═╝ ╚═════╝ ╚═╝  ╚═══╝         ║
║                                                           ║
║              %s%-37s%s║
║                    %sVersion %-7s%s                      ║
║                                                           ║
╚═══════════════════════════════════════════════════════════╝
`
	fmt.Printf(banner, colorCyan, title, colorReset, colorGreen, version, colorReset)
}

// NewRegistry builds a prometheus registry pre-populated with the
// standard process and Go runtime collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return reg
}

// MustExit logs a fatal message and exits 1 if err is non-nil.
func MustExit(log *zap.Logger, err error, msg string) {
	if err == nil {
		return
	}
	log.Error(msg, zap.Error(err))
	os.Exit(1)
}
