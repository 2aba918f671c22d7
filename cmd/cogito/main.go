// Package main implements the cogito CLI - the hook-facing surface of the
// cognitive orchestration core. Host assistants wire these commands to
// their session events: route on prompt submission, sync and stats on
// session end.
//
// Commands:
//   - cmd_route.go   - routeCmd: classify a request and print the verdict
//   - cmd_solve.go   - solveCmd: run the plan/execute/reflect loop
//   - cmd_scrub.go   - scrubCmd: redact sensitive values from text/stdin
//   - cmd_sandbox.go - sandboxCmd: check a command against the deny list
//   - cmd_sync.go    - syncCmd: upload/download swarm weights
//   - cmd_stats.go   - statsCmd: routing and experience statistics
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"cogito/internal/config"
	"cogito/internal/core"
	"cogito/internal/logging"
)

var (
	// Global flags
	verbose   bool
	workspace string

	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "cogito",
	Short: "Cognitive orchestration core for AI coding assistants",
	Long: `cogito routes requests between fast pattern recall (System 1) and a
deliberative plan/execute/reflect loop (System 2), learns from outcomes via
group-relative policy optimization, and exchanges scrubbed weights with a
federated swarm.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := zapcore.WarnLevel
		if verbose {
			level = zapcore.DebugLevel
		}
		encCfg := zap.NewDevelopmentEncoderConfig()
		enc := zapcore.NewConsoleEncoder(encCfg)
		log = zap.New(zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level))

		if workspace == "" {
			ws, err := config.FindWorkspaceRoot()
			if err != nil {
				return err
			}
			workspace = ws
		}
		return logging.Initialize(workspace)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			log.Sync()
		}
		logging.Close()
	},
}

// openSession loads config for the selected workspace and builds a session.
func openSession() (*core.Session, error) {
	cfg, err := config.Load(filepath.Join(workspace, ".cogito", "config.yaml"))
	if err != nil {
		return nil, err
	}
	if cfg.Workspace == "" {
		cfg.Workspace = workspace
	}
	return core.NewSession(cfg)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose console output")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "workspace root (default: discovered)")

	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(solveCmd)
	rootCmd.AddCommand(scrubCmd)
	rootCmd.AddCommand(sandboxCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
