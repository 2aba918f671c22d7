package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"cogito/internal/system2"
)

var (
	solveJSON    bool
	solveRetries int
	solveDomain  string
)

var solveCmd = &cobra.Command{
	Use:   "solve <description...>",
	Short: "Run the plan/execute/reflect loop on a task",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close(cmd.Context())

		task := system2.Task{
			ID:          uuid.NewString(),
			Description: strings.Join(args, " "),
			Domain:      solveDomain,
		}
		opts := &system2.SolveOptions{MaxRetries: solveRetries}
		if verbose {
			opts.OnPhase = func(phase string, attempt int) {
				log.Sugar().Debugf("attempt %d: %s", attempt, phase)
			}
		}

		sol, err := s.Solve(cmd.Context(), task, opts)
		if err != nil {
			return err
		}

		if solveJSON {
			return json.NewEncoder(os.Stdout).Encode(sol)
		}

		fmt.Printf("success:  %v\n", sol.Success)
		fmt.Printf("attempts: %d\n", sol.Attempts)
		fmt.Printf("duration: %s\n", sol.Duration.Round(time.Millisecond))
		if sol.TeamRecommendation != nil {
			fmt.Printf("team:     %s (%s)\n", sol.TeamRecommendation.Level, strings.Join(sol.TeamRecommendation.Teammates, ", "))
		}
		if sol.FinalResult != nil {
			for _, f := range sol.FinalResult.Findings {
				fmt.Printf("  %s: %s -> %s\n", f.StepID, f.Reason, f.Correction)
			}
		}
		return nil
	},
}

func init() {
	solveCmd.Flags().BoolVar(&solveJSON, "json", false, "emit JSON")
	solveCmd.Flags().IntVar(&solveRetries, "max-retries", 0, "override retry bound")
	solveCmd.Flags().StringVar(&solveDomain, "domain", "", "domain hint")
}
