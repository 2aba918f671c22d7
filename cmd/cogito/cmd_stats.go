package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Routing and experience statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close(cmd.Context())

		archive, err := s.Archive.Stats()
		if err != nil {
			return err
		}

		if statsJSON {
			return json.NewEncoder(os.Stdout).Encode(map[string]interface{}{
				"threshold": s.Router.Threshold(),
				"archive":   archive,
			})
		}

		fmt.Printf("threshold: %.2f\n", s.Router.Threshold())
		fmt.Printf("experiences: %d (avg score %.2f)\n", archive.Total, archive.AvgScore)
		for system, st := range archive.BySystem {
			fmt.Printf("  system %d: %d handled, %.0f%% success, avg %.0fms\n",
				system, st.Total, st.SuccessRate*100, st.AvgMs)
		}
		for domain, n := range archive.ByDomain {
			fmt.Printf("  %s: %d\n", domain, n)
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "emit JSON")
}
