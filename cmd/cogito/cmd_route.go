package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var routeJSON bool

var routeCmd = &cobra.Command{
	Use:   "route <request...>",
	Short: "Classify a request and print the routing verdict",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close(cmd.Context())

		text := strings.Join(args, " ")
		res := s.Route(text, nil)

		if routeJSON {
			return json.NewEncoder(os.Stdout).Encode(res)
		}

		fmt.Printf("system:     %d\n", res.System)
		fmt.Printf("score:      %.2f (threshold %.2f)\n", res.Score, res.Threshold)
		fmt.Printf("confidence: %.2f\n", res.Confidence)
		if len(res.Domains) > 0 {
			fmt.Printf("domains:    %s\n", strings.Join(res.Domains, ", "))
		}
		fmt.Printf("factors:    steps=%.2f domains=%.2f uncertainty=%.2f risk=%.2f novelty=%.2f\n",
			res.Factors.Steps, res.Factors.Domains, res.Factors.Uncertainty, res.Factors.Risk, res.Factors.Novelty)
		return nil
	},
}

func init() {
	routeCmd.Flags().BoolVar(&routeJSON, "json", false, "emit JSON")
}
