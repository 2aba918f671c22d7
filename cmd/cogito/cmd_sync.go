package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncNow bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Exchange learned weights with the swarm aggregator",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close(cmd.Context())

		res, err := s.Sync(cmd.Context(), syncNow)
		if err != nil {
			return err
		}
		if res.Status == "" {
			fmt.Println("skipped: not due yet")
			return nil
		}
		fmt.Printf("status: %s\n", res.Status)
		if res.Checksum != "" {
			fmt.Printf("checksum: %s\n", res.Checksum)
		}
		if res.Queued > 0 {
			fmt.Printf("queued packets: %d\n", res.Queued)
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncNow, "now", false, "ignore the schedule")
}
