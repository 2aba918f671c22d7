package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cogito/internal/sandbox"
)

var sandboxCmd = &cobra.Command{
	Use:   "sandbox",
	Short: "Sandbox safety gate utilities",
}

var sandboxCheckCmd = &cobra.Command{
	Use:   "check <command...>",
	Short: "Check a command against the deny list",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		verdict := sandbox.CheckCommandSafety(strings.Join(args, " "), nil)
		if verdict.Safe {
			fmt.Println("safe")
			return nil
		}
		fmt.Printf("blocked: %s\n", verdict.BlockedBy)
		// Non-zero exit so hook scripts can gate on it.
		cmd.SilenceUsage = true
		return fmt.Errorf("command blocked by safety rule")
	},
}

func init() {
	sandboxCmd.AddCommand(sandboxCheckCmd)
}
