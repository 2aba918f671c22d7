package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"cogito/internal/privacy"
)

var scrubCategories []string

var scrubCmd = &cobra.Command{
	Use:   "scrub [text...]",
	Short: "Redact sensitive values from text (reads stdin when no args)",
	RunE: func(cmd *cobra.Command, args []string) error {
		var text string
		if len(args) > 0 {
			text = strings.Join(args, " ")
		} else {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return err
			}
			text = string(data)
		}

		scrubber := privacy.NewScrubber()
		if len(scrubCategories) > 0 {
			scrubber = privacy.NewScopedScrubber(scrubCategories...)
		}

		res := scrubber.Scrub(text, nil)
		fmt.Print(res.Scrubbed)
		if !strings.HasSuffix(res.Scrubbed, "\n") {
			fmt.Println()
		}
		if verbose {
			for _, r := range res.Redactions {
				log.Sugar().Debugf("redacted %s/%s at %v", r.Category, r.Label, r.Span)
			}
		}
		return nil
	},
}

func init() {
	scrubCmd.Flags().StringSliceVar(&scrubCategories, "categories", nil, "restrict to rule categories")
}
