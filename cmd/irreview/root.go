package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for irreview.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "irreview",
		Short: "Turn IR disclosure PDFs into citation-linked Markdown reviews",
		Long: `irreview converts an investor-relations disclosure PDF (earnings
summaries, results presentations, annual reports) into a Markdown review.

Every value in the review cites the page it was read from, and every page
is rendered to an image so the reader can check the source.

Use --enhanced to additionally generate an analyst-style article with an
LLM provider. The baseline review never depends on it.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	cmd.AddCommand(NewConvertCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
