package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nao1215/irreview/internal/config"
	irlog "github.com/nao1215/irreview/internal/log"
	"github.com/nao1215/irreview/internal/model"
	"github.com/nao1215/irreview/internal/pipeline"
	"github.com/nao1215/irreview/internal/report"
)

// NewConvertCmd creates the convert command.
func NewConvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert <pdf>",
		Short: "Convert an IR disclosure PDF into a citation-linked review",
		Long: `Convert renders every page of the PDF, extracts its text, reads the common
fields (company, period, accounting standard, key figures) and runs the
KPI, heading frequency and risk analyses. The result is written under the
output directory:

  source.pdf                 copy of the input
  images/pNNN.png            one image per page
  extracted/pages.jsonl      page text, one JSON object per line
  extracted/common.json      common fields with page citations
  extracted/analyses.json    findings per module with page citations
  outputs/review.md          the review
  logs/run.json              what happened during the run

A field that cannot be found is reported as null. This is not an error.

Examples:
  # Convert a document
  irreview convert q1.pdf -o out/q1

  # OCR pages without a text layer and export a workbook
  irreview convert --ocr --xlsx q1.pdf -o out/q1

  # Also write an analyst-style article with OpenAI
  OPENAI_API_KEY=... irreview convert --enhanced --provider openai q1.pdf -o out/q1`,
		Args: cobra.ExactArgs(1),
		RunE: runConvertCmd,
	}

	cmd.Flags().StringP("output", "o", "", "Output directory (required)")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .irreview in current or home directory)")

	cmd.Flags().Int("dpi", config.DefaultDPI, "Page rendering resolution")
	cmd.Flags().Int("top-n", config.DefaultHeadingTopN, "Number of headings reported by the heading frequency module")
	cmd.Flags().Int("workers", 0, "Pages processed concurrently (default: number of CPUs)")
	cmd.Flags().Bool("ocr", false, "OCR pages without a text layer (requires tesseract)")
	cmd.Flags().String("ocr-lang", config.DefaultOCRLanguage, "tesseract language set")
	cmd.Flags().StringSlice("risk-term", nil, "Extra risk term (repeatable)")
	cmd.Flags().StringSlice("kpi-label", nil, "Extra KPI label (repeatable)")

	cmd.Flags().Bool("xlsx", false, "Also write outputs/review.xlsx")
	cmd.Flags().Bool("chart", false, "Add a pie chart of findings per module to the review")
	cmd.Flags().Bool("no-history", false, "Do not record the run in the history database")

	cmd.Flags().Bool("enhanced", false, "Also generate outputs/article.md with an LLM provider")
	cmd.Flags().String("provider", config.DefaultProvider, "Enhanced mode provider: mock or openai")
	cmd.Flags().String("model", "", "Chat model for the openai provider (default: $OPENAI_MODEL or gpt-4o)")

	return cmd
}

func runConvertCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConvertConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd, cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runConvert(ctx, cfg, logger, cmd.OutOrStdout())
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

func newLogger(cmd *cobra.Command, verbose bool) *slog.Logger {
	jsonLog, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		jsonLog, _ = cmd.Root().PersistentFlags().GetBool("log-json") //nolint:errcheck // absent flag means text logs
	}
	if jsonLog {
		return irlog.NewSecureJSONLogger(cmd.ErrOrStderr(), verbose)
	}
	return irlog.NewSecureLogger(cmd.ErrOrStderr(), verbose)
}

// buildConvertConfig layers defaults, the configuration file and flags.
// Only flags given on the command line override the file.
func buildConvertConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)
	if len(args) > 0 {
		cfg.InputPath = args[0]
	}

	var err error
	if cfg.OutputDir, err = cmd.Flags().GetString("output"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = cmd.Flags().GetString("config"); err != nil {
		return nil, err
	}

	explicitConfigPath := cfg.ConfigFilePath != ""
	if configPath := config.FindConfigFile(cfg.ConfigFilePath); configPath != "" {
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		file.Apply(cfg)
	} else if explicitConfigPath {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	flags := cmd.Flags()
	ints := []struct {
		name string
		dst  *int
	}{
		{"dpi", &cfg.DPI},
		{"top-n", &cfg.HeadingTopN},
		{"workers", &cfg.Workers},
	}
	for _, f := range ints {
		if !flags.Changed(f.name) {
			continue
		}
		if *f.dst, err = flags.GetInt(f.name); err != nil {
			return nil, err
		}
	}

	bools := []struct {
		name string
		dst  *bool
	}{
		{"ocr", &cfg.EnableOCR},
		{"xlsx", &cfg.ExportXLSX},
		{"chart", &cfg.Chart},
		{"enhanced", &cfg.Enhanced},
	}
	for _, f := range bools {
		if !flags.Changed(f.name) {
			continue
		}
		if *f.dst, err = flags.GetBool(f.name); err != nil {
			return nil, err
		}
	}
	if flags.Changed("no-history") {
		noHistory, err := flags.GetBool("no-history")
		if err != nil {
			return nil, err
		}
		cfg.SaveHistory = !noHistory
	}

	strs := []struct {
		name string
		dst  *string
	}{
		{"ocr-lang", &cfg.OCRLanguage},
		{"provider", &cfg.Provider},
		{"model", &cfg.Model},
	}
	for _, f := range strs {
		if !flags.Changed(f.name) {
			continue
		}
		if *f.dst, err = flags.GetString(f.name); err != nil {
			return nil, err
		}
	}

	riskTerms, err := flags.GetStringSlice("risk-term")
	if err != nil {
		return nil, err
	}
	cfg.ExtraRiskTerms = append(cfg.ExtraRiskTerms, riskTerms...)

	kpiLabels, err := flags.GetStringSlice("kpi-label")
	if err != nil {
		return nil, err
	}
	cfg.ExtraKPILabels = append(cfg.ExtraKPILabels, kpiLabels...)

	return cfg, nil
}

// runConvert converts one document and prints a summary to out.
func runConvert(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer, configOpts ...pipeline.DefaultPipelineOption) error {
	configOpts = append([]pipeline.DefaultPipelineOption{pipeline.WithPipelineLogger(logger)}, configOpts...)
	p, steps, err := pipeline.DefaultPipeline(cfg, []pipeline.Option{pipeline.WithLogger(logger)}, configOpts...)
	if err != nil {
		return err
	}

	run := model.NewRun(uuid.NewString(), cfg.InputPath, cfg.OutputDir, time.Now())
	logger.Info("starting conversion",
		"run_id", run.Meta.RunID,
		"input", cfg.InputPath,
		"output", cfg.OutputDir,
		"enhanced", cfg.Enhanced,
	)

	fmt.Fprintf(out, "Converting %s...\n", cfg.InputPath)
	if err := p.Execute(ctx, run); err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("conversion cancelled: %w", err)
		}
		return fmt.Errorf("conversion failed (see %s): %w", run.Layout.RunJSON(), err)
	}
	elapsed := run.Meta.FinishedAt.Sub(run.Meta.StartedAt)
	fmt.Fprintf(out, "Conversion completed in %s\n\n", elapsed.Round(time.Millisecond))

	writer := report.NewSimpleWriter(out, report.WithVerbose(cfg.Verbose))
	if _, err := writer.Write(report.NewReview(run)); err != nil {
		return err
	}

	fmt.Fprintf(out, "Review:  %s\n", run.Layout.ReviewMarkdown())
	if o := steps.Assemble.Output; o != nil && o.XLSX != "" {
		fmt.Fprintf(out, "Sheet:   %s\n", o.XLSX)
	}
	if e := run.Meta.Enhanced; e != nil {
		if e.Status == model.EnhancedOK {
			fmt.Fprintf(out, "Article: %s\n", run.Layout.ArticleMD())
		} else {
			fmt.Fprintf(out, "Article: not generated (%s)\n", e.Error)
		}
	}
	fmt.Fprintf(out, "Run log: %s\n", run.Layout.RunJSON())
	return nil
}
