package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/nao1215/irreview/internal/config"
	"github.com/nao1215/irreview/internal/database"
	"github.com/nao1215/irreview/internal/model"
	"github.com/nao1215/irreview/internal/report"
)

const historyTimeLayout = "2006-01-02 15:04:05"

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [doc-id]",
		Short: "Show converted documents and compare runs",
		Long: `History shows the runs recorded by 'irreview convert'.

Without arguments it lists every document in the history. Documents are
identified by the hash of their content, so converting the same PDF twice
adds a second run to the same document.

With a document ID it lists the runs of that document. --diff compares the
common fields of the latest two runs:
- added: the field was null and is now found
- removed: the field was found and is now null
- changed: the value differs
- moved: the value is the same but cited on other pages

Examples:
  # List converted documents
  irreview history

  # List the runs of one document
  irreview history 3f2a9c1b07de

  # Compare the latest two runs as Markdown
  irreview history --diff --markdown 3f2a9c1b07de`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("diff", "d", false,
		"Compare the common fields of the latest two runs")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output in Markdown format (mutually exclusive with --json)")
	cmd.Flags().String("db-dir", config.XDGDataDir(), "History database directory")
	_ = cmd.Flags().MarkHidden("db-dir") //nolint:errcheck // flag is defined above

	return cmd
}

type outputFormat int

const (
	formatText outputFormat = iota
	formatJSON
	formatMarkdown
)

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOutput && markdownOutput {
		return config.ErrConflictingReportFormats
	}
	format := formatText
	switch {
	case jsonOutput:
		format = formatJSON
	case markdownOutput:
		format = formatMarkdown
	}

	diff, err := cmd.Flags().GetBool("diff")
	if err != nil {
		return err
	}
	if diff && len(args) == 0 {
		return fmt.Errorf("--diff needs a document ID (run 'irreview history' to list documents)")
	}

	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		return listDocuments(ctx, db, out, format)
	}
	if diff {
		return diffRuns(ctx, db, args[0], out, format)
	}
	return listRuns(ctx, db, args[0], out, format)
}

func writeJSON(out io.Writer, v interface{}) error {
	_, err := report.NewJSONWriter(out, report.WithPrettyPrint()).WriteValue(v)
	return err
}

func listDocuments(ctx context.Context, db *database.RunDB, out io.Writer, format outputFormat) error {
	docs, err := db.ListDocuments(ctx)
	if err != nil {
		return err
	}
	if docs == nil {
		docs = []database.DocumentSummary{}
	}

	switch format {
	case formatJSON:
		return writeJSON(out, docs)
	case formatMarkdown:
		rows := make([][]string, 0, len(docs))
		for _, d := range docs {
			rows = append(rows, []string{markdown.Code(d.DocID), d.SourceFile, strconv.Itoa(d.Runs), d.LastRun.Local().Format(historyTimeLayout)})
		}
		return markdown.NewMarkdown(out).
			H1("Converted documents").
			Table(markdown.TableSet{Header: []string{"Document", "File", "Runs", "Last run"}, Rows: rows}).
			Build()
	}

	if len(docs) == 0 {
		fmt.Fprintln(out, "No converted documents found in the history.")
		fmt.Fprintln(out, "\nUse 'irreview convert <pdf> -o <dir>' to convert a document.")
		return nil
	}
	fmt.Fprintf(out, "Converted documents (%d):\n\n", len(docs))
	fmt.Fprintf(out, "  %-12s  %-20s  %-5s  %s\n", "Document", "Last run", "Runs", "File")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 60))
	for _, d := range docs {
		fmt.Fprintf(out, "  %-12s  %-20s  %-5d  %s\n", d.DocID, d.LastRun.Local().Format(historyTimeLayout), d.Runs, d.SourceFile)
	}
	fmt.Fprintln(out, "\nUse 'irreview history <doc-id>' to see the runs of a document.")
	return nil
}

// historyEntry is one run in the history listing.
type historyEntry struct {
	RunID         string         `json:"run_id"`
	StartedAt     time.Time      `json:"started_at"`
	FinishedAt    time.Time      `json:"finished_at"`
	OutputDir     string         `json:"output_dir"`
	PageCount     int            `json:"page_count"`
	DegradedCount int            `json:"degraded_count"`
	NullFields    int            `json:"null_fields"`
	ModuleCounts  map[string]int `json:"module_counts"`
	Enhanced      string         `json:"enhanced,omitempty"`
}

func listRuns(ctx context.Context, db *database.RunDB, docID string, out io.Writer, format outputFormat) error {
	records, err := db.History(ctx, docID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no runs found for document %s", docID)
	}

	entries := make([]historyEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, historyEntry{
			RunID:         r.RunID,
			StartedAt:     r.StartedAt,
			FinishedAt:    r.FinishedAt,
			OutputDir:     r.OutputDir,
			PageCount:     r.PageCount,
			DegradedCount: r.DegradedCount,
			NullFields:    r.NullFields,
			ModuleCounts:  r.ModuleCounts,
			Enhanced:      r.Enhanced,
		})
	}
	source := records[0].SourceFile

	switch format {
	case formatJSON:
		return writeJSON(out, entries)
	case formatMarkdown:
		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, []string{
				e.StartedAt.Local().Format(historyTimeLayout),
				strconv.Itoa(e.PageCount),
				strconv.Itoa(e.NullFields),
				formatModuleCounts(e.ModuleCounts),
				markdown.Code(e.OutputDir),
			})
		}
		return markdown.NewMarkdown(out).
			H1f("Run history: %s", source).
			PlainTextf("Document %s", markdown.Code(docID)).
			LF().
			Table(markdown.TableSet{Header: []string{"Started", "Pages", "Null fields", "Findings", "Output"}, Rows: rows}).
			Build()
	}

	fmt.Fprintf(out, "Run history for %s (%s, %d runs):\n\n", docID, source, len(entries))
	fmt.Fprintf(out, "  %-20s  %-5s  %-4s  %s\n", "Started", "Pages", "Null", "Findings")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 60))
	for _, e := range entries {
		fmt.Fprintf(out, "  %-20s  %-5d  %-4d  %s\n",
			e.StartedAt.Local().Format(historyTimeLayout), e.PageCount, e.NullFields, formatModuleCounts(e.ModuleCounts))
	}
	if len(entries) > 1 {
		fmt.Fprintf(out, "\nUse 'irreview history --diff %s' to compare the latest two runs.\n", docID)
	}
	return nil
}

// formatModuleCounts renders module counts in a stable order.
func formatModuleCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "N/A"
	}
	parts := make([]string, 0, len(counts))
	for _, name := range moduleNames(counts) {
		parts = append(parts, fmt.Sprintf("%s:%d", name, counts[name]))
	}
	return strings.Join(parts, " ")
}

func diffRuns(ctx context.Context, db *database.RunDB, docID string, out io.Writer, format outputFormat) error {
	records, err := db.History(ctx, docID)
	if err != nil {
		return err
	}
	if len(records) < 2 {
		return fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(records))
	}

	comparison := database.Compare(records[1], records[0])
	switch format {
	case formatJSON:
		return writeJSON(out, comparison)
	case formatMarkdown:
		return outputComparisonMarkdown(out, comparison)
	}
	outputComparisonText(out, comparison)
	return nil
}

func outputComparisonMarkdown(out io.Writer, c *database.Comparison) error {
	md := markdown.NewMarkdown(out).
		H1f("Run comparison: %s", c.DocID).
		H2("Summary").
		PlainTextf("%s %s", markdown.Bold("Coverage:"), formatCoverage(c.Coverage)).
		LF()

	rows := [][]string{
		{"Date", c.Previous.StartedAt.Local().Format(historyTimeLayout), c.Current.StartedAt.Local().Format(historyTimeLayout), "-"},
		{"Pages", strconv.Itoa(c.Previous.PageCount), strconv.Itoa(c.Current.PageCount), formatDelta(c.Current.PageCount - c.Previous.PageCount)},
		{"Degraded pages", strconv.Itoa(c.Previous.DegradedCount), strconv.Itoa(c.Current.DegradedCount), formatDelta(c.Current.DegradedCount - c.Previous.DegradedCount)},
		{"Null fields", strconv.Itoa(c.Previous.NullFields), strconv.Itoa(c.Current.NullFields), formatDelta(c.Current.NullFields - c.Previous.NullFields)},
	}
	for _, name := range moduleNames(c.ModuleDeltas) {
		rows = append(rows, []string{
			"Findings: " + name,
			strconv.Itoa(c.Previous.ModuleCounts[name]),
			strconv.Itoa(c.Current.ModuleCounts[name]),
			formatDelta(c.ModuleDeltas[name]),
		})
	}
	md.Table(markdown.TableSet{Header: []string{"Metric", "Previous", "Current", "Change"}, Rows: rows})

	if len(c.Changes) > 0 {
		md.H2f("Field Changes (%d)", len(c.Changes))
		changes := make([][]string, 0, len(c.Changes))
		for _, ch := range c.Changes {
			changes = append(changes, []string{
				ch.Label,
				ch.Kind,
				formatFieldValue(ch.Previous, ch.PreviousPages),
				formatFieldValue(ch.Current, ch.CurrentPages),
			})
		}
		md.Table(markdown.TableSet{Header: []string{"Field", "Change", "Previous", "Current"}, Rows: changes})
	}

	if c.UnchangedCount > 0 {
		md.HorizontalRule().PlainText(markdown.Italic(fmt.Sprintf("%d fields unchanged", c.UnchangedCount)))
	}
	return md.Build()
}

func outputComparisonText(out io.Writer, c *database.Comparison) {
	fmt.Fprintf(out, "Run Comparison: %s\n", c.DocID)
	fmt.Fprintln(out, strings.Repeat("=", 60))
	fmt.Fprintf(out, "\nCoverage: %s\n", formatCoverage(c.Coverage))
	fmt.Fprintf(out, "\nPrevious run: %s\n", c.Previous.StartedAt.Local().Format(historyTimeLayout))
	fmt.Fprintf(out, "Current run:  %s\n", c.Current.StartedAt.Local().Format(historyTimeLayout))

	fmt.Fprintln(out, "\nSummary:")
	fmt.Fprintf(out, "  %-22s  %-10s  %-10s  %s\n", "Metric", "Previous", "Current", "Change")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 55))
	line := func(label string, prev, cur int) {
		fmt.Fprintf(out, "  %-22s  %-10d  %-10d  %s\n", label, prev, cur, formatDelta(cur-prev))
	}
	line("Pages", c.Previous.PageCount, c.Current.PageCount)
	line("Degraded pages", c.Previous.DegradedCount, c.Current.DegradedCount)
	line("Null fields", c.Previous.NullFields, c.Current.NullFields)
	for _, name := range moduleNames(c.ModuleDeltas) {
		line("Findings: "+name, c.Previous.ModuleCounts[name], c.Current.ModuleCounts[name])
	}

	if len(c.Changes) > 0 {
		fmt.Fprintf(out, "\nField Changes (%d):\n", len(c.Changes))
		for _, ch := range c.Changes {
			fmt.Fprintf(out, "  [%s] %s: %s -> %s\n", changeSymbol(ch.Kind), ch.Label,
				formatFieldValue(ch.Previous, ch.PreviousPages), formatFieldValue(ch.Current, ch.CurrentPages))
		}
	}
	if c.UnchangedCount > 0 {
		fmt.Fprintf(out, "\nUnchanged: %d fields\n", c.UnchangedCount)
	}
}

func formatCoverage(direction string) string {
	switch direction {
	case database.CoverageImproved:
		return "IMPROVED (fewer null fields)"
	case database.CoverageWorsened:
		return "WORSENED (more null fields)"
	default:
		return "UNCHANGED"
	}
}

func changeSymbol(kind string) string {
	switch kind {
	case database.ChangeAdded:
		return "+"
	case database.ChangeRemoved:
		return "-"
	case database.ChangeMoved:
		return ">"
	default:
		return "~"
	}
}

// formatFieldValue renders a value with its pages, or "null".
func formatFieldValue(value string, pages []int) string {
	if value == "" {
		return "null"
	}
	if len(pages) == 0 {
		return value
	}
	p := make([]string, len(pages))
	for i, n := range pages {
		p[i] = strconv.Itoa(n)
	}
	return fmt.Sprintf("%s [p. %s]", value, strings.Join(p, ", "))
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}

// moduleNames returns the keys of counts in module order, with unknown
// modules last in lexical order.
func moduleNames(counts map[string]int) []string {
	names := make([]string, 0, len(counts))
	for _, m := range model.ModuleOrder {
		if _, ok := counts[string(m)]; ok {
			names = append(names, string(m))
		}
	}
	var rest []string
	for name := range counts {
		if !slices.Contains(names, name) {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}
