package main

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"
)

// formatErrorsText formats CLIError results as "file:line:col" lines.
func formatErrorsText(w io.Writer, errs []CLIError) {
	for _, e := range errs {
		fmt.Fprintf(w, "%s:%d:%d: %s: %s [%s]\n", e.File, e.Line, e.Col, strings.ToLower(e.Severity), e.Message, e.Code)
		if e.Correction != "" {
			fmt.Fprintf(w, "  %s\n", e.Correction)
		}
	}
}

// formatReferencesText formats CLIReference results as aligned columns.
func formatReferencesText(w io.Writer, refs []CLIReference) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tFILE\tLINE\tCOL")
	for _, r := range refs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", r.Kind, r.File, r.Line, r.Col)
	}
	tw.Flush()
}

// formatHoverText formats a CLIHover as readable text.
func formatHoverText(w io.Writer, h CLIHover) {
	fmt.Fprintln(w, h.Description)
	if h.File != "" {
		fmt.Fprintf(w, "Declared at %s:%d:%d\n", h.File, h.Line, h.Col)
	}
	if h.Kind != "" && h.Depth > 0 {
		fmt.Fprintf(w, "Depth: %d\n", h.Depth)
	}
}

// formatHierarchyText formats a CLITypeHierarchy as readable text.
func formatHierarchyText(w io.Writer, h CLITypeHierarchy) {
	fmt.Fprintf(w, "%s %s (depth %d)\n", h.Symbol.Kind, h.Symbol.Name, h.Symbol.Depth)
	writeRelations := func(title string, rels []CLITypeRelation) {
		if len(rels) == 0 {
			return
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s:\n", title)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, r := range rels {
			loc := "-"
			if r.Symbol.File != "" {
				loc = fmt.Sprintf("%s:%d", r.Symbol.File, r.Symbol.Line)
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", r.Kind, r.Symbol.Name, loc)
		}
		tw.Flush()
	}
	writeRelations("Supertypes", h.Supertypes)
	writeRelations("Subtypes", h.Subtypes)
}

// formatFilesText formats CLIFile results as aligned columns.
func formatFilesText(w io.Writer, files []CLIFile) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tLANGUAGE\tERRORS")
	for _, f := range files {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", f.Path, f.Language, f.ErrorCount)
	}
	tw.Flush()
}

// formatSummaryText formats CLISummary as readable text.
func formatSummaryText(w io.Writer, s CLISummary) {
	fmt.Fprintln(w, "Analysis Summary")
	fmt.Fprintln(w, "================")
	fmt.Fprintf(w, "Root: %s\n", s.Root)
	fmt.Fprintf(w, "Files: %d (%d with errors)\n", s.Files, s.FilesWithErrors)
	fmt.Fprintf(w, "Errors: %d\n", s.Errors)
	if len(s.BySeverity) > 0 {
		sevs := make([]string, 0, len(s.BySeverity))
		for sev := range s.BySeverity {
			sevs = append(sevs, sev)
		}
		slices.Sort(sevs)
		for _, sev := range sevs {
			fmt.Fprintf(w, "  %s: %d\n", sev, s.BySeverity[sev])
		}
	}
}

// formatStatsText formats CLIStats as readable text.
func formatStatsText(w io.Writer, s CLIStats) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Root:\t%s\n", s.Root)
	fmt.Fprintf(tw, "Files:\t%d\n", s.Files)
	fmt.Fprintf(tw, "Classes:\t%d\n", s.Classes)
	fmt.Fprintf(tw, "Elements:\t%d\n", s.Elements)
	fmt.Fprintf(tw, "Relationships:\t%d\n", s.Relationships)
	fmt.Fprintf(tw, "Locations:\t%d\n", s.Locations)
	fmt.Fprintf(tw, "Sources:\t%d\n", s.Sources)
	tw.Flush()
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type. It writes to os.Stdout.
func outputResultText(result CLIResult) error {
	return writeResultText(os.Stdout, result)
}

func writeResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLIError:
		formatErrorsText(w, v)
	case []CLIReference:
		formatReferencesText(w, v)
	case CLIHover:
		formatHoverText(w, v)
	case CLITypeHierarchy:
		formatHierarchyText(w, v)
	case []CLIFile:
		formatFilesText(w, v)
	case CLISummary:
		formatSummaryText(w, v)
	case CLIStats:
		formatStatsText(w, v)
	case nil:
		// No output for nil results (e.g., hover with no match).
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}

	// Pagination footer.
	if result.TotalCount != nil {
		count := *result.TotalCount
		shown := resultLen(result.Results)
		if shown < count {
			fmt.Fprintf(w, "\nShowing %d of %d results\n", shown, count)
		}
	}

	return nil
}

// resultLen returns the length of a result slice, or 1 for a single value.
func resultLen(v any) int {
	switch r := v.(type) {
	case []CLIError:
		return len(r)
	case []CLIReference:
		return len(r)
	case []CLIFile:
		return len(r)
	case nil:
		return 0
	default:
		return 1
	}
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	if slices.Contains(validFormats, format) {
		return nil
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
