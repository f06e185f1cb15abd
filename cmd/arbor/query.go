package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"

	"github.com/jward/arbor"
	"github.com/jward/arbor/internal/protocol"
	"github.com/jward/arbor/internal/store"
	"github.com/spf13/cobra"
)

var (
	flagLimit  int
	flagOffset int
	flagWire   bool
)

var errorsCmd = &cobra.Command{
	Use:   "errors [file...]",
	Short: "Report analysis errors",
	Long:  "Analyzes the project and reports the errors of the given files, or of every file with errors when none are given.\nWith --wire the errors are written as an errors result that 'arbor report' reads back.",
	RunE:  runErrors,
}

var hoverCmd = &cobra.Command{
	Use:   "hover <file> <line> <col>",
	Short: "Describe the declaration named at a position",
	Long:  "Line and column numbers are 1-based.",
	Args:  cobra.ExactArgs(3),
	RunE:  runHover,
}

var refsCmd = &cobra.Command{
	Use:   "refs <file> <line> <col>",
	Short: "Find references, subclasses, implementers and overrides of a declaration",
	Long:  "Line and column numbers are 1-based.",
	Args:  cobra.ExactArgs(3),
	RunE:  runRefs,
}

var hierarchyCmd = &cobra.Command{
	Use:   "hierarchy <file> <line> <col>",
	Short: "Show the direct supertypes and subtypes of a class",
	Long:  "Line and column numbers are 1-based.",
	Args:  cobra.ExactArgs(3),
	RunE:  runHierarchy,
}

var dependentsCmd = &cobra.Command{
	Use:   "dependents <file>",
	Short: "List saved files that refer to declarations in a file",
	Long:  "Reads the database written by 'arbor analyze' without analyzing again.",
	Args:  cobra.ExactArgs(1),
	RunE:  runDependents,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Report the size of the analyzed model",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var reportCmd = &cobra.Command{
	Use:   "report <errors.json|->",
	Short: "Print an errors result written with 'arbor errors --wire'",
	Args:  cobra.ExactArgs(1),
	RunE:  runReport,
}

func init() {
	for _, c := range []*cobra.Command{errorsCmd, refsCmd, dependentsCmd} {
		c.Flags().IntVar(&flagLimit, "limit", 50, "pagination limit (max 500)")
		c.Flags().IntVar(&flagOffset, "offset", 0, "pagination offset")
	}
	errorsCmd.Flags().BoolVar(&flagWire, "wire", false, "write the errors as an errors result")
}

// --- Helpers ---

// openProject analyzes the project containing the working directory and
// returns the started engine.
func openProject(ctx context.Context, opts ...arbor.Option) (*project, *arbor.Engine, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("getting cwd: %w", err)
	}
	p, err := loadProject(cwd)
	if err != nil {
		return nil, nil, err
	}
	engine, err := p.open(ctx, opts...)
	if err != nil {
		return nil, nil, err
	}
	return p, engine, nil
}

// openStore opens the database of the project containing the working
// directory.
func openStore() (*store.Store, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	p, err := loadProject(cwd)
	if err != nil {
		return nil, err
	}
	if p.dbPath == "" {
		return nil, fmt.Errorf("no database with --no-store")
	}
	if _, err := os.Stat(p.dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: %s (run 'arbor analyze' first)", p.dbPath)
	}
	return store.NewStore(p.dbPath)
}

// resolveFilePath converts a file argument to an absolute path.
func resolveFilePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return file, nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	return abs, nil
}

// parseIntArg parses a positional argument as a positive integer.
func parseIntArg(value, name string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", name, value)
	}
	if n < 1 {
		return 0, fmt.Errorf("invalid %s %q: must be at least 1", name, value)
	}
	return n, nil
}

// positionArgs resolves <file> <line> <col> to the file's absolute path
// and the byte offset of the position.
func positionArgs(args []string) (string, int, error) {
	file, err := resolveFilePath(args[0])
	if err != nil {
		return "", 0, err
	}
	line, err := parseIntArg(args[1], "line")
	if err != nil {
		return "", 0, err
	}
	col, err := parseIntArg(args[2], "col")
	if err != nil {
		return "", 0, err
	}
	src, err := os.ReadFile(file)
	if err != nil {
		return "", 0, fmt.Errorf("reading %s: %w", file, err)
	}
	offset, ok := offsetAt(src, line, col)
	if !ok {
		return "", 0, fmt.Errorf("position %d:%d is outside %s", line, col, file)
	}
	return file, offset, nil
}

// offsetAt returns the byte offset of the 1-based line and column in src.
func offsetAt(src []byte, line, col int) (int, bool) {
	offset := 0
	for l := 1; l < line; l++ {
		i := slices.Index(src[offset:], '\n')
		if i < 0 {
			return 0, false
		}
		offset += i + 1
	}
	end := len(src)
	if i := slices.Index(src[offset:], '\n'); i >= 0 {
		end = offset + i
	}
	if offset+col-1 > end {
		return 0, false
	}
	return offset + col - 1, true
}

// paginate applies --limit and --offset to items and returns the page with
// the total count.
func paginate[T any](items []T) ([]T, int) {
	total := len(items)
	limit := min(max(flagLimit, 1), 500)
	start := min(max(flagOffset, 0), total)
	end := min(start+limit, total)
	return items[start:end], total
}

// outputResult marshals a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(result)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	result := CLIResult{
		Command: command,
		Error:   err.Error(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}

// errorCounter is a Listener that keeps the latest errors of every file.
type errorCounter struct {
	mu     sync.Mutex
	errors map[string][]arbor.AnalysisError
}

var _ arbor.Listener = (*errorCounter)(nil)

func newErrorCounter() *errorCounter {
	return &errorCounter{errors: make(map[string][]arbor.AnalysisError)}
}

func (c *errorCounter) ComputedErrors(file string, errs []arbor.AnalysisError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors[file] = errs
}

func (c *errorCounter) ComputedHighlights(string, []arbor.HighlightRegion)  {}
func (c *errorCounter) ComputedOutline(string, *arbor.Outline)              {}
func (c *errorCounter) ComputedNavigation(string, []arbor.NavigationRegion) {}

// analyzed returns the number of files that reported results.
func (c *errorCounter) analyzed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.errors)
}

// all returns every recorded error ordered by file, then offset.
func (c *errorCounter) all() []arbor.AnalysisError {
	c.mu.Lock()
	defer c.mu.Unlock()
	files := make([]string, 0, len(c.errors))
	for f := range c.errors {
		files = append(files, f)
	}
	slices.Sort(files)
	var out []arbor.AnalysisError
	for _, f := range files {
		out = append(out, c.errors[f]...)
	}
	return out
}

func (c *errorCounter) summary(root string) CLISummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := CLISummary{Root: root, Files: len(c.errors), BySeverity: make(map[string]int)}
	for _, errs := range c.errors {
		if len(errs) > 0 {
			s.FilesWithErrors++
		}
		s.Errors += len(errs)
		for _, e := range errs {
			s.BySeverity[string(e.Severity)]++
		}
	}
	return s
}

func errorToCLI(e arbor.AnalysisError) CLIError {
	return CLIError{
		File:       e.Location.File,
		Line:       e.Location.StartLine,
		Col:        e.Location.StartColumn,
		Severity:   string(e.Severity),
		Type:       string(e.Type),
		Code:       e.Code,
		Message:    e.Message,
		Correction: e.Correction,
	}
}

func errorsToCLI(errs []arbor.AnalysisError) []CLIError {
	out := make([]CLIError, len(errs))
	for i, e := range errs {
		out[i] = errorToCLI(e)
	}
	return out
}

func typeSymbolToCLI(s arbor.TypeSymbol) CLITypeSymbol {
	out := CLITypeSymbol{Name: s.Name, Kind: s.Kind, Depth: s.Depth}
	if s.Location != nil {
		out.File = s.Location.File
		out.Line = s.Location.StartLine
	}
	return out
}

func typeHierarchyToCLI(h *arbor.TypeHierarchy) CLITypeHierarchy {
	out := CLITypeHierarchy{
		Symbol:     typeSymbolToCLI(h.Symbol),
		Supertypes: make([]CLITypeRelation, len(h.Supertypes)),
		Subtypes:   make([]CLITypeRelation, len(h.Subtypes)),
	}
	for i, r := range h.Supertypes {
		out.Supertypes[i] = CLITypeRelation{Symbol: typeSymbolToCLI(r.Symbol), Kind: r.Kind}
	}
	for i, r := range h.Subtypes {
		out.Subtypes[i] = CLITypeRelation{Symbol: typeSymbolToCLI(r.Symbol), Kind: r.Kind}
	}
	return out
}

// --- Commands ---

func runErrors(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	counter := newErrorCounter()
	_, engine, err := openProject(ctx, arbor.WithListener(counter))
	if err != nil {
		return outputError("errors", err)
	}
	defer engine.Close()

	var errs []arbor.AnalysisError
	if len(args) == 0 {
		errs = counter.all()
	}
	for _, arg := range args {
		file, err := resolveFilePath(arg)
		if err != nil {
			return outputError("errors", err)
		}
		fileErrs, err := engine.GetErrors(ctx, file)
		if err != nil {
			return outputError("errors", err)
		}
		errs = append(errs, fileErrs...)
	}

	if flagWire {
		data, err := protocol.EncodeErrors(errs)
		if err != nil {
			return outputError("errors", err)
		}
		_, err = fmt.Fprintf(os.Stdout, "%s\n", data)
		return err
	}

	paged, total := paginate(errorsToCLI(errs))
	return outputResult(CLIResult{
		Command:    "errors",
		Results:    paged,
		TotalCount: &total,
	})
}

func runHover(cmd *cobra.Command, args []string) error {
	file, offset, err := positionArgs(args)
	if err != nil {
		return outputError("hover", err)
	}
	ctx := context.Background()
	_, engine, err := openProject(ctx)
	if err != nil {
		return outputError("hover", err)
	}
	defer engine.Close()

	h, err := engine.GetHover(ctx, file, offset)
	if err != nil {
		return outputError("hover", err)
	}
	if h == nil {
		return outputResult(CLIResult{Command: "hover", Results: nil})
	}
	out := CLIHover{Name: h.Name, Kind: h.Kind, Description: h.Description, Depth: h.Depth}
	if h.Declaration != nil {
		out.File = h.Declaration.File
		out.Line = h.Declaration.StartLine
		out.Col = h.Declaration.StartColumn
	}
	one := 1
	return outputResult(CLIResult{
		Command:    "hover",
		Results:    out,
		TotalCount: &one,
	})
}

func runRefs(cmd *cobra.Command, args []string) error {
	file, offset, err := positionArgs(args)
	if err != nil {
		return outputError("refs", err)
	}
	ctx := context.Background()
	_, engine, err := openProject(ctx)
	if err != nil {
		return outputError("refs", err)
	}
	defer engine.Close()

	refs, err := engine.FindReferences(ctx, file, offset)
	if err != nil {
		return outputError("refs", err)
	}
	cliRefs := make([]CLIReference, len(refs))
	for i, r := range refs {
		cliRefs[i] = CLIReference{
			File:     r.File,
			Line:     r.StartLine,
			Col:      r.StartColumn,
			Kind:     r.Kind,
			Resolved: r.Resolved,
		}
	}
	paged, total := paginate(cliRefs)
	return outputResult(CLIResult{
		Command:    "refs",
		Results:    paged,
		TotalCount: &total,
	})
}

func runHierarchy(cmd *cobra.Command, args []string) error {
	file, offset, err := positionArgs(args)
	if err != nil {
		return outputError("hierarchy", err)
	}
	ctx := context.Background()
	_, engine, err := openProject(ctx)
	if err != nil {
		return outputError("hierarchy", err)
	}
	defer engine.Close()

	th, err := engine.TypeHierarchy(ctx, file, offset)
	if err != nil {
		return outputError("hierarchy", err)
	}
	if th == nil {
		return outputResult(CLIResult{Command: "hierarchy", Results: nil})
	}
	one := 1
	return outputResult(CLIResult{
		Command:    "hierarchy",
		Results:    typeHierarchyToCLI(th),
		TotalCount: &one,
	})
}

func runDependents(cmd *cobra.Command, args []string) error {
	file, err := resolveFilePath(args[0])
	if err != nil {
		return outputError("dependents", err)
	}
	s, err := openStore()
	if err != nil {
		return outputError("dependents", err)
	}
	defer s.Close()

	sources, err := s.ReferencingSources(file)
	if err != nil {
		return outputError("dependents", err)
	}
	files := make([]CLIFile, 0, len(sources))
	for _, src := range sources {
		f := CLIFile{Path: src}
		rec, err := s.FileByPath(src)
		if err != nil {
			return outputError("dependents", err)
		}
		if rec != nil {
			f.Language = rec.Language
			f.ErrorCount = rec.ErrorCount
		}
		files = append(files, f)
	}

	paged, total := paginate(files)
	return outputResult(CLIResult{
		Command:    "dependents",
		Results:    paged,
		TotalCount: &total,
	})
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	p, engine, err := openProject(ctx)
	if err != nil {
		return outputError("stats", err)
	}
	defer engine.Close()

	stats, err := engine.Stats(ctx)
	if err != nil {
		return outputError("stats", err)
	}
	one := 1
	return outputResult(CLIResult{
		Command: "stats",
		Results: CLIStats{
			Root:          p.root,
			Files:         stats.Files,
			Classes:       stats.Classes,
			Elements:      stats.Elements,
			Relationships: stats.Relationships,
			Locations:     stats.Locations,
			Sources:       stats.Sources,
		},
		TotalCount: &one,
	})
}

// reportConsumer collects the outcome of an errors result.
type reportConsumer struct {
	errs   []arbor.AnalysisError
	reqErr *protocol.RequestError
}

func (c *reportConsumer) ComputedErrors(errs []arbor.AnalysisError) { c.errs = errs }
func (c *reportConsumer) OnError(err *protocol.RequestError)       { c.reqErr = err }

func runReport(cmd *cobra.Command, args []string) error {
	var data []byte
	var err error
	if args[0] == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return outputError("report", fmt.Errorf("reading %s: %w", args[0], err))
	}

	c := &reportConsumer{}
	protocol.NewErrorsProcessor(c).Process(data, nil)
	if c.reqErr != nil {
		return outputError("report", c.reqErr)
	}

	total := len(c.errs)
	return outputResult(CLIResult{
		Command:    "report",
		Results:    errorsToCLI(c.errs),
		TotalCount: &total,
	})
}
