package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jward/arbor"
	"github.com/jward/arbor/internal/config"
	"github.com/spf13/cobra"
)

var (
	flagDB      string
	flagFormat  string
	flagRoot    string
	flagNoStore bool
	flagVerbose bool
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "arbor",
	Short:         "Incremental class-hierarchy analysis for Java and TypeScript",
	Long:          "Arbor parses source files with tree-sitter, resolves their class hierarchies, runs Risor lint rules and keeps the results in a SQLite database for fast re-analysis.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: [store] db from arbor.toml, relative to the project root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&flagRoot, "root", "", "project root (default: nearest directory containing .git or arbor.toml)")
	rootCmd.PersistentFlags().BoolVar(&flagNoStore, "no-store", false, "analyze in memory without reading or writing the database")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log rule and analysis warnings to stderr")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(errorsCmd)
	rootCmd.AddCommand(hoverCmd)
	rootCmd.AddCommand(refsCmd)
	rootCmd.AddCommand(hierarchyCmd)
	rootCmd.AddCommand(dependentsCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(reportCmd)
}

var (
	flagForce     bool
	flagLanguages string
	flagRulesDir  string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [path]",
	Short: "Analyze a project and save the results",
	Long:  "Discovers the source files under the project root, analyzes them and writes the resolved state to the database. Files whose content is unchanged since the last run are not re-parsed.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAnalyze,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLanguages, "languages", "", "comma-separated language filter (e.g. java,typescript)")
	rootCmd.PersistentFlags().StringVar(&flagRulesDir, "rules-dir", "", "load lint rules from disk path instead of the built-in rules")
	analyzeCmd.Flags().BoolVar(&flagForce, "force", false, "delete database and analyze from scratch")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	start := time.Now()

	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return outputError("analyze", err)
	}

	p, err := loadProject(targetDir)
	if err != nil {
		return outputError("analyze", err)
	}

	if flagForce && p.dbPath != "" {
		if err := os.Remove(p.dbPath); err != nil && !os.IsNotExist(err) {
			return outputError("analyze", fmt.Errorf("removing database for --force: %w", err))
		}
		fmt.Fprintf(os.Stderr, "Cleared database: %s\n", p.dbPath)
	}

	counter := newErrorCounter()
	ctx := context.Background()
	engine, err := p.open(ctx, arbor.WithListener(counter))
	if err != nil {
		return outputError("analyze", err)
	}
	defer engine.Close()
	analyzeDuration := time.Since(start)

	if p.dbPath != "" {
		if err := engine.Save(ctx); err != nil {
			return outputError("analyze", err)
		}
	}

	stats, err := engine.Stats(ctx)
	if err != nil {
		return outputError("analyze", err)
	}

	fmt.Fprintf(os.Stderr, "Analyzed %s in %s (%d analyzed, %d files, %d classes)\n",
		p.root,
		time.Since(start).Round(time.Millisecond),
		counter.analyzed(),
		stats.Files,
		stats.Classes,
	)
	if p.dbPath != "" {
		fmt.Fprintf(os.Stderr, "Database: %s (saved after %s)\n", p.dbPath, analyzeDuration.Round(time.Millisecond))
	}

	summary := counter.summary(p.root)
	one := 1
	return outputResult(CLIResult{
		Command:    "analyze",
		Results:    summary,
		TotalCount: &one,
	})
}

// project is a resolved project root with its settings.
type project struct {
	root   string
	cfg    *config.Config
	dbPath string // "" with --no-store
}

// loadProject finds the project root for dir and loads its arbor.toml.
// Command-line flags override the file.
func loadProject(dir string) (*project, error) {
	root := flagRoot
	if root == "" {
		root = findRepoRoot(dir)
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root %q: %w", root, err)
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	if flagLanguages != "" {
		langs := strings.Split(flagLanguages, ",")
		for i := range langs {
			langs[i] = strings.TrimSpace(langs[i])
		}
		cfg.Analysis.Languages = langs
	}
	if flagRulesDir != "" {
		cfg.Rules.Dir = flagRulesDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &project{root: root, cfg: cfg}
	if !flagNoStore {
		p.dbPath = resolveDBPath(root, cfg)
	}
	return p, nil
}

// open creates and starts an Engine for the project and waits for the
// project to be analyzed.
func (p *project) open(ctx context.Context, opts ...arbor.Option) (*arbor.Engine, error) {
	logger := log.New(os.Stderr, "arbor: ", 0)
	if !flagVerbose {
		logger.SetOutput(io.Discard)
	}
	opts = append([]arbor.Option{
		arbor.WithConfig(p.cfg),
		arbor.WithLanguages(p.cfg.Analysis.Languages...),
		arbor.WithLogger(logger),
	}, opts...)
	if dir := p.cfg.RulesDir(p.root); dir != "" {
		opts = append(opts, arbor.WithRulesDir(dir))
	}
	if p.dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(p.dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", filepath.Dir(p.dbPath), err)
		}
		opts = append(opts, arbor.WithDatabase(p.dbPath))
	}

	engine, err := arbor.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	if err := engine.Start(); err != nil {
		engine.Close()
		return nil, fmt.Errorf("starting engine: %w", err)
	}
	if err := engine.SetAnalysisRoots([]string{p.root}, nil); err != nil {
		engine.Close()
		return nil, fmt.Errorf("setting roots: %w", err)
	}
	if err := engine.WaitIdle(ctx); err != nil {
		engine.Close()
		return nil, fmt.Errorf("analyzing: %w", err)
	}
	return engine, nil
}

// resolveTargetDir returns the absolute path of the directory to analyze.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory or an
// arbor.toml file. Returns startDir if neither is found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		if _, err := os.Stat(filepath.Join(dir, config.FileName)); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns the database path from the --db flag or the
// project settings.
func resolveDBPath(root string, cfg *config.Config) string {
	if flagDB != "" {
		if filepath.IsAbs(flagDB) {
			return flagDB
		}
		return filepath.Join(root, flagDB)
	}
	return cfg.DBPath(root)
}
