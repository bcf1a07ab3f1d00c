package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"lattice"
	"lattice/scripts"
)

var (
	flagDB     string
	flagConfig string
	flagFormat string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "lattice",
	Short:         "Parse source trees into a persistent component graph",
	Long:          "Lattice indexes source code with tree-sitter analyzers, producing a SQLite database of components and relationships, including edges across embedded-language boundaries.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
	// No Run — prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: .lattice/index.db relative to project root)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", ".lattice.yml", "config file path")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format: json|text")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(staleCmd)
}

var (
	flagForce     bool
	flagSerial    bool
	flagWorkers   int
	flagLanguages string
	flagExcludes  []string
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a project directory",
	Long:  "Walks the directory, parses every supported file, persists components and relationships, then runs the resolution pass.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "re-analyze files even when their content hash is unchanged")
	indexCmd.Flags().BoolVar(&flagSerial, "serial", false, "disable the parallel worker pool")
	indexCmd.Flags().IntVar(&flagWorkers, "workers", 0, "worker count for parallel indexing (0 = NumCPU)")
	indexCmd.Flags().StringVar(&flagLanguages, "languages", "", "comma-separated language filter (e.g. go,typescript)")
	indexCmd.Flags().StringSliceVar(&flagExcludes, "exclude", nil, "glob patterns to skip (doublestar syntax, repeatable)")
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()

	root, err := resolveTargetDir(args)
	if err != nil {
		return err
	}

	engine, err := openEngine(root, indexOptions(root)...)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx := context.Background()

	indexStart := time.Now()
	reports, err := engine.IndexDirectory(ctx, root)
	if err != nil {
		return fmt.Errorf("indexing: %w", err)
	}
	indexDuration := time.Since(indexStart)

	resolveStart := time.Now()
	stats, err := engine.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("resolving: %w", err)
	}
	resolveDuration := time.Since(resolveStart)

	if err := outputReports(flagFormat, reports); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Indexed %s in %s (parse: %s, resolve: %s)\n",
		root,
		time.Since(start).Round(time.Millisecond),
		indexDuration.Round(time.Millisecond),
		resolveDuration.Round(time.Millisecond),
	)
	fmt.Fprintf(os.Stderr, "Resolved %d endpoints, %d left unresolved\n",
		stats.ResolvedTargets+stats.ResolvedSources, stats.LeftUnresolved)
	return nil
}

var resolveCmd = &cobra.Command{
	Use:   "resolve [path]",
	Short: "Run the resolution pass against an existing index",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := resolveTargetDir(args)
		if err != nil {
			return err
		}
		engine, err := openEngine(root)
		if err != nil {
			return err
		}
		defer engine.Close()

		stats, err := engine.Resolve(context.Background())
		if err != nil {
			return fmt.Errorf("resolving: %w", err)
		}
		return outputStats(flagFormat, stats)
	},
}

var (
	flagQueryName string
	flagQueryType string
	flagQueryFile string
	flagQueryLang string
	flagQueryLim  int
)

var queryCmd = &cobra.Command{
	Use:   "query [path]",
	Short: "Search indexed components",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := resolveTargetDir(args)
		if err != nil {
			return err
		}
		engine, err := openEngine(root)
		if err != nil {
			return err
		}
		defer engine.Close()

		criteria := lattice.SearchCriteria{
			Name:     flagQueryName,
			FilePath: flagQueryFile,
			Limit:    flagQueryLim,
		}
		if flagQueryType != "" {
			criteria.Types = strings.Split(flagQueryType, ",")
		}
		if flagQueryLang != "" {
			criteria.Languages = strings.Split(flagQueryLang, ",")
		}
		comps, err := engine.Query().Components(criteria)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		return outputComponents(flagFormat, comps)
	},
}

func init() {
	queryCmd.Flags().StringVar(&flagQueryName, "name", "", "exact component name")
	queryCmd.Flags().StringVar(&flagQueryType, "type", "", "comma-separated component types")
	queryCmd.Flags().StringVar(&flagQueryFile, "file", "", "project-relative file path")
	queryCmd.Flags().StringVar(&flagQueryLang, "language", "", "comma-separated languages")
	queryCmd.Flags().IntVar(&flagQueryLim, "limit", 0, "max results (0 = default page)")
}

var staleCmd = &cobra.Command{
	Use:   "stale [path]",
	Short: "List components whose embeddings are missing or out of date",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := resolveTargetDir(args)
		if err != nil {
			return err
		}
		engine, err := openEngine(root)
		if err != nil {
			return err
		}
		defer engine.Close()

		comps, err := engine.Query().StaleEmbeddings()
		if err != nil {
			return fmt.Errorf("stale embeddings: %w", err)
		}
		return outputComponents(flagFormat, comps)
	},
}

// indexOptions builds the index-specific engine options from flags.
func indexOptions(root string) []lattice.Option {
	var opts []lattice.Option
	if flagForce {
		opts = append(opts, lattice.WithForce(true))
	}
	if flagSerial {
		opts = append(opts, lattice.WithParallel(false))
	}
	if flagWorkers > 0 {
		opts = append(opts, lattice.WithWorkers(flagWorkers))
	}
	if flagLanguages != "" {
		langs := strings.Split(flagLanguages, ",")
		for i := range langs {
			langs[i] = strings.TrimSpace(langs[i])
		}
		opts = append(opts, lattice.WithLanguages(langs...))
	}
	if len(flagExcludes) > 0 {
		opts = append(opts, lattice.WithExcludes(flagExcludes...))
	}
	return opts
}

// openEngine loads the config file, layers flags and extra options on top,
// and opens the engine with the embedded analyzer scripts.
func openEngine(root string, extra ...lattice.Option) (*lattice.Engine, error) {
	cfg, err := lattice.LoadConfig(configPath(root))
	if err != nil {
		return nil, err
	}
	cfg.Root = root

	dbPath := resolveDBPath(root, cfg.DBPath)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err)
	}

	opts := cfg.Options()
	if cfg.ScriptsDir != "" {
		dir := cfg.ScriptsDir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(root, dir)
		}
		opts = append(opts, lattice.WithScriptsFS(os.DirFS(dir)))
	} else {
		opts = append(opts, lattice.WithScriptsFS(scripts.FS))
	}
	opts = append(opts, extra...)

	engine, err := lattice.New(dbPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	return engine, nil
}

// resolveTargetDir returns the absolute path of the directory to act on.
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

// configPath returns the config file location; a relative --config resolves
// against the target directory.
func configPath(root string) string {
	if filepath.IsAbs(flagConfig) {
		return flagConfig
	}
	return filepath.Join(root, flagConfig)
}

// resolveDBPath returns the database path from the --db flag, the config
// file, or the default, resolved against root.
func resolveDBPath(root, cfgPath string) string {
	path := cfgPath
	if flagDB != "" {
		path = flagDB
	}
	if path == "" {
		path = filepath.Join(".lattice", "index.db")
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
