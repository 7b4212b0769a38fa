// Package main provides the vegvisir CLI entry point.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/orneryd/vegvisir/pkg/config"
	"github.com/orneryd/vegvisir/pkg/executor"
	"github.com/orneryd/vegvisir/pkg/storage"
	"github.com/orneryd/vegvisir/pkg/tracing"
	"github.com/orneryd/vegvisir/pkg/vegvisir"
)

var (
	version   = "0.1.0"
	commit    = "dev"
	buildTime = "unknown" // Set via ldflags: -X main.buildTime=$(date +%Y%m%d-%H%M%S)
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vegvisir",
		Short: "Vegvisir - Cypher match query engine",
		Long: `Vegvisir is a graph query engine written in Go that compiles
Cypher MATCH queries into composable plan segments and executes them.

Features:
  • Cypher MATCH, OPTIONAL MATCH, UNWIND, WITH and RETURN
  • Segment composition: joins and cross products from shared aliases
  • Variable-length path expansion with relationship uniqueness
  • In-memory and BadgerDB storage backends
  • YAML dataset loading`,
	}
	rootCmd.PersistentFlags().String("config", "", "Config file path (default: auto-discover)")

	// Version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("vegvisir v%s (%s) built %s\n", version, commit, buildTime)
		},
	})

	// Query command
	queryCmd := &cobra.Command{
		Use:   "query [cypher]",
		Short: "Execute a Cypher match query",
		Args:  cobra.ExactArgs(1),
		RunE:  runQuery,
	}
	addStorageFlags(queryCmd)
	queryCmd.Flags().String("params", "", "Query parameters as a JSON object")
	queryCmd.Flags().String("format", "table", "Output format: table or json")
	rootCmd.AddCommand(queryCmd)

	// Explain command
	explainCmd := &cobra.Command{
		Use:   "explain [cypher]",
		Short: "Print the plan for a query without executing it",
		Args:  cobra.ExactArgs(1),
		RunE:  runExplain,
	}
	addStorageFlags(explainCmd)
	rootCmd.AddCommand(explainCmd)

	// Load command
	loadCmd := &cobra.Command{
		Use:   "load [dataset.yaml]",
		Short: "Load a YAML dataset into the store",
		Args:  cobra.ExactArgs(1),
		RunE:  runLoad,
	}
	loadCmd.Flags().String("backend", "", "Storage backend: memory or badger")
	loadCmd.Flags().String("data-dir", "", "Data directory (badger backend)")
	rootCmd.AddCommand(loadCmd)

	// Shell command (interactive query REPL)
	shellCmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive query shell",
		RunE:  runShell,
	}
	addStorageFlags(shellCmd)
	rootCmd.AddCommand(shellCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// addStorageFlags registers the flags shared by every command that opens
// a store.
func addStorageFlags(cmd *cobra.Command) {
	cmd.Flags().String("backend", "", "Storage backend: memory or badger")
	cmd.Flags().String("data-dir", "", "Data directory (badger backend)")
	cmd.Flags().String("dataset", "", "YAML dataset to load before running")
}

// loadConfig resolves the effective configuration: defaults, then config
// file, then environment, then command-line flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config

	path, _ := cmd.Flags().GetString("config")
	explicit := path != ""
	if path == "" {
		path = config.FindConfigFile()
	}
	if path != "" {
		var err error
		cfg, err = config.LoadFromFile(path)
		if err != nil {
			if explicit {
				return nil, err
			}
			fmt.Printf("⚠️  Warning: failed to load config from %s: %v\n", path, err)
			cfg = config.LoadFromEnv()
		}
	} else {
		cfg = config.LoadFromEnv()
	}

	if cmd.Flags().Changed("backend") {
		v, _ := cmd.Flags().GetString("backend")
		cfg.Storage.Backend = strings.ToLower(v)
	}
	if cmd.Flags().Changed("data-dir") {
		v, _ := cmd.Flags().GetString("data-dir")
		cfg.Storage.DataDir = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openStore builds the storage engine the config selects.
func openStore(cfg *config.Config) (storage.Engine, error) {
	switch cfg.Storage.Backend {
	case config.BackendBadger:
		if cfg.Storage.InMemory {
			return storage.NewBadgerEngineInMemory()
		}
		return storage.NewBadgerEngineWithOptions(storage.BadgerOptions{
			DataDir:    cfg.Storage.DataDir,
			SyncWrites: cfg.Storage.SyncWrites,
		})
	default:
		return storage.NewMemoryEngine(), nil
	}
}

// openEngine opens the engine plus its telemetry and returns a cleanup
// function that tears both down.
func openEngine(cmd *cobra.Command) (*vegvisir.Engine, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	shutdown, err := tracing.Setup(context.Background(), cfg.Tracing)
	if err != nil {
		return nil, nil, fmt.Errorf("setting up tracing: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		shutdown(context.Background())
		return nil, nil, fmt.Errorf("opening storage: %w", err)
	}

	eng, err := vegvisir.Open(store, cfg)
	if err != nil {
		store.Close()
		shutdown(context.Background())
		return nil, nil, err
	}

	cleanup := func() {
		if err := eng.Close(); err != nil {
			log.Printf("closing engine: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			log.Printf("flushing traces: %v", err)
		}
	}

	if dataset, _ := cmd.Flags().GetString("dataset"); dataset != "" {
		stats, err := storage.LoadDatasetFile(context.Background(), eng.Storage(), dataset)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("loading dataset: %w", err)
		}
		fmt.Printf("📥 Loaded %d nodes, %d edges from %s\n", stats.Nodes, stats.Edges, dataset)
	}

	return eng, cleanup, nil
}

// parseParams decodes the --params JSON object.
func parseParams(cmd *cobra.Command) (map[string]any, error) {
	raw, _ := cmd.Flags().GetString("params")
	if raw == "" {
		return nil, nil
	}
	var params map[string]any
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, fmt.Errorf("invalid --params: %w", err)
	}
	return params, nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	eng, cleanup, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	params, err := parseParams(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	res, err := eng.Execute(ctx, args[0], params)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "json":
		if err := printJSON(res); err != nil {
			return err
		}
	case "table":
		printTable(res)
	default:
		return fmt.Errorf("unknown output format: %q", format)
	}
	fmt.Printf("\n(%d row(s) in %v)\n", len(res.Rows), elapsed)
	return nil
}

func runExplain(cmd *cobra.Command, args []string) error {
	eng, cleanup, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	out, err := eng.Explain(context.Background(), args[0])
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

func runLoad(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Storage.Backend == config.BackendMemory {
		fmt.Println("⚠️  Note: the memory backend does not persist; loaded data is gone when the process exits")
	}

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	fmt.Printf("📥 Loading dataset from %s\n", args[0])
	start := time.Now()
	stats, err := storage.LoadDatasetFile(context.Background(), store, args[0])
	if err != nil {
		return fmt.Errorf("loading dataset: %w", err)
	}
	fmt.Printf("✅ Loaded %d nodes, %d edges in %v\n", stats.Nodes, stats.Edges, time.Since(start))
	return nil
}

func runShell(cmd *cobra.Command, args []string) error {
	eng, cleanup, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Println("✅ Connected to vegvisir")
	fmt.Println("Type 'exit' or Ctrl+D to quit")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("vegvisir> ")
		if !scanner.Scan() {
			break
		}

		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if query == "exit" || query == "quit" {
			break
		}

		if rest, ok := strings.CutPrefix(query, "explain "); ok {
			out, err := eng.Explain(ctx, rest)
			if err != nil {
				fmt.Printf("❌ Error: %v\n", err)
				continue
			}
			fmt.Print(out)
			fmt.Println()
			continue
		}

		res, err := eng.Execute(ctx, query, nil)
		if err != nil {
			fmt.Printf("❌ Error: %v\n", err)
			continue
		}
		printTable(res)
		fmt.Printf("\n(%d row(s))\n\n", len(res.Rows))
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	fmt.Println("👋 Goodbye!")
	return nil
}

// printTable renders a result the way the interactive shell shows it.
func printTable(res *executor.Result) {
	header := strings.Join(res.Columns, " | ")
	fmt.Println(header)
	fmt.Println(strings.Repeat("-", len(header)))
	for _, row := range res.Rows {
		values := make([]string, len(row))
		for i, v := range row {
			values[i] = formatValue(v)
		}
		fmt.Println(strings.Join(values, " | "))
	}
}

// printJSON renders a result as {"columns": [...], "rows": [[...]]} so
// duplicate column names survive.
func printJSON(res *executor.Result) error {
	out, err := json.MarshalIndent(map[string]any{
		"columns": res.Columns,
		"rows":    res.Rows,
	}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case *storage.Node:
		return fmt.Sprintf("(%s:%s)", val.ID, strings.Join(val.Labels, ":"))
	case *storage.Edge:
		return fmt.Sprintf("[%s:%s]", val.ID, val.Type)
	case *executor.Path:
		return fmt.Sprintf("<path %d nodes, %d edges>", len(val.Nodes), len(val.Edges))
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}
