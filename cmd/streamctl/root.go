package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/clusterkit/cluster"
	"github.com/joshuapare/clusterkit/internal/config"
	"github.com/joshuapare/clusterkit/internal/logger"
	"github.com/joshuapare/clusterkit/medium"
	"github.com/joshuapare/clusterkit/tx"
)

var (
	// Global flags
	verbose    bool
	quiet      bool
	jsonOut    bool
	configPath string
	logLevel   string

	cfg = config.Default()
)

var rootCmd = &cobra.Command{
	Use:   "streamctl",
	Short: "Inspect and modify clustered stream storage files",
	Long: `streamctl inspects and edits files holding many variable-length byte
streams in one clustered storage medium. Every modifying command runs inside a
transaction and only replaces the file once the change is complete.`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to an ini config file")
	rootCmd.PersistentFlags().
		StringVar(&logLevel, "log-level", "", "Enable logging to stderr at this level (debug, info, warn, error)")
}

func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg = loaded

	lo := cfg.LoggerOptions()
	if logLevel != "" {
		lo.Enabled = true
		lo.Level = logger.ParseLevel(logLevel)
	}
	return logger.Init(lo)
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openStorage loads path read-only into memory.
func openStorage(path string) (*cluster.Storage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	opts := cfg.StorageOptions()
	opts.Logger = logger.L
	s, err := cluster.New(medium.NewMemory(data), opts)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return s, nil
}

// mutate runs fn against the storage in path inside a transaction and
// commits when fn succeeds.
func mutate(path string, fn func(s *cluster.Storage) error) error {
	ctx := context.Background()
	topts := cfg.TxOptions()
	topts.Logger = logger.L
	t, err := tx.Begin(path, topts)
	if err != nil {
		return err
	}
	defer t.Close()

	opts := cfg.StorageOptions()
	opts.Logger = logger.L
	s, err := cluster.New(t.Medium(), opts)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if err := fn(s); err != nil {
		return err
	}
	if err := s.Flush(ctx); err != nil {
		return err
	}
	return t.Commit(ctx)
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func formatSize(size int64) string {
	switch {
	case size < 1024:
		return fmt.Sprintf("%d bytes", size)
	case size < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(size)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(size)/(1024*1024))
	}
}
