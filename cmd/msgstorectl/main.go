// Command msgstorectl is an operator CLI over the msgstore library: start
// and close batches, ingest messages and events by hand, and inspect batch
// status without writing a line of Go.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/vumi/msgstore"
	"github.com/vumi/msgstore/internal/config"
	"github.com/vumi/msgstore/internal/logging"
)

var (
	// Version is overridden by ldflags at build time.
	Version = "0.1.0"
	Build   = "dev"
)

var (
	jsonOutput bool
	store      *msgstore.Store
	logger     *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "msgstorectl",
	Short:         "Inspect and drive a msgstore message store",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		if err := config.Initialize(); err != nil {
			return fmt.Errorf("msgstorectl: %w", err)
		}
		logger = logging.New(logging.Options{
			Path:       config.LogPath(),
			MaxSizeMB:  config.LogMaxSizeMB(),
			MaxBackups: config.LogMaxBackups(),
			MaxAgeDays: config.LogMaxAgeDays(),
		})

		driver, err := openCacheDriver()
		if err != nil {
			return err
		}
		s, err := msgstore.Open(cmd.Context(), config.SQLitePath(), driver, config.RecencyLimit())
		if err != nil {
			return fmt.Errorf("msgstorectl: open store: %w", err)
		}
		store = s
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if store != nil {
			return store.Close()
		}
		return nil
	},
}

func openCacheDriver() (msgstore.CacheDriver, error) {
	switch config.CacheDriver() {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr: config.RedisAddr(),
			DB:   config.RedisDB(),
		})
		return msgstore.NewRedisCacheDriver(client), nil
	default:
		return msgstore.NewMemoryCacheDriver(), nil
	}
}

func main() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit machine-readable JSON instead of rendered text")
	rootCmd.AddCommand(versionCmd, batchCmd, ingestCmd, listCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if jsonOutput {
			outputJSON(map[string]string{"version": Version, "build": Build})
			return
		}
		fmt.Printf("msgstorectl version %s (%s)\n", Version, Build)
	},
}

// outputJSON writes v to stdout as indented JSON, mirroring the --json
// contract every subcommand honors.
func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// renderMarkdown renders md for a terminal, falling back to the raw text
// if glamour can't build a renderer (e.g. a dumb terminal in CI).
func renderMarkdown(md string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}
