// Package cli provides the command-line interface for partvoice.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/partvoice-go/internal/cad"
	"github.com/raphaelgruber/partvoice-go/internal/config"
	"github.com/raphaelgruber/partvoice-go/internal/db"
	"github.com/raphaelgruber/partvoice-go/internal/executor"
	"github.com/raphaelgruber/partvoice-go/internal/interpreter"
	"github.com/raphaelgruber/partvoice-go/internal/llm"
	"github.com/raphaelgruber/partvoice-go/internal/memory"
	"github.com/raphaelgruber/partvoice-go/internal/session"
	"github.com/raphaelgruber/partvoice-go/internal/speech"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	configFile string
	partID     string

	// Global config and db client
	cfg      config.Config
	dbClient *db.Client
	logger   *slog.Logger

	logCleanup func() error
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "partvoice",
	Short: "Voice-driven CAD automation with per-part memory",
	Long: `Partvoice drives a CAD application through natural-language commands and
keeps a durable, semantically searchable history of every operation per
part, so new commands are interpreted in light of prior ones.

Commands are routed through a reasoning engine grounded in retrieved part
memory, validated against a fixed operation schema, dispatched to the CAD
bridge, labeled, and written back to memory.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip collaborator setup for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		if configFile != "" {
			cfg, err = config.LoadFile(configFile)
			if err != nil {
				return err
			}
		} else {
			cfg = config.Load()
		}

		var cleanup func() error
		logger, cleanup = config.SetupLogger(cfg.LogFile, cfg.LogLevel)
		logCleanup = cleanup

		ctx := context.Background()
		dbClient, err = db.NewClient(ctx, db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
			Dimension: cfg.EmbedDimension,
		}, logger)
		if err != nil {
			return fmt.Errorf("connect to memory store: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if dbClient != nil {
			if err := dbClient.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close memory store: %v\n", err)
			}
		}
		if logCleanup != nil {
			_ = logCleanup()
		}
	},
}

// pipeline bundles the per-command processing chain.
type pipeline struct {
	interpreter *interpreter.Interpreter
	executor    *executor.Executor
	bridge      *cad.BridgeClient
	transcriber speech.Transcriber
	queue       *session.Queue
}

// buildPipeline wires the collaborators: embedder and reasoning engine,
// memory manager over the store, interpreter, executor over the CAD
// bridge, and the per-part serial queue.
func buildPipeline(ctx context.Context) (*pipeline, error) {
	embedder, err := llm.NewEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}
	model, err := llm.NewModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init reasoning engine: %w", err)
	}

	mgr := memory.New(dbClient, embedder, logger)
	engine := cad.NewBridgeClient(cfg.CADBridgeURL, cfg.CADVersion)

	return &pipeline{
		interpreter: interpreter.New(mgr, model, cfg.ContextTopK, logger),
		executor:    executor.New(engine, model, mgr, logger),
		bridge:      engine,
		transcriber: speech.NewWhisperClient(cfg.WhisperURL),
		queue:       session.NewQueue(logger),
	}, nil
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVarP(&partID, "part", "p", "", "part identifier")

	rootCmd.AddCommand(doCmd)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(partsCmd)
}

// requirePart validates that a part was selected via --part.
func requirePart() error {
	if partID == "" {
		return fmt.Errorf("no part selected: pass --part <id>")
	}
	return nil
}
