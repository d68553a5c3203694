package cmd

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/haasonsaas/buildli/internal/config"
	"github.com/haasonsaas/buildli/internal/indexer"
	"github.com/haasonsaas/buildli/internal/provider"
	"github.com/haasonsaas/buildli/internal/query"
	"github.com/haasonsaas/buildli/internal/vectorstore"
	"github.com/haasonsaas/buildli/pkg/core/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

// Styled status markers for command output
var (
	okMark   = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Render("✓")
	failMark = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Render("✗")
	warnMark = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).Render("⚠")
	infoMark = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")).Render("ℹ")
)

var rootCmd = &cobra.Command{
	Use:   "buildli",
	Short: "Ask your codebase questions in plain English",
	Long: `buildli indexes source trees into a local vector store and answers
natural language questions about the code, grounded on the most
relevant chunks.

Typical workflow:
  buildli index ~/src/myproject     # build the index
  buildli query "where is auth?"    # ask about the code
  buildli serve                     # expose the API over HTTP and gRPC
  buildli status                    # check server connectivity`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: "+config.Path()+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig reads the config file named by --config (or the default
// location) and applies the log level.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.LoadFile(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if verbose {
		logging.SetGlobalLevel("debug")
	} else {
		logging.SetGlobalLevel(cfg.Log.Level)
	}
	return cfg, nil
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.Path()
}

// openStore opens the configured vector store backend
func openStore(cfg *config.Config) (vectorstore.Store, error) {
	return vectorstore.New(cfg.Vector.Backend, cfg.Vector.Path)
}

// newIndexer builds an indexer on the given store
func newIndexer(cfg *config.Config, mgr *provider.Manager, store vectorstore.Store) *indexer.Indexer {
	return indexer.New(indexer.Options{
		Embedder:   mgr.Embedder(),
		Store:      store,
		Collection: cfg.Vector.Collection,
		EmbedModel: cfg.Embedding.Model,
		BatchSize:  cfg.Embedding.BatchSize,
	})
}

// newEngine builds a query engine on the given store
func newEngine(cfg *config.Config, mgr *provider.Manager, store vectorstore.Store) *query.Engine {
	return query.New(query.Options{
		Embedder:    mgr.Embedder(),
		LLM:         mgr.LLM(),
		Store:       store,
		Collection:  cfg.Vector.Collection,
		EmbedModel:  cfg.Embedding.Model,
		ChatModel:   cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
	})
}
