// FolioIQ is a portfolio intelligence briefing engine.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/folioiq/folioiq/api"
	"github.com/folioiq/folioiq/internal/briefing"
	"github.com/folioiq/folioiq/internal/config"
	"github.com/folioiq/folioiq/internal/llm"
	"github.com/folioiq/folioiq/internal/marketdata"
	"github.com/folioiq/folioiq/internal/store"
	"github.com/folioiq/folioiq/pkg/logger"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var (
	cfg *config.Config
	log zerolog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "folioiq",
	Short: "Portfolio intelligence briefing engine",
	Long: `FolioIQ generates hedge-fund-style intelligence briefings for a
stock portfolio: live market data, macro context, recent headlines, and
a dialectical per-position analysis from an LLM analyst.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			cfg.Logging.Level = level
		}
		log = logger.New(logger.Config{
			Level:  cfg.Logging.Level,
			Pretty: cfg.Logging.Pretty,
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(briefingCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("FolioIQ %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, compiler, err := buildServices()
		if err != nil {
			return err
		}
		defer st.Close()

		srv := api.NewServer(st, compiler,
			api.WithServerLogger(log),
			api.WithCORSOrigins(cfg.Server.CORSOrigins))
		log.Info().Str("addr", cfg.Server.Addr()).Msg("starting API server")
		return srv.ListenAndServe(cfg.Server.Addr())
	},
}

// --- Briefing Command (one-shot) ---

var briefingCmd = &cobra.Command{
	Use:   "briefing [portfolio-id]",
	Short: "Generate a briefing and print it as JSON",
	Long: `Generate an intelligence briefing for a portfolio and print the
result to stdout. Without an argument the first portfolio is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, compiler, err := buildServices()
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := context.Background()

		var portfolioID uuid.UUID
		if len(args) == 1 {
			portfolioID, err = uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid portfolio id %q: %w", args[0], err)
			}
		} else {
			portfolios, err := st.ListPortfolios(ctx)
			if err != nil {
				return err
			}
			if len(portfolios) == 0 {
				return fmt.Errorf("no portfolios found")
			}
			portfolioID = portfolios[0].ID
		}

		p, err := st.GetPortfolio(ctx, portfolioID)
		if err != nil {
			return err
		}

		resp, err := compiler.Compile(ctx, p)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}

// buildServices wires the store, market data pipeline, LLM analyst, and
// briefing compiler from the loaded configuration.
func buildServices() (*store.Store, *briefing.Compiler, error) {
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	yahoo := marketdata.NewYahoo()

	var newsOpts []marketdata.NewsOption
	if len(cfg.Market.NewsFeeds) > 0 {
		feeds := make([]marketdata.FeedSource, 0, len(cfg.Market.NewsFeeds))
		for _, u := range cfg.Market.NewsFeeds {
			feeds = append(feeds, marketdata.FeedSource{Name: "Custom Feed", RSSURL: u})
		}
		newsOpts = append(newsOpts, marketdata.WithFeeds(append(marketdata.DefaultFeeds, feeds...)))
	}
	if cfg.Market.NewsLimit > 0 {
		newsOpts = append(newsOpts, marketdata.WithNewsLimit(cfg.Market.NewsLimit))
	}
	news := marketdata.NewNews(newsOpts...)

	var asmOpts []marketdata.AssemblerOption
	asmOpts = append(asmOpts, marketdata.WithLogger(log))
	if len(cfg.Market.Indicators) > 0 {
		asmOpts = append(asmOpts, marketdata.WithIndicators(cfg.Market.Indicators))
	}
	if cfg.Market.FetchTimeoutSec > 0 {
		asmOpts = append(asmOpts, marketdata.WithFetchTimeout(time.Duration(cfg.Market.FetchTimeoutSec)*time.Second))
	}
	if cfg.Market.CacheTTLSec > 0 {
		asmOpts = append(asmOpts, marketdata.WithSnapshotTTL(time.Duration(cfg.Market.CacheTTLSec)*time.Second))
	}
	assembler := marketdata.NewAssembler(yahoo, yahoo, news, asmOpts...)

	provider, err := llm.New(cfg.LLM)
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("llm setup: %w", err)
	}
	log.Info().Str("provider", provider.Name()).Msg("llm provider configured")

	analyst := briefing.NewLLMAnalyst(provider,
		briefing.WithTemperature(cfg.LLM.Temperature),
		briefing.WithMaxTokens(cfg.LLM.MaxTokens),
		briefing.WithTimeout(time.Duration(cfg.LLM.TimeoutSec)*time.Second),
		briefing.WithAnalystLogger(log),
	)

	compiler := briefing.NewCompiler(assembler, analyst,
		briefing.WithCompilerLogger(log))

	return st, compiler, nil
}
