// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paper-digest/internal/digest"
	"github.com/pdiddy/paper-digest/internal/figures"
	"github.com/pdiddy/paper-digest/internal/httputil"
	"github.com/pdiddy/paper-digest/internal/ledger"
	"github.com/pdiddy/paper-digest/internal/llm"
	"github.com/pdiddy/paper-digest/internal/notion"
	"github.com/pdiddy/paper-digest/internal/objectstore"
	"github.com/pdiddy/paper-digest/internal/pipeline"
	"github.com/pdiddy/paper-digest/internal/search"
	"github.com/pdiddy/paper-digest/pkg/types"
)

var digestCmd = &cobra.Command{
	Use:   "digest [links...]",
	Short: "Download, read, and digest papers",
	Long: `Digest runs each link through the full pipeline: classify the link,
download the paper, read its text and metadata, extract and score its
figures, write the Chinese digest to outputs/, and save it to Notion.

Links may be arXiv pages, direct PDF URLs, social posts that mention a
paper, publisher pages, or paths to local PDF files. Up to --concurrency
papers are processed at once; a failure in one does not stop the others.`,
	RunE: runDigest,
}

func init() {
	addDigestFlags(digestCmd)
	rootCmd.AddCommand(digestCmd)
}

func addDigestFlags(cmd *cobra.Command) {
	cmd.Flags().String("root", "", "working directory holding documents/ and outputs/ (default .)")
	cmd.Flags().Int("concurrency", 0, "papers processed at once (default 3)")
	cmd.Flags().Bool("no-persist", false, "write digests locally without saving to Notion")
	cmd.Flags().Bool("no-figures", false, "skip figure extraction")
	cmd.Flags().String("provider", "", "generation provider: anthropic, gemini, or openai")
	cmd.Flags().String("model", "", "generation model identifier")
	cmd.Flags().Duration("timeout", 0, "HTTP request timeout (default 60s)")
	cmd.Flags().String("proxy", "", "proxy URL for outgoing requests")
}

func runDigest(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide one or more paper links or local PDF paths")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyDigestFlags(cmd, &cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	p, cleanup, err := buildPipeline(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer cleanup()

	reports := p.RunBatch(ctx, args)
	summary := pipeline.Summarize(reports, os.Stdout)
	if summary.HasFailures() {
		return fmt.Errorf("%d of %d paper(s) failed", summary.Failed, summary.Total())
	}
	return nil
}

func applyDigestFlags(cmd *cobra.Command, cfg *types.Config) {
	if root, _ := cmd.Flags().GetString("root"); root != "" {
		cfg.Pipeline.Root = root
	}
	if n, _ := cmd.Flags().GetInt("concurrency"); n > 0 {
		cfg.Pipeline.Concurrency = n
	}
	if noPersist, _ := cmd.Flags().GetBool("no-persist"); noPersist {
		cfg.Pipeline.Persist = false
	}
	if noFigures, _ := cmd.Flags().GetBool("no-figures"); noFigures {
		cfg.Figures.Disabled = true
	}
	if provider, _ := cmd.Flags().GetString("provider"); provider != "" {
		cfg.Generation.Provider = types.GenerationProvider(provider)
		// The key loaded for the configured provider does not apply; an
		// explicitly configured key still does.
		cfg.Generation.APIKey = secretDefault(providerSecret(cfg.Generation.Provider), viper.GetString("generation.api_key"))
	}
	if model, _ := cmd.Flags().GetString("model"); model != "" {
		cfg.Generation.Model = model
	}
	if timeout, _ := cmd.Flags().GetDuration("timeout"); timeout > 0 {
		cfg.HTTP.Timeout = timeout
	}
	if proxy, _ := cmd.Flags().GetString("proxy"); proxy != "" {
		cfg.HTTP.Proxy = proxy
	}
}

// buildPipeline wires the pipeline's dependencies from cfg. The returned
// cleanup closes the ledger.
func buildPipeline(ctx context.Context, cfg types.Config, logger *slog.Logger) (*pipeline.Pipeline, func(), error) {
	client, err := httputil.NewClient(cfg.HTTP)
	if err != nil {
		return nil, nil, err
	}

	// Generation calls run far longer than page fetches.
	genClient := *client
	genClient.Timeout = cfg.Generation.Timeout
	gen, err := llm.New(ctx, cfg.Generation, &genClient)
	if err != nil {
		return nil, nil, err
	}

	rules, err := figures.LoadRules(cfg.Figures.RulesFile)
	if err != nil {
		return nil, nil, err
	}

	renderer, err := digest.NewRenderer(gen, cfg.Digest, rules, logger)
	if err != nil {
		return nil, nil, err
	}

	p := &pipeline.Pipeline{
		Config:    cfg,
		Client:    client,
		Generator: gen,
		Arxiv: &search.ArxivClient{
			Client:    client,
			UserAgent: cfg.HTTP.UserAgent,
			Throttle:  httputil.NewThrottle(cfg.Lookup.Interval),
		},
		Rules:    rules,
		Renderer: renderer,
		Logger:   logger,
	}

	if !cfg.Figures.Disabled {
		extractor, err := figures.NewExtractor(cfg.Figures)
		if err != nil {
			return nil, nil, err
		}
		p.Figures = extractor
	}

	if cfg.Pipeline.Persist {
		store, err := notion.New(cfg.Notion, client, logger)
		switch {
		case errors.Is(err, notion.ErrNotConfigured):
			logger.Warn("Notion not configured; digests are written locally only")
		case err != nil:
			return nil, nil, err
		default:
			p.Persister = store
		}

		images, err := objectstore.New(ctx, cfg.Images)
		switch {
		case errors.Is(err, objectstore.ErrNotConfigured):
			logger.Debug("image bucket not configured; figures are saved as text placeholders")
		case err != nil:
			return nil, nil, err
		default:
			p.Images = images
		}
	}

	runs, err := ledger.Open(cfg.Ledger, cfg.Pipeline.Root)
	if err != nil {
		return nil, nil, err
	}
	p.Ledger = runs

	return p, func() { runs.Close() }, nil
}
