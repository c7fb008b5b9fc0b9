// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the paper-digest CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paper-digest/internal/secrets"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ and .env at startup.
var loadedSecrets map[string]string

// secretDefault returns the secret value for key if it exists, or fallback otherwise.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the paper-digest CLI.
var rootCmd = &cobra.Command{
	Use:   "paper-digest",
	Short: "Turn paper links into Chinese digests",
	Long: `paper-digest takes links to research papers (arXiv pages, PDF URLs,
social posts that mention a paper, or local PDF files), downloads and reads
each paper, writes a structured Chinese digest with the paper's key figures,
and files the digest in a Notion database.

Run "paper-digest digest <links...>" to process papers. Every run is recorded
in a local history database; "paper-digest history" lists past runs.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		setupLogging(verbose)

		s, err := secrets.LoadAll(".secrets/", ".env")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			slog.Debug("loaded secrets", "keys", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./paper-digest.yaml or ~/.config/paper-digest/paper-digest.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log debug output")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("paper-digest")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "paper-digest"))
		}
	}

	viper.SetEnvPrefix("PAPER_DIGEST")
	viper.SetEnvKeyReplacer(replacer())
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// replacer maps nested config keys to environment names:
// generation.api_key is read from PAPER_DIGEST_GENERATION_API_KEY.
func replacer() *strings.Replacer {
	return strings.NewReplacer(".", "_")
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// loadConfig returns the defaults overlaid with the config file and
// environment, with credentials filled in from loaded secrets.
func loadConfig() (types.Config, error) {
	cfg := types.DefaultConfig()
	bindEnv()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	cfg.Generation.APIKey = secretDefault(providerSecret(cfg.Generation.Provider), cfg.Generation.APIKey)
	cfg.Notion.Token = secretDefault(secrets.NotionToken, cfg.Notion.Token)
	cfg.Notion.DatabaseID = secretDefault(secrets.NotionDatabaseID, cfg.Notion.DatabaseID)
	cfg.Social.Cookies = secretDefault(secrets.SocialCookies, cfg.Social.Cookies)
	cfg.Images.AccessKey = secretDefault(secrets.AWSAccessKey, cfg.Images.AccessKey)
	cfg.Images.SecretKey = secretDefault(secrets.AWSSecretKey, cfg.Images.SecretKey)
	return cfg, nil
}

// providerSecret names the secret holding the API key for provider.
func providerSecret(provider types.GenerationProvider) string {
	switch provider {
	case types.ProviderGemini:
		return secrets.GeminiAPIKey
	case types.ProviderOpenAI:
		return secrets.OpenAIAPIKey
	default:
		return secrets.AnthropicAPIKey
	}
}

// bindEnv registers every config key so AutomaticEnv can fill keys that
// appear in no config file, e.g. PAPER_DIGEST_NOTION_DATABASE_ID.
func bindEnv() {
	for _, key := range []string{
		"http.timeout", "http.user_agent", "http.proxy",
		"social.cookies",
		"parse.pages_per_batch", "parse.max_chars",
		"generation.provider", "generation.model", "generation.api_key",
		"generation.base_url", "generation.max_tokens", "generation.timeout",
		"lookup.interval",
		"figures.extractor", "figures.image", "figures.binary", "figures.rules_file", "figures.disabled",
		"digest.template_file", "digest.body_chars",
		"notion.token", "notion.database_id",
		"images.bucket", "images.region", "images.prefix",
		"images.access_key", "images.secret_key", "images.public_base_url",
		"pipeline.root", "pipeline.concurrency", "pipeline.persist",
		"ledger.path",
	} {
		_ = viper.BindEnv(key)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
