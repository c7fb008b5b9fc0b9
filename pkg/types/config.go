package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout bounds every request made by a stage.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "paper-digest/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// Proxy is an optional proxy URL applied to outgoing requests.
	Proxy string `json:"proxy,omitempty" yaml:"proxy,omitempty" mapstructure:"proxy"`
}

// SocialConfig holds settings for fetching social posts.
type SocialConfig struct {
	// Cookies is the session cookie header for the social platform.
	Cookies string `json:"-" yaml:"cookies,omitempty" mapstructure:"cookies"`
}

// ParseConfig bounds document text extraction.
type ParseConfig struct {
	// PagesPerBatch is the number of pages read per batch (default 10).
	PagesPerBatch int `json:"pages_per_batch" yaml:"pages_per_batch" mapstructure:"pages_per_batch"`

	// MaxChars truncates extracted text (default 50,000).
	MaxChars int `json:"max_chars" yaml:"max_chars" mapstructure:"max_chars"`
}

// GenerationProvider selects the structured-generation backend.
type GenerationProvider string

const (
	ProviderAnthropic GenerationProvider = "anthropic"
	ProviderGemini    GenerationProvider = "gemini"
	ProviderOpenAI    GenerationProvider = "openai"
)

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	// Provider selects anthropic, gemini, or openai.
	Provider GenerationProvider `json:"provider" yaml:"provider" mapstructure:"provider"`

	// Model is the AI model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"-" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// BaseURL overrides the API endpoint for OpenAI-compatible providers.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// MaxTokens caps the response length (default 8192).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`

	// Timeout bounds each generation call.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// LookupConfig holds settings for the bibliographic lookup.
type LookupConfig struct {
	// Interval is the minimum spacing between arXiv API calls (default 3s).
	Interval time.Duration `json:"interval" yaml:"interval" mapstructure:"interval"`
}

// FiguresConfig holds settings for the figure engine.
type FiguresConfig struct {
	// Extractor selects "container" (pdffigures2 image via docker/podman)
	// or "binary" (a pdffigures2 executable on PATH).
	Extractor string `json:"extractor" yaml:"extractor" mapstructure:"extractor"`

	// Image is the container image used by the container extractor.
	Image string `json:"image" yaml:"image" mapstructure:"image"`

	// Binary is the executable used by the binary extractor.
	Binary string `json:"binary" yaml:"binary" mapstructure:"binary"`

	// RulesFile overrides the built-in classification and scoring rules.
	RulesFile string `json:"rules_file,omitempty" yaml:"rules_file,omitempty" mapstructure:"rules_file"`

	// Disabled skips figure extraction entirely.
	Disabled bool `json:"disabled" yaml:"disabled" mapstructure:"disabled"`
}

// DigestConfig holds settings for the renderer.
type DigestConfig struct {
	// TemplateFile overrides the built-in digest section template.
	TemplateFile string `json:"template_file,omitempty" yaml:"template_file,omitempty" mapstructure:"template_file"`

	// BodyChars is the body-text budget of the render prompt (default 20,000).
	BodyChars int `json:"body_chars" yaml:"body_chars" mapstructure:"body_chars"`
}

// NotionConfig holds settings for the persistence adapter.
type NotionConfig struct {
	Token      string `json:"-" yaml:"token,omitempty" mapstructure:"token"`
	DatabaseID string `json:"database_id" yaml:"database_id" mapstructure:"database_id"`
}

// ImagesConfig holds settings for the S3 image host.
type ImagesConfig struct {
	Bucket    string `json:"bucket" yaml:"bucket" mapstructure:"bucket"`
	Region    string `json:"region" yaml:"region" mapstructure:"region"`
	Prefix    string `json:"prefix" yaml:"prefix" mapstructure:"prefix"`
	AccessKey string `json:"-" yaml:"access_key,omitempty" mapstructure:"access_key"`
	SecretKey string `json:"-" yaml:"secret_key,omitempty" mapstructure:"secret_key"`
	// PublicBaseURL overrides the default virtual-hosted S3 URL.
	PublicBaseURL string `json:"public_base_url,omitempty" yaml:"public_base_url,omitempty" mapstructure:"public_base_url"`
}

// PipelineConfig holds orchestration settings.
type PipelineConfig struct {
	// Root is the working directory holding documents/ and outputs/.
	Root string `json:"root" yaml:"root" mapstructure:"root"`

	// Concurrency bounds the number of documents processed at once (default 3).
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`

	// Persist controls whether digests are written to the external store.
	Persist bool `json:"persist" yaml:"persist" mapstructure:"persist"`
}

// LedgerConfig holds settings for the run history database.
type LedgerConfig struct {
	// Path is the SQLite file (default {root}/paper-digest.db).
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// Config groups all stage configurations.
type Config struct {
	HTTP       HTTPConfig     `json:"http" yaml:"http" mapstructure:"http"`
	Social     SocialConfig   `json:"social" yaml:"social" mapstructure:"social"`
	Parse      ParseConfig    `json:"parse" yaml:"parse" mapstructure:"parse"`
	Generation AIConfig       `json:"generation" yaml:"generation" mapstructure:"generation"`
	Lookup     LookupConfig   `json:"lookup" yaml:"lookup" mapstructure:"lookup"`
	Figures    FiguresConfig  `json:"figures" yaml:"figures" mapstructure:"figures"`
	Digest     DigestConfig   `json:"digest" yaml:"digest" mapstructure:"digest"`
	Notion     NotionConfig   `json:"notion" yaml:"notion" mapstructure:"notion"`
	Images     ImagesConfig   `json:"images" yaml:"images" mapstructure:"images"`
	Pipeline   PipelineConfig `json:"pipeline" yaml:"pipeline" mapstructure:"pipeline"`
	Ledger     LedgerConfig   `json:"ledger" yaml:"ledger" mapstructure:"ledger"`
}

// DefaultConfig returns the configuration used when no file or flag overrides it.
func DefaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			Timeout:   60 * time.Second,
			UserAgent: "paper-digest/0.1",
		},
		Parse: ParseConfig{
			PagesPerBatch: 10,
			MaxChars:      50000,
		},
		Generation: AIConfig{
			Provider:  ProviderAnthropic,
			Model:     "claude-sonnet-4-5-20250929",
			MaxTokens: 8192,
			Timeout:   5 * time.Minute,
		},
		Lookup: LookupConfig{
			Interval: 3 * time.Second,
		},
		Figures: FiguresConfig{
			Extractor: "container",
			Image:     "pdffigures2:latest",
			Binary:    "pdffigures2",
		},
		Digest: DigestConfig{
			BodyChars: 20000,
		},
		Images: ImagesConfig{
			Region: "us-east-1",
			Prefix: "paper-digest",
		},
		Pipeline: PipelineConfig{
			Root:        ".",
			Concurrency: 3,
			Persist:     true,
		},
	}
}
