package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "diligence-engine/0.1"). The registry client appends the
	// configured contact email per the provider's access policy.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// RegistryConfig holds settings for the filings registry client.
type RegistryConfig struct {
	HTTPConfig `yaml:",inline"`

	// ContactEmail identifies the operator to the registry; appended to the
	// User-Agent header.
	ContactEmail string `json:"contact_email" yaml:"contact_email"`

	// RateLimit is the maximum number of registry requests per RateWindow
	// (default 10).
	RateLimit int `json:"rate_limit" yaml:"rate_limit"`

	// RateWindow is the sliding window the rate limit applies to (default 1s).
	RateWindow time.Duration `json:"rate_window" yaml:"rate_window"`
}

// MarketDataConfig holds settings for the market data client.
type MarketDataConfig struct {
	HTTPConfig `yaml:",inline"`

	// APIKey authenticates requests to the market data provider.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// RateLimit is the maximum number of provider requests per RateWindow
	// (default 5).
	RateLimit int `json:"rate_limit" yaml:"rate_limit"`

	// RateWindow is the sliding window the rate limit applies to (default 1m).
	RateWindow time.Duration `json:"rate_window" yaml:"rate_window"`
}

// ShortInterestConfig holds settings for the short-interest client.
// With an empty ClientID the client uses the legacy flat-file feed.
type ShortInterestConfig struct {
	HTTPConfig `yaml:",inline"`

	// ClientID is the OAuth client identifier.
	ClientID string `json:"client_id,omitempty" yaml:"client_id,omitempty"`

	// ClientSecret is the OAuth client secret.
	ClientSecret string `json:"client_secret,omitempty" yaml:"client_secret,omitempty"`
}

// RenderEngine identifies the portable-document rendering tool.
type RenderEngine string

const (
	EngineAuto        RenderEngine = "auto"
	EngineWkhtmltopdf RenderEngine = "wkhtmltopdf"
	EngineChromium    RenderEngine = "chromium"
)

// RenderConfig holds settings for document rendering.
type RenderConfig struct {
	// Engine selects the rendering tool, or "auto" to probe for one.
	Engine RenderEngine `json:"engine" yaml:"engine"`
}

// LedgerConfig holds settings for the run ledger.
type LedgerConfig struct {
	// Path is the SQLite database file (default "diligence.db").
	Path string `json:"path" yaml:"path"`
}

// AssemblyConfig holds settings for package assembly.
type AssemblyConfig struct {
	// OutputDir is the directory package runs are written under.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// DocumentTimeout bounds a single document fetch, including retries
	// (default 5m).
	DocumentTimeout time.Duration `json:"document_timeout" yaml:"document_timeout"`

	// DownloadWorkers bounds parallel downloads within one category
	// (default 4). The shared rate limiter still gates every request.
	DownloadWorkers int `json:"download_workers" yaml:"download_workers"`
}

// PipelineConfig groups all stage configurations for the pipeline.
type PipelineConfig struct {
	Registry      RegistryConfig      `json:"registry" yaml:"registry"`
	MarketData    MarketDataConfig    `json:"market_data" yaml:"market_data"`
	ShortInterest ShortInterestConfig `json:"short_interest" yaml:"short_interest"`
	Render        RenderConfig        `json:"render" yaml:"render"`
	Ledger        LedgerConfig        `json:"ledger" yaml:"ledger"`
	Assembly      AssemblyConfig      `json:"assembly" yaml:"assembly"`
}
