package internal

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/alignos/internal/ingest"
)

// pathPattern matches an absolute URL path.
var pathPattern = regexp.MustCompile(`^/[A-Za-z0-9/_.-]*$`)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Storage StorageConfig     `yaml:"storage"`
	Auth    AuthConfig        `yaml:"auth"`
	AI      AIConfig          `yaml:"ai"`
	Speech  SpeechConfig      `yaml:"speech"`
	Voice   VoiceConfig       `yaml:"voice"`
	Ingest  IngestConfig      `yaml:"ingest"`
	Inbox   InboxConfig       `yaml:"inbox"`
	Graph   GraphConfig       `yaml:"graph"`
	Metrics MetricsConfig     `yaml:"metrics"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.SQLite, &c.Storage, &c.Auth, &c.AI, &c.Speech,
		&c.Voice, &c.Ingest, &c.Inbox, &c.Graph, &c.Metrics,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// StorageConfig holds the object store root for uploaded originals.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// AIConfig points at the AI completion gateway. An empty APIKey leaves
// extraction, OCR and queries unavailable.
type AIConfig struct {
	GatewayURL      string        `yaml:"gateway_url"`
	APIKey          string        `yaml:"api_key"`
	ExtractionModel string        `yaml:"extraction_model"`
	OCRModel        string        `yaml:"ocr_model"`
	QueryModel      string        `yaml:"query_model"`
	Timeout         time.Duration `yaml:"timeout"`
}

// Validate validates the AI configuration.
func (c *AIConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.GatewayURL, validation.Required),
		validation.Field(&c.ExtractionModel, validation.Required),
		validation.Field(&c.OCRModel, validation.Required),
		validation.Field(&c.QueryModel, validation.Required),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// SpeechConfig configures Deepgram transcription.
type SpeechConfig struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// Validate validates the speech configuration.
func (c *SpeechConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// VoiceConfig configures ElevenLabs conversational sessions.
type VoiceConfig struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	AgentID string        `yaml:"agent_id"`
	Timeout time.Duration `yaml:"timeout"`
}

// Validate validates the voice configuration.
func (c *VoiceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// IngestConfig bounds file uploads.
type IngestConfig struct {
	MaxFileBytes      int64    `yaml:"max_file_bytes"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
	PDFMode           string   `yaml:"pdf_mode"`
}

// Validate validates the ingest configuration.
func (c *IngestConfig) Validate() error {
	if c.PDFMode == "" {
		c.PDFMode = ingest.PDFModeAI
	}
	for i, ext := range c.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.AllowedExtensions[i] = ext
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxFileBytes, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.AllowedExtensions, validation.Required, validation.Each(validation.Required)),
		validation.Field(&c.PDFMode, validation.In(ingest.PDFModeAI, ingest.PDFModeLocal)),
	)
}

// InboxConfig configures the watched drop directory.
type InboxConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	AutoExtract bool   `yaml:"auto_extract"`
}

// Validate validates the inbox configuration.
func (c *InboxConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Enabled, validation.Required)),
	)
}

// GraphConfig holds graph view defaults.
type GraphConfig struct {
	Width              float64       `yaml:"width"`
	Height             float64       `yaml:"height"`
	SessionTTL         time.Duration `yaml:"session_ttl"`
	MaxTicks           int           `yaml:"max_ticks"`
	ChangefeedThrottle time.Duration `yaml:"changefeed_throttle"`
}

// Validate validates the graph configuration.
func (c *GraphConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Width, validation.Required, validation.Min(float64(1))),
		validation.Field(&c.Height, validation.Required, validation.Min(float64(1))),
		validation.Field(&c.SessionTTL, validation.Required),
		validation.Field(&c.MaxTicks, validation.Min(0)),
		validation.Field(&c.ChangefeedThrottle, validation.Min(time.Duration(0))),
	)
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Validate validates the metrics configuration.
func (c *MetricsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Enabled, validation.Required, validation.Match(pathPattern))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./alignos.db",
		},
		Storage: StorageConfig{
			Path: "./data/uploads",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		AI: AIConfig{
			GatewayURL:      "https://ai.gateway.lovable.dev",
			ExtractionModel: "google/gemini-3-flash-preview",
			OCRModel:        "google/gemini-2.5-flash",
			QueryModel:      "google/gemini-2.5-flash",
			Timeout:         60 * time.Second,
		},
		Speech: SpeechConfig{
			Model:   "nova-2",
			Timeout: 60 * time.Second,
		},
		Voice: VoiceConfig{
			Timeout: 15 * time.Second,
		},
		Ingest: IngestConfig{
			MaxFileBytes:      ingest.DefaultMaxFileBytes,
			AllowedExtensions: append([]string(nil), ingest.DefaultExtensions...),
			PDFMode:           ingest.PDFModeAI,
		},
		Inbox: InboxConfig{
			Path: "./data/inbox",
		},
		Graph: GraphConfig{
			Width:              800,
			Height:             600,
			SessionTTL:         30 * time.Minute,
			MaxTicks:           500,
			ChangefeedThrottle: 2 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}
