package common

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	EngineNative    = "native"
	EnginePdftotext = "pdftotext"

	LedgerSQLite   = "sqlite"
	LedgerPostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	LLM     LLMConfig     `yaml:"llm"`
	PDF     PDFConfig     `yaml:"pdf"`
	Ledger  LedgerConfig  `yaml:"ledger"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr       string `yaml:"http_addr"`
	GRPCHealthAddr string `yaml:"grpc_health_addr"`
	MaxUploadMB    int    `yaml:"max_upload_mb"`
}

// StorageConfig names the two output directories.
type StorageConfig struct {
	JSONDir  string `yaml:"json_dir"`
	TableDir string `yaml:"table_dir"`
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"-"`
	Timeout     time.Duration `yaml:"timeout"`
	SecretsFile string        `yaml:"secrets_file"`
}

// PDFConfig selects the text extraction engine.
type PDFConfig struct {
	Engine    string `yaml:"engine"`
	Pdftotext string `yaml:"pdftotext"`
}

// LedgerConfig configures the optional run ledger. An empty DSN disables it.
type LedgerConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// Enabled reports whether a ledger DSN is configured.
func (l LedgerConfig) Enabled() bool { return strings.TrimSpace(l.DSN) != "" }

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:    ":8501",
			MaxUploadMB: 32,
		},
		Storage: StorageConfig{
			JSONDir:  "json",
			TableDir: "table",
		},
		LLM: LLMConfig{
			Provider:    ProviderGemini,
			SecretsFile: "secrets.toml",
		},
		PDF: PDFConfig{
			Engine:    EngineNative,
			Pdftotext: "pdftotext",
		},
		Ledger: LedgerConfig{
			Driver: LedgerSQLite,
		},
	}
}

// LoadConfig layers defaults, the YAML file at path (skipped when it does not
// exist) and environment variables, then resolves the provider API key.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, NewAppError("CONFIG_ERROR", fmt.Sprintf("parse %s", path), err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, NewAppError("CONFIG_ERROR", fmt.Sprintf("read %s", path), err)
		}
	}

	cfg.Server.HTTPAddr = getEnv("HTTP_ADDR", cfg.Server.HTTPAddr)
	cfg.Server.GRPCHealthAddr = getEnv("GRPC_HEALTH_ADDR", cfg.Server.GRPCHealthAddr)
	cfg.Server.MaxUploadMB = getEnvAsInt("MAX_UPLOAD_MB", cfg.Server.MaxUploadMB)
	cfg.Storage.JSONDir = getEnv("JSON_DIR", cfg.Storage.JSONDir)
	cfg.Storage.TableDir = getEnv("TABLE_DIR", cfg.Storage.TableDir)
	cfg.LLM.Provider = strings.ToLower(getEnv("LLM_PROVIDER", cfg.LLM.Provider))
	cfg.LLM.Model = getEnv("LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.BaseURL = getEnv("LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.Timeout = getEnvAsDuration("LLM_TIMEOUT", cfg.LLM.Timeout)
	cfg.LLM.SecretsFile = getEnv("SECRETS_FILE", cfg.LLM.SecretsFile)
	cfg.PDF.Engine = strings.ToLower(getEnv("PDF_ENGINE", cfg.PDF.Engine))
	cfg.PDF.Pdftotext = getEnv("PDFTOTEXT_BIN", cfg.PDF.Pdftotext)
	cfg.Ledger.Driver = strings.ToLower(getEnv("LEDGER_DRIVER", cfg.Ledger.Driver))
	cfg.Ledger.DSN = getEnv("LEDGER_DSN", cfg.Ledger.DSN)

	key, err := ResolveAPIKey(cfg.LLM.Provider, cfg.LLM.SecretsFile)
	if err != nil {
		return nil, err
	}
	cfg.LLM.APIKey = key
	return cfg, nil
}

// APIKeyEnv names the environment variable holding the key for provider.
func APIKeyEnv(provider string) string {
	if provider == ProviderOpenAI {
		return "OPENAI_API_KEY"
	}
	return "GOOGLE_API_KEY"
}

// ResolveAPIKey returns the provider credential from the environment or,
// failing that, from the TOML secrets file. A missing file yields "".
func ResolveAPIKey(provider, secretsFile string) (string, error) {
	name := APIKeyEnv(provider)
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v, nil
	}
	if secretsFile == "" {
		return "", nil
	}

	secrets := map[string]any{}
	if _, err := toml.DecodeFile(secretsFile, &secrets); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", NewAppError("CONFIG_ERROR", fmt.Sprintf("decode %s", secretsFile), err)
	}
	if v, ok := secrets[name].(string); ok {
		return strings.TrimSpace(v), nil
	}
	return "", nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator().
		Field("llm.provider", c.LLM.Provider, OneOf(ProviderGemini, ProviderOpenAI)).
		Field("pdf.engine", c.PDF.Engine, OneOf(EngineNative, EnginePdftotext)).
		Field("storage.json_dir", c.Storage.JSONDir, Required).
		Field("storage.table_dir", c.Storage.TableDir, Required).
		Field("server.http_addr", c.Server.HTTPAddr, Required).
		Field("server.max_upload_mb", c.Server.MaxUploadMB, Positive)
	if c.Ledger.Enabled() {
		v.Field("ledger.driver", c.Ledger.Driver, OneOf(LedgerSQLite, LedgerPostgres))
	}
	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrInvalidInput)
	}
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", APIKeyEnv(c.LLM.Provider)+" is required", ErrInvalidInput)
	}
	return nil
}
