package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr    string
	VisionBackend string
	OpenAIModel   string
	OpenAIBaseURL string
	ClaudeModel   string
	// CredentialKey is the secret name holding the backend API key.
	CredentialKey string
	ModelTimeout  time.Duration

	// ProjectID is the Firebase/GCP project ID callers authenticate against.
	ProjectID string
	// Emulator is set when running under the Functions emulator.
	Emulator bool

	VaultAddr  string
	VaultToken string
	VaultMount string
	SecretsDir string

	AllowInsecureImageURLs bool

	LogLevel  string
	LogFormat string
	LogFile   string
}

// Load reads the configuration from the environment. Values from .env and
// .env.local fill in variables the environment does not set.
func Load() *Config {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}

	backend := strings.ToLower(getEnv("VISION_BACKEND", "openai"))
	return &Config{
		ListenAddr:             getEnv("LISTEN_ADDR", ":"+getEnv("PORT", "8080")),
		VisionBackend:          backend,
		OpenAIModel:            getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:          getEnv("OPENAI_BASE_URL", ""),
		ClaudeModel:            getEnv("CLAUDE_MODEL", "claude-3-5-haiku-latest"),
		CredentialKey:          getEnv("CREDENTIAL_KEY", defaultCredentialKey(backend)),
		ModelTimeout:           getDuration("MODEL_TIMEOUT", 25*time.Second),
		ProjectID:              getEnv("GCLOUD_PROJECT", getEnv("GOOGLE_CLOUD_PROJECT", "")),
		Emulator:               os.Getenv("FUNCTIONS_EMULATOR") == "true",
		VaultAddr:              getEnv("VAULT_ADDR", ""),
		VaultToken:             getEnv("VAULT_TOKEN", ""),
		VaultMount:             getEnv("VAULT_SECRET_MOUNT", "secret"),
		SecretsDir:             getEnv("SECRETS_DIR", ""),
		AllowInsecureImageURLs: getEnv("ALLOW_INSECURE_IMAGE_URLS", "") == "true",
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		LogFormat:              getEnv("LOG_FORMAT", "json"),
		LogFile:                getEnv("LOG_FILE", ""),
	}
}

// Trusted reports whether authentication is waived: under the emulator, or
// when no project is configured to verify tokens against.
func (c *Config) Trusted() bool {
	return c.Emulator || c.ProjectID == ""
}

func defaultCredentialKey(backend string) string {
	if backend == "claude" {
		return "ANTHROPIC_API_KEY"
	}
	return "OPENAI_API_KEY"
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
