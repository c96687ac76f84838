// Package app builds the process-wide dependencies once at startup.
package app

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/vbonduro/mealsize/internal/auth"
	"github.com/vbonduro/mealsize/internal/config"
	"github.com/vbonduro/mealsize/internal/metrics"
	"github.com/vbonduro/mealsize/internal/photostore/remote"
	"github.com/vbonduro/mealsize/internal/secrets"
	"github.com/vbonduro/mealsize/internal/service"
	"github.com/vbonduro/mealsize/internal/vision"
	claudevision "github.com/vbonduro/mealsize/internal/vision/claude"
	openaivision "github.com/vbonduro/mealsize/internal/vision/openai"
	"github.com/vbonduro/mealsize/internal/web"
)

// App is the application-lifetime context: everything here is created once
// and shared by all invocations.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Secrets *secrets.Chain
	Service *service.MealService
	Server  *web.Server
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	chain, err := newSecretChain(cfg, logger)
	if err != nil {
		return nil, err
	}

	classifier, err := newClassifier(cfg, logger)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	svc := service.NewMealService(classifier, chain, m, logger, service.Options{
		Trusted:       cfg.Trusted(),
		CredentialKey: cfg.CredentialKey,
		ModelTimeout:  cfg.ModelTimeout,
	})

	var verifier auth.Verifier
	if cfg.ProjectID != "" {
		verifier = auth.NewFirebaseVerifier(cfg.ProjectID, auth.NewGoogleKeySource(""))
	}
	if cfg.Trusted() {
		logger.Warn("authentication is not enforced", "emulator", cfg.Emulator, "project_id", cfg.ProjectID)
	}

	return &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: m,
		Secrets: chain,
		Service: svc,
		Server:  web.NewServer(svc, verifier, m.Registry, logger),
	}, nil
}

// Handler exposes the HTTP surface, for embedding in other servers.
func (a *App) Handler() http.Handler { return a.Server }

// newSecretChain orders the credential providers: managed store first,
// process environment last.
func newSecretChain(cfg *config.Config, logger *slog.Logger) (*secrets.Chain, error) {
	var providers []secrets.Provider
	if cfg.VaultAddr != "" {
		vp, err := secrets.NewVaultProvider(secrets.VaultConfig{
			Address: cfg.VaultAddr,
			Token:   cfg.VaultToken,
			Mount:   cfg.VaultMount,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize vault: %w", err)
		}
		providers = append(providers, vp)
	}
	if cfg.SecretsDir != "" {
		providers = append(providers, secrets.NewFileProvider(cfg.SecretsDir))
	}
	providers = append(providers, secrets.NewEnvProvider())

	chain := secrets.NewChain(logger, providers...)
	logger.Info("credential providers configured", "providers", chain.Providers(), "key", cfg.CredentialKey)
	return chain, nil
}

func newClassifier(cfg *config.Config, logger *slog.Logger) (vision.Classifier, error) {
	switch cfg.VisionBackend {
	case "claude":
		logger.Info("using Claude vision backend", "model", cfg.ClaudeModel)
		return claudevision.NewClaudeAnalyzer(cfg.ClaudeModel, remote.NewSource(cfg.AllowInsecureImageURLs)), nil
	case "openai", "":
		logger.Info("using OpenAI vision backend", "model", cfg.OpenAIModel, "base_url", cfg.OpenAIBaseURL)
		return openaivision.NewOpenAIClassifier(cfg.OpenAIModel, cfg.OpenAIBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown vision backend %q", cfg.VisionBackend)
	}
}
