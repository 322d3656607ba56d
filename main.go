package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"practice-trading-engine/config"
	"practice-trading-engine/internal/api"
	"practice-trading-engine/internal/auth"
	"practice-trading-engine/internal/database"
	"practice-trading-engine/internal/events"
	"practice-trading-engine/internal/logging"
	"practice-trading-engine/internal/narrative"
	"practice-trading-engine/internal/scenario"
	"practice-trading-engine/internal/vault"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logger, err := logging.New(&logging.Config{
		Level:  cfg.LoggingConfig.Level,
		Format: cfg.LoggingConfig.Format,
		Output: cfg.LoggingConfig.Output,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	logger.Info().Msg("Structured logging initialized")

	// Initialize event bus
	eventBus := events.NewEventBus()

	// Initialize Vault for narrative API keys
	vaultClient, err := vault.NewClient(cfg.VaultConfig)
	if err != nil {
		logger.Warn().Err(err).Msg("Vault unavailable, using configured API keys only")
		vaultClient = vault.NewMockClient()
	}
	if vaultClient.IsEnabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := vaultClient.Health(ctx); err != nil {
			logger.Warn().Err(err).Msg("Vault health check failed")
		}
		cancel()
	}

	// Initialize database (optional)
	var repo *database.Repository
	if cfg.DatabaseConfig.Enabled {
		db, err := database.NewDB(database.Config{
			DSN:      cfg.DatabaseConfig.DSN(),
			MaxConns: int32(cfg.DatabaseConfig.MaxConns),
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()

		if err := db.RunMigrations(context.Background()); err != nil {
			logger.Fatal().Err(err).Msg("Failed to run migrations")
		}
		repo = database.NewRepository(db)
		logger.Info().Msg("Database initialized")
	} else {
		logger.Info().Msg("Database disabled, running in-memory only")
	}

	// Initialize scenario cache (Redis with in-memory fallback)
	cacheCfg := database.RedisConfig{
		Password: cfg.RedisConfig.Password,
		DB:       cfg.RedisConfig.DB,
		PoolSize: cfg.RedisConfig.PoolSize,
		TTL:      time.Duration(cfg.RedisConfig.TTL) * time.Second,
	}
	if cfg.RedisConfig.Enabled {
		cacheCfg.Address = cfg.RedisConfig.Address
	}
	cache := database.NewScenarioCache(cacheCfg, logger)
	defer cache.Close()

	// Initialize narrative provider
	provider := buildNarrativeProvider(cfg, vaultClient, logger)

	// Initialize scenario generator
	generator := scenario.NewGenerator(provider, logger)

	// Initialize authentication (optional)
	var authService *auth.Service
	if cfg.AuthConfig.Enabled {
		if repo == nil {
			logger.Fatal().Msg("Authentication requires the database to be enabled")
		}
		authService, err = auth.NewService(repo, auth.Config{
			JWTSecret:           cfg.AuthConfig.JWTSecret,
			AccessTokenDuration: cfg.AuthConfig.AccessTokenDuration,
			MinPasswordLength:   cfg.AuthConfig.MinPasswordLength,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize authentication")
		}
		logger.Info().Msg("Authentication enabled")
	}

	// Initialize and start the API server
	server := api.NewServer(cfg, repo, cache, generator, authService, eventBus, vaultClient, logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("API server failed")
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")

	shutdownTimeout := time.Duration(cfg.ServerConfig.ShutdownTimeout) * time.Second
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}
	logger.Info().Msg("Shutdown complete")
}

// buildNarrativeProvider wires the LLM narrative client when enabled and
// configured, preferring API keys stored in Vault over the config file.
// Anything short of a fully configured client falls back to the static
// provider.
func buildNarrativeProvider(cfg *config.Config, vaultClient *vault.Client, logger zerolog.Logger) narrative.Provider {
	if !cfg.NarrativeConfig.Enabled {
		logger.Info().Msg("Narrative provider disabled, using static scenarios")
		return narrative.NewStatic()
	}

	providerName := cfg.NarrativeConfig.LLMProvider
	if providerName == "" {
		providerName = string(narrative.ProviderClaude)
	}

	apiKey := ""
	switch narrative.LLMProvider(providerName) {
	case narrative.ProviderClaude:
		apiKey = cfg.NarrativeConfig.ClaudeAPIKey
	case narrative.ProviderOpenAI:
		apiKey = cfg.NarrativeConfig.OpenAIAPIKey
	case narrative.ProviderDeepSeek:
		apiKey = cfg.NarrativeConfig.DeepSeekAPIKey
	}

	model := cfg.NarrativeConfig.LLMModel

	if vaultClient.IsEnabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		secret, err := vaultClient.GetProviderSecret(ctx, providerName)
		cancel()
		if err != nil {
			logger.Warn().Err(err).Str("provider", providerName).Msg("Vault secret lookup failed")
		} else if secret != nil {
			if secret.APIKey != "" {
				apiKey = secret.APIKey
			}
			if secret.Model != "" {
				model = secret.Model
			}
		}
	}

	clientCfg := narrative.DefaultClientConfig()
	clientCfg.Provider = narrative.LLMProvider(providerName)
	clientCfg.APIKey = apiKey
	if model != "" {
		clientCfg.Model = model
	}
	if cfg.NarrativeConfig.MaxTokens > 0 {
		clientCfg.MaxTokens = cfg.NarrativeConfig.MaxTokens
	}
	if cfg.NarrativeConfig.Temperature > 0 {
		clientCfg.Temperature = cfg.NarrativeConfig.Temperature
	}
	if cfg.NarrativeConfig.TimeoutSecs > 0 {
		clientCfg.Timeout = time.Duration(cfg.NarrativeConfig.TimeoutSecs) * time.Second
	}

	client := narrative.NewClient(clientCfg, logger)
	if !client.IsConfigured() {
		logger.Warn().Str("provider", providerName).Msg("Narrative provider has no API key, using static scenarios")
		return narrative.NewStatic()
	}

	logger.Info().Str("provider", providerName).Str("model", clientCfg.Model).Msg("Narrative provider initialized")
	return client
}
