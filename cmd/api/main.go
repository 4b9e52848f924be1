package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ewilliams-labs/tunnetilasi/internal/adapters/ollama"
	"github.com/ewilliams-labs/tunnetilasi/internal/adapters/openai"
	"github.com/ewilliams-labs/tunnetilasi/internal/adapters/prompts"
	"github.com/ewilliams-labs/tunnetilasi/internal/adapters/rest"
	"github.com/ewilliams-labs/tunnetilasi/internal/adapters/sqlite"
	"github.com/ewilliams-labs/tunnetilasi/internal/config"
	"github.com/ewilliams-labs/tunnetilasi/internal/core/extract"
	"github.com/ewilliams-labs/tunnetilasi/internal/core/ports"
	"github.com/ewilliams-labs/tunnetilasi/internal/core/services"
	"github.com/ewilliams-labs/tunnetilasi/internal/logging"
	"github.com/ewilliams-labs/tunnetilasi/internal/metrics"
	"github.com/ewilliams-labs/tunnetilasi/internal/worker"
)

func main() {
	// 1. Configuration
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Initialize "Driven" Adapters
	db, err := sqlite.NewAdapter(cfg.Database.Path)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("failed to initialize database")
	}
	defer db.Close()

	catalog, err := prompts.Default()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load prompt catalog")
	}
	catalog.WithID(services.PromptMatcher, cfg.OpenAI.MatcherPromptID)
	catalog.WithID(services.PromptCurator, cfg.OpenAI.CuratorPromptID)

	promptAgent, conversationAgent, err := newAgents(cfg, catalog)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize agents")
	}

	pool := worker.NewPool(db, db, cfg.Worker.QueueSize)
	pool.Start(ctx, cfg.Worker.Count)
	defer pool.Stop()

	// 3. Initialize Core Logic
	extractor := extract.New(extract.WithObserver(metrics.RecordExtraction))
	recommender := services.NewRecommender(promptAgent,
		services.PromptIDs{Matcher: cfg.OpenAI.MatcherPromptID, Curator: cfg.OpenAI.CuratorPromptID},
		services.WithLibrary(db),
		services.WithArchive(pool.Archive()),
		services.WithExtractor(extractor),
	)
	sessions := services.NewSessionStore(cfg.Session.TTL)
	go sessions.Run(ctx, cfg.Session.SweepInterval)
	orchestrator := services.NewSessionOrchestrator(conversationAgent, recommender, sessions,
		services.WithSessionExtractor(extractor),
	)

	// 4. Initialize "Driving" Adapter
	handler := rest.NewHandler(rest.Deps{
		Sessions:    orchestrator,
		Recommender: recommender,
		Extractor:   extractor,
		Library:     db,
		Archive:     db,
		Imports:     pool,
		Store:       db,
	}, rest.Options{
		CORSOrigins:       cfg.Server.CORSOrigins,
		RateLimitRequests: cfg.Server.RateLimitRequests,
		RateLimitWindow:   cfg.Server.RateLimitWindow,
		MaxUploadBytes:    cfg.Server.MaxUploadBytes,
	})

	// 5. Start the Server
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	logging.Info().
		Str("addr", cfg.Server.Addr).
		Str("provider", cfg.Agent.Provider).
		Int("workers", cfg.Worker.Count).
		Msg("🤘 Tunnetilasi API is running")

	select {
	case err := <-serverErr:
		if err != nil {
			logging.Error().Err(err).Msg("server failed")
		}
	case <-ctx.Done():
		logging.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("shutdown error")
		}
	}
}

// newAgents picks the prompt and conversation agents for the configured
// provider.
func newAgents(cfg *config.Config, catalog *prompts.Catalog) (ports.PromptSubmitter, ports.ConversationAgent, error) {
	switch cfg.Agent.Provider {
	case config.ProviderOllama:
		client := ollama.NewClient(cfg.Ollama.Host, cfg.Ollama.Model, catalog)
		return client, client, nil
	case config.ProviderOpenAI:
		client := openai.NewClient(openai.Config{
			BaseURL:      cfg.OpenAI.BaseURL,
			APIKey:       cfg.OpenAI.APIKey,
			Model:        cfg.OpenAI.Model,
			Timeout:      cfg.OpenAI.Timeout,
			MaxRetries:   cfg.OpenAI.MaxRetries,
			RetryBackoff: cfg.OpenAI.RetryBackoff,
			RateLimit:    cfg.OpenAI.RateLimit,
		})
		responses := openai.NewResponses(client, catalog)
		if cfg.OpenAI.AssistantID != "" {
			return responses, openai.NewAssistant(client, cfg.OpenAI.AssistantID,
				openai.WithPolling(cfg.OpenAI.PollInterval, cfg.OpenAI.MaxWait)), nil
		}
		p, ok := catalog.Get(prompts.EmotionDetection)
		if !ok {
			return nil, nil, errors.New("emotion detection prompt missing from catalog")
		}
		system := p.System
		if p.Reminder != "" {
			system += "\n\n" + p.Reminder
		}
		return responses, openai.NewChat(client, system), nil
	default:
		return nil, nil, errors.New("unknown agent provider " + cfg.Agent.Provider)
	}
}
