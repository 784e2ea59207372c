package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/hseol/chapter-translator/internal/config"
	"github.com/hseol/chapter-translator/internal/httpapi"
	"github.com/hseol/chapter-translator/internal/jobs"
	"github.com/hseol/chapter-translator/internal/library"
	"github.com/hseol/chapter-translator/internal/llm"
	"github.com/hseol/chapter-translator/internal/persistence"
	"github.com/hseol/chapter-translator/internal/pricing"
	"github.com/hseol/chapter-translator/internal/session"
	"github.com/hseol/chapter-translator/internal/token"
	"github.com/hseol/chapter-translator/internal/translate"
	"github.com/hseol/chapter-translator/pkg/icron"
	"github.com/hseol/chapter-translator/pkg/log"
)

type cronEngine interface {
	Start()
	Stop() context.Context
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

func main() {
	_ = godotenv.Load()
	log.InitLogger(log.ParseLevel(os.Getenv("LOG_LEVEL")))

	opts := make([]config.Option, 0, 1)
	settingsPath := config.RuntimeSettingsFilePath()
	if settings, err := config.LoadRuntimeSettingsFile(settingsPath); err == nil {
		opts = append(opts, config.WithRuntimeSettings(settings))
	} else if !os.IsNotExist(err) {
		log.Warn("Ignoring unreadable settings file %s: %v", settingsPath, err)
	}

	cfg, err := config.NewFromEnv(opts...)
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}

	store, err := persistence.NewSQLiteStore(cfg.Server.DatabasePath())
	if err != nil {
		log.Fatal("Failed to open database: %v", err)
	}
	defer store.Close()

	settingsStore, err := config.NewRuntimeSettingsStore(settingsPath, cfg.RuntimeSettings())
	if err != nil {
		log.Fatal("Failed to initialize settings store: %v", err)
	}

	llmClient, err := llm.NewClient(&llm.Config{
		APIKey:      cfg.LLM.APIKey,
		APIURL:      cfg.LLM.APIURL,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		SiteURL:     cfg.LLM.SiteURL,
		AppName:     cfg.LLM.AppName,
	})
	if err != nil {
		log.Fatal("Failed to create LLM client: %v", err)
	}

	translator := translate.NewService(llmClient, translate.Options{
		ThinkingModel:     cfg.LLM.ThinkingModel,
		ThinkingMaxTokens: cfg.LLM.ThinkingMaxTokens,
	})

	fetcher := pricing.NewOpenRouterFetcher(cfg.Pricing.APIURL, cfg.LLM.APIKey)
	priceCache := pricing.NewCache(fetcher, store, cfg.Pricing.TTL)

	queue := jobs.NewQueue(cfg.Translate.Workers, store)
	queue.Start(jobs.NewChapterExecutor(jobs.ExecutorDeps{
		Chapters:       store,
		Glossaries:     store,
		Translator:     translator,
		Usage:          store,
		TargetLanguage: cfg.Translate.TargetLanguage,
	}))
	defer queue.Stop()

	sess := session.New(session.Deps{
		Estimator: token.NewEstimator(),
		Prices:    priceCache,
		Submitter: session.QueueSubmitter{Queue: queue},
		Statuses:  session.ChapterStoreAdapter{Store: store},
		Saver:     session.ChapterStoreAdapter{Store: store},
		Notifier: func(phase session.Phase) {
			log.Debug("Translation run phase: %s", phase)
		},
	}, session.Options{
		PollInterval: cfg.Translate.PollInterval,
		MaxPolls:     cfg.Translate.PollMaxAttempts,
	})

	server := httpapi.NewServer(store, store, queue, sess,
		httpapi.WithPriceCache(priceCache),
		httpapi.WithDefaultModel(cfg.LLM.Model),
		httpapi.WithRuntimeSettingsStore(settingsStore),
		// Model changes apply to the next request; API URL, key, cron and
		// target language changes need a restart to take effect.
		httpapi.WithRuntimeSettingsApplier(func(next config.RuntimeSettings) error {
			llmClient.SetModel(next.LLMModel)
			translator.SetThinkingModel(next.LLMThinkingModel)
			return nil
		}),
		httpapi.WithCharacterDetector(translator, cfg.Translate.TargetLanguage),
		httpapi.WithUI(os.Getenv("UI_STATIC_DIR"), os.Getenv("UI_STATIC_DIR") != ""),
	)

	cronRunner := cron.New()
	if _, err := cronRunner.AddFunc(cfg.Pricing.CronExpr, func() {
		if err := priceCache.Refresh(context.Background()); err != nil {
			log.Error("Scheduled price refresh failed: %v", err)
		}
	}); err != nil {
		log.Fatal("Invalid pricing cron expression %q: %v", cfg.Pricing.CronExpr, err)
	}
	if info, err := icron.GetTriggerInfo(cfg.Pricing.CronExpr, time.Now()); err == nil {
		log.Info("Price catalog refresh scheduled, next run in %s", info.TimeUntilNext.Round(time.Second))
	}

	if cfg.Import.Enabled() {
		importer := library.NewImporter(library.NewScanner(cfg.Import.Dir), store)
		if _, err := importer.Sync(context.Background()); err != nil {
			log.Error("Initial chapter import failed: %v", err)
		}
		if _, err := cronRunner.AddFunc(cfg.Import.CronExpr, func() {
			if _, err := importer.Sync(context.Background()); err != nil {
				log.Error("Scheduled chapter import failed: %v", err)
			}
		}); err != nil {
			log.Fatal("Invalid import cron expression %q: %v", cfg.Import.CronExpr, err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg.Server.HTTPAddr, cronRunner, server); err != nil {
		log.Fatal("Server error: %v", err)
	}
}

// run starts the cron engine and HTTP server and blocks until ctx is
// cancelled, then shuts both down.
func run(ctx context.Context, addr string, cronRunner cronEngine, server httpServer) error {
	cronRunner.Start()

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening on %s", addr)
		errCh <- server.ListenAndServe(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	<-cronRunner.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
