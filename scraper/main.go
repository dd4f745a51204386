package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/DeafMist/news-indexer/backend/internal/config"
	"github.com/DeafMist/news-indexer/backend/internal/dedupe"
	"github.com/DeafMist/news-indexer/backend/internal/elasticsearch"
	"github.com/DeafMist/news-indexer/backend/internal/extract"
	"github.com/DeafMist/news-indexer/backend/internal/failures"
	"github.com/DeafMist/news-indexer/backend/internal/fetcher"
	"github.com/DeafMist/news-indexer/backend/internal/logger"
	"github.com/DeafMist/news-indexer/backend/internal/pipeline"
	"github.com/DeafMist/news-indexer/backend/internal/sitemap"
)

func main() {
	_ = godotenv.Load()

	log := logger.New("scraper")
	cfg, err := config.LoadScraper()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, log, cfg); err != nil {
		log.Error("scraper failed", slog.Any("err", err))
		os.Exit(1)
	}
}

// run performs one pass over every configured site. Only setup problems are
// returned; site and article failures are logged by the pipeline.
func run(ctx context.Context, log *slog.Logger, cfg *config.Scraper) error {
	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log.With(slog.String("component", "elasticsearch")))
	if err != nil {
		return fmt.Errorf("init elasticsearch: %w", err)
	}
	if err := esClient.WaitReady(ctx, 5, 2*time.Second); err != nil {
		return err
	}
	if err := esClient.EnsureIndex(ctx); err != nil {
		return err
	}

	store, closeStore := newStore(cfg)
	defer closeStore()

	filter := dedupe.NewFilter(store, dedupe.Options{
		TTL:      cfg.DedupeTTL,
		Strategy: dedupe.KeyStrategy(cfg.DedupeKeyStrategy),
		Prefix:   cfg.DedupeKeyPrefix,
		Timeout:  cfg.StoreTimeout,
	}, log.With(slog.String("component", "dedupe")))
	if err := filter.Ping(ctx); err != nil {
		return fmt.Errorf("presence store: %w", err)
	}

	extractor := extract.New(
		fetcher.New(cfg.UserAgent, cfg.FetchTimeout),
		newSummarizer(cfg),
		extract.Options{PageTimeout: cfg.ExtractTimeout, SummaryTimeout: cfg.SummarizeTimeout},
		log.With(slog.String("component", "extract")),
	)

	sink := newSink(cfg, log)
	defer func() {
		if err := sink.Close(); err != nil {
			log.Warn("close failure sink", slog.Any("err", err))
		}
	}()

	p := pipeline.New(pipeline.Deps{
		Feeds:     fetcher.New(cfg.UserAgent, cfg.FetchTimeout),
		Parser:    sitemap.NewParser(log.With(slog.String("component", "sitemap"))),
		Filter:    filter,
		Extractor: extractor,
		Index:     esClient,
		Sink:      sink,
		Budget:    dedupe.NewFailureBudget(filter, cfg.DedupeMaxFailures, cfg.DedupeFailureTTL, cfg.DedupeQuarantine),
	}, pipeline.Options{
		Workers:       cfg.Workers,
		IndexTimeout:  cfg.IndexTimeout,
		ReportTimeout: cfg.ReportTimeout,
	}, log)

	log.Info("scraper started",
		slog.Int("sites", len(cfg.Sites)),
		slog.String("dedupe_backend", cfg.DedupeBackend),
		slog.String("summarizer", cfg.Summarizer),
		slog.Int("workers", cfg.Workers),
	)

	stats, err := p.Run(ctx, cfg.Sites)
	if err != nil {
		log.Warn("some sites failed", slog.Any("err", err), slog.Any("stats", stats))
	}
	return nil
}

func newStore(cfg *config.Scraper) (dedupe.PresenceStore, func()) {
	if cfg.DedupeBackend == "memory" {
		return dedupe.NewMemoryStore(cfg.DedupeMemoryLimit), func() {}
	}
	store := dedupe.NewRedisStore(cfg.RedisURL)
	return store, func() { _ = store.Close() }
}

func newSummarizer(cfg *config.Scraper) extract.Summarizer {
	switch cfg.Summarizer {
	case "openai":
		return extract.NewOpenAISummarizer(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.SummarySentences)
	case "anthropic":
		return extract.NewAnthropicSummarizer(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.SummarySentences)
	default:
		return extract.NewLocalSummarizer(cfg.SummarySentences)
	}
}

func newSink(cfg *config.Scraper, log *slog.Logger) failures.Sink {
	if len(cfg.KafkaBrokers) == 0 {
		return failures.NopSink{}
	}
	log.Info("reporting failures to kafka",
		slog.Any("brokers", cfg.KafkaBrokers),
		slog.String("topic", cfg.KafkaFailureTopic),
	)
	return failures.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaFailureTopic, log.With(slog.String("component", "failures")))
}
