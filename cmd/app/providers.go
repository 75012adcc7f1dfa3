package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/eldertech-assistant/internal/domain/auth"
	"github.com/yanqian/eldertech-assistant/internal/domain/chat"
	"github.com/yanqian/eldertech-assistant/internal/domain/faq"
	"github.com/yanqian/eldertech-assistant/internal/domain/faqanalysis"
	"github.com/yanqian/eldertech-assistant/internal/domain/speech"
	"github.com/yanqian/eldertech-assistant/internal/infra/chatrepo"
	"github.com/yanqian/eldertech-assistant/internal/infra/config"
	"github.com/yanqian/eldertech-assistant/internal/infra/embedder"
	"github.com/yanqian/eldertech-assistant/internal/infra/faqrepo"
	"github.com/yanqian/eldertech-assistant/internal/infra/faqstore"
	"github.com/yanqian/eldertech-assistant/internal/infra/llm/chatgpt"
	"github.com/yanqian/eldertech-assistant/internal/infra/llm/openaiaudio"
	"github.com/yanqian/eldertech-assistant/internal/infra/queue"
	"github.com/yanqian/eldertech-assistant/internal/infra/reportarchive"
	"github.com/yanqian/eldertech-assistant/internal/infra/reportstore"
	"github.com/yanqian/eldertech-assistant/internal/infra/tokenstore"
	"github.com/yanqian/eldertech-assistant/internal/infra/userrepo"
	"github.com/yanqian/eldertech-assistant/pkg/tokens"
)

const deterministicEmbeddingDim = 256

func provideAuthConfig(cfg *config.Config) auth.Config {
	return auth.Config{
		Secret:          cfg.Auth.Secret,
		TokenTTL:        cfg.Auth.TokenTTL,
		RefreshTokenTTL: cfg.Auth.RefreshTokenTTL,
	}
}

func provideChatConfig(cfg *config.Config) chat.Config {
	return chat.Config{
		Model:            cfg.LLM.Model,
		Temperature:      cfg.LLM.Temperature,
		MaxTokens:        cfg.LLM.MaxTokens,
		SystemPrompt:     cfg.Chat.SystemPrompt,
		HistoryMessages:  cfg.Chat.HistoryMessages,
		MaxHistoryTokens: cfg.Chat.MaxHistoryTokens,
		TitleLength:      cfg.Chat.TitleLength,
	}
}

func provideSpeechConfig(cfg *config.Config) speech.Config {
	return speech.Config{
		TranscriptionModel: cfg.Speech.TranscriptionModel,
		SpeechModel:        cfg.Speech.SpeechModel,
		DefaultVoice:       cfg.Speech.DefaultVoice,
		MaxAudioBytes:      cfg.Speech.MaxAudioBytes,
		MaxTextLength:      cfg.Speech.MaxTextLength,
		Timeout:            cfg.Speech.Timeout,
	}
}

func provideFAQConfig(cfg *config.Config) faq.Config {
	return faq.Config{
		Model:               cfg.LLM.Model,
		Temperature:         cfg.LLM.Temperature,
		Prompt:              cfg.FAQ.Prompt,
		CacheTTL:            cfg.FAQ.CacheTTL,
		TopRecommendations:  cfg.FAQ.TopRecommendations,
		SimilarityThreshold: cfg.FAQ.SimilarityThreshold,
		LexicalThreshold:    cfg.FAQ.LexicalThreshold,
		DefaultListLimit:    cfg.FAQ.DefaultListLimit,
		MaxListLimit:        cfg.FAQ.MaxListLimit,
	}
}

func provideAnalysisConfig(cfg *config.Config) faqanalysis.Config {
	a := cfg.Analysis
	return faqanalysis.Config{
		Enabled:               a.Enabled,
		SimilarityThreshold:   a.SimilarityThreshold,
		CoverageThreshold:     a.CoverageThreshold,
		FrequencyWeight:       a.FrequencyWeight,
		FeedbackWeight:        a.FeedbackWeight,
		RecencyWeight:         a.RecencyWeight,
		RecencyHalfLife:       a.RecencyHalfLife,
		TimeBudget:            a.TimeBudget,
		Workers:               a.Workers,
		MinCategoryEntries:    a.MinCategoryEntries,
		QueryWindow:           a.QueryWindow,
		LowPriorityThreshold:  a.LowPriorityThreshold,
		LowPriorityMinEntries: a.LowPriorityMinEntries,
	}
}

// providePostgresPool returns nil when no DSN is configured or the database is unreachable.
func providePostgresPool(cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, func()) {
	noop := func() {}
	dsn := strings.TrimSpace(cfg.FAQ.Postgres.DSN)
	if dsn == "" {
		logger.Info("postgres dsn not set, using local repositories")
		return nil, noop
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, using local repositories", "error", err)
		return nil, noop
	}
	if cfg.FAQ.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.FAQ.Postgres.MaxConns
	}
	if cfg.FAQ.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.FAQ.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, using local repositories", "error", err)
		return nil, noop
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, using local repositories", "error", err)
		pool.Close()
		return nil, noop
	}
	logger.Info("postgres enabled")
	return pool, pool.Close
}

// provideValkeyClient returns nil when Redis is disabled or unreachable.
func provideValkeyClient(cfg *config.Config, logger *slog.Logger) (valkey.Client, func()) {
	noop := func() {}
	if !cfg.FAQ.Redis.Enabled {
		return nil, noop
	}
	opt, err := buildValkeyOptions(cfg)
	if err != nil {
		logger.Error("invalid valkey configuration, falling back to memory stores", "error", err)
		return nil, noop
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		logger.Error("failed to create valkey client, falling back to memory stores", "error", err)
		return nil, noop
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		logger.Error("valkey ping failed, falling back to memory stores", "error", err)
		client.Close()
		return nil, noop
	}
	logger.Info("valkey enabled", "addr", cfg.FAQ.Redis.Addr)
	return client, client.Close
}

func buildValkeyOptions(cfg *config.Config) (valkey.ClientOption, error) {
	var (
		opt valkey.ClientOption
		err error
	)
	if strings.Contains(cfg.FAQ.Redis.Addr, "://") {
		opt, err = valkey.ParseURL(cfg.FAQ.Redis.Addr)
	} else {
		opt = valkey.ClientOption{InitAddress: []string{cfg.FAQ.Redis.Addr}}
	}
	if err != nil {
		return valkey.ClientOption{}, err
	}
	return opt, nil
}

// provideFAQRepository prefers Postgres, then the SQLite file, then memory.
func provideFAQRepository(cfg *config.Config, pool *pgxpool.Pool, logger *slog.Logger) (faq.Repository, func()) {
	noop := func() {}
	if pool != nil {
		logger.Info("faq postgres repository enabled")
		return faqrepo.NewPostgresRepository(pool), noop
	}
	if path := strings.TrimSpace(cfg.FAQ.SQLite.Path); path != "" {
		repo, err := faqrepo.NewSQLiteRepository(path)
		if err != nil {
			logger.Error("failed to open sqlite repository, using memory repository", "path", path, "error", err)
			return faqrepo.NewMemoryRepository(), noop
		}
		logger.Info("faq sqlite repository enabled", "path", path)
		return repo, func() {
			if err := repo.Close(); err != nil {
				logger.Warn("close sqlite repository", "error", err)
			}
		}
	}
	logger.Info("faq memory repository enabled")
	return faqrepo.NewMemoryRepository(), noop
}

func provideFAQStore(client valkey.Client) faq.Store {
	if client == nil {
		return faqstore.NewMemoryStore()
	}
	return faqstore.NewValkeyStore(client, "faq")
}

func provideUserRepository(pool *pgxpool.Pool) auth.Repository {
	if pool == nil {
		return userrepo.NewMemoryRepository()
	}
	return userrepo.NewPostgresRepository(pool)
}

func provideTokenDenylist(client valkey.Client) auth.TokenDenylist {
	if client == nil {
		return tokenstore.NewMemoryDenylist()
	}
	return tokenstore.NewValkeyDenylist(client, "auth:revoked")
}

func provideChatRepository(pool *pgxpool.Pool) chat.Repository {
	if pool == nil {
		return chatrepo.NewMemoryRepository()
	}
	return chatrepo.NewPostgresRepository(pool)
}

// provideChatGPTClient returns nil without an API key; services then answer with fallbacks.
func provideChatGPTClient(cfg *config.Config, logger *slog.Logger) *chatgpt.Client {
	client, err := chatgpt.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL)
	if err != nil {
		logger.Warn("chatgpt client disabled", "error", err)
		return nil
	}
	return client
}

// The adapters below keep a missing client a nil interface instead of a typed nil.

func provideChatClient(client *chatgpt.Client) chat.ChatClient {
	if client == nil {
		return nil
	}
	return client
}

func provideFAQChatClient(client *chatgpt.Client) faq.ChatClient {
	if client == nil {
		return nil
	}
	return client
}

func provideTokenCounter(cfg *config.Config) *tokens.Counter {
	return tokens.NewCounter(cfg.LLM.Model)
}

// provideEmbedder uses the embeddings API when available and the hashing embedder otherwise.
func provideEmbedder(cfg *config.Config, client *chatgpt.Client, counter *tokens.Counter, logger *slog.Logger) faq.Embedder {
	if client == nil {
		logger.Info("embeddings api unavailable, using deterministic embedder")
		return embedder.NewDeterministicEmbedder(deterministicEmbeddingDim)
	}
	return embedder.NewChatGPTEmbedder(client, cfg.LLM.EmbeddingModel, counter, logger)
}

func provideSpeechProvider(cfg *config.Config, logger *slog.Logger) speech.Provider {
	client, err := openaiaudio.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, logger)
	if err != nil {
		logger.Warn("speech provider disabled", "error", err)
		return nil
	}
	return client
}

func provideAuthService(cfg *config.Config, authCfg auth.Config, repo auth.Repository, denylist auth.TokenDenylist, logger *slog.Logger) auth.Service {
	return auth.NewService(authCfg, repo, denylist, cfg.Auth.AdminEmails, logger)
}

func providePipeline(emb faq.Embedder, logger *slog.Logger) *faqanalysis.Pipeline {
	return faqanalysis.NewPipeline(faqanalysis.NewEngine(emb, logger), logger)
}

func provideReportStore(cfg *config.Config, client valkey.Client) faqanalysis.ReportStore {
	if client == nil {
		return reportstore.NewMemoryStore()
	}
	return reportstore.NewValkeyStore(client, "faqanalysis", cfg.Analysis.ReportTTL)
}

// provideArchive returns nil when no bucket is configured; runs then skip archiving.
func provideArchive(cfg *config.Config, logger *slog.Logger) faqanalysis.ObjectStorage {
	s := cfg.Storage
	if s.Endpoint == "" || s.Bucket == "" {
		logger.Info("report archive disabled")
		return nil
	}
	storage, err := reportarchive.NewR2Storage(s.Endpoint, s.AccessKey, s.SecretKey, s.Bucket, s.Region, logger)
	if err != nil {
		logger.Error("failed to initialize report archive", "error", err)
		return nil
	}
	return storage
}

func provideJobQueue(cfg *config.Config, client valkey.Client, logger *slog.Logger) (queue.HandlerQueue, func()) {
	if client == nil {
		return queue.NewImmediateQueue(nil), func() {}
	}
	q := queue.NewValkeyQueue(client, cfg.FAQ.Redis.QueueKey, logger)
	return q, q.Close
}

// provideAnalysisService wires the queue's handler back into the service it feeds.
func provideAnalysisService(
	cfg *config.Config,
	analysisCfg faqanalysis.Config,
	pipeline *faqanalysis.Pipeline,
	repo faq.Repository,
	store faq.Store,
	reports faqanalysis.ReportStore,
	archive faqanalysis.ObjectStorage,
	q queue.HandlerQueue,
	logger *slog.Logger,
) faqanalysis.Service {
	svc := faqanalysis.NewService(analysisCfg, cfg.Storage.Prefix, pipeline, repo, store, reports, archive, q, logger)
	q.SetHandler(svc.HandleJob)
	return svc
}

// provideBatchAnalysisService is the queue-less variant used by the analyze command.
func provideBatchAnalysisService(
	cfg *config.Config,
	analysisCfg faqanalysis.Config,
	pipeline *faqanalysis.Pipeline,
	repo faq.Repository,
	store faq.Store,
	reports faqanalysis.ReportStore,
	archive faqanalysis.ObjectStorage,
	logger *slog.Logger,
) faqanalysis.Service {
	return faqanalysis.NewService(analysisCfg, cfg.Storage.Prefix, pipeline, repo, store, reports, archive, nil, logger)
}

func provideScheduler(cfg *config.Config, svc faqanalysis.Service, logger *slog.Logger) *faqanalysis.Scheduler {
	return faqanalysis.NewScheduler(svc, cfg.Analysis.ScheduleInterval, cfg.Analysis.RunOnStart, logger)
}
