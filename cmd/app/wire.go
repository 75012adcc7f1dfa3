//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/eldertech-assistant/internal/bootstrap"
	"github.com/yanqian/eldertech-assistant/internal/domain/chat"
	"github.com/yanqian/eldertech-assistant/internal/domain/faq"
	"github.com/yanqian/eldertech-assistant/internal/domain/speech"
	"github.com/yanqian/eldertech-assistant/internal/infra/config"
	httpiface "github.com/yanqian/eldertech-assistant/internal/interface/http"
	"github.com/yanqian/eldertech-assistant/pkg/logger"
)

var storageSet = wire.NewSet(
	config.Load,
	logger.New,
	providePostgresPool,
	provideValkeyClient,
	provideFAQRepository,
	provideFAQStore,
	provideChatGPTClient,
	provideTokenCounter,
	provideEmbedder,
)

var analysisSet = wire.NewSet(
	provideAnalysisConfig,
	providePipeline,
	provideReportStore,
	provideArchive,
)

func initializeApp() (*bootstrap.App, func(), error) {
	wire.Build(
		storageSet,
		analysisSet,
		provideAuthConfig,
		provideChatConfig,
		provideSpeechConfig,
		provideFAQConfig,
		provideUserRepository,
		provideTokenDenylist,
		provideChatRepository,
		provideChatClient,
		provideFAQChatClient,
		provideSpeechProvider,
		provideJobQueue,
		provideAuthService,
		provideAnalysisService,
		provideScheduler,
		chat.NewService,
		speech.NewService,
		faq.NewService,
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil, nil
}

func initializeAnalyzer() (*bootstrap.Analyzer, func(), error) {
	wire.Build(
		storageSet,
		analysisSet,
		provideBatchAnalysisService,
		bootstrap.NewAnalyzer,
	)
	return nil, nil, nil
}
