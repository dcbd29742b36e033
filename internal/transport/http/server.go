package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Yerassyl-hub/backofadilai/internal/ai"
	appsvc "github.com/Yerassyl-hub/backofadilai/internal/app"
	"github.com/Yerassyl-hub/backofadilai/internal/bootstrap"
	"github.com/Yerassyl-hub/backofadilai/internal/cache"
	"github.com/Yerassyl-hub/backofadilai/internal/pkg/citations"
	rabbitmqClient "github.com/Yerassyl-hub/backofadilai/internal/platform/rabbitmq"
	"github.com/Yerassyl-hub/backofadilai/internal/repository"
	"github.com/Yerassyl-hub/backofadilai/internal/transport/http/handler"
	"github.com/Yerassyl-hub/backofadilai/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	docRepo := repository.NewDocumentRepository(app.MySQL)
	chunkRepo := repository.NewChunkRepository(app.MySQL)
	callRepo := repository.NewLLMCallRepository(app.MySQL)

	gateway := ai.NewGateway(
		app.Config.LLM.Provider,
		ai.PerplexityConfig{
			APIKey:         app.Config.LLM.Perplexity.APIKey,
			Model:          app.Config.LLM.Perplexity.Model,
			PreferCheapest: app.Config.LLM.Perplexity.PreferCheapest,
		},
		ai.ChatConfig{
			BaseURL: app.Config.LLM.OpenAI.BaseURL,
			APIKey:  app.Config.LLM.OpenAI.APIKey,
			Model:   app.Config.LLM.OpenAI.Model,
		},
	)
	embedder := ai.NewEmbeddingClient(ai.EmbeddingConfig{
		BaseURL: app.Config.LLM.OpenAI.BaseURL,
		APIKey:  app.Config.LLM.OpenAI.APIKey,
		Model:   app.Config.LLM.OpenAI.EmbeddingModel,
	})

	embeddingCache := cache.NewEmbeddingCache(
		app.Redis,
		time.Duration(app.Config.Redis.EmbeddingTTLSeconds)*time.Second,
	)
	callPublisher := rabbitmqClient.NewCallPublisher(app.MQConn, app.Config.RabbitMQ.LLMCallQueue)

	ragService := appsvc.NewRAGService(
		docRepo,
		chunkRepo,
		embedder,
		embeddingCache,
		gateway,
		callPublisher,
		app.Config.RAG.TargetTokens,
		app.Config.RAG.TopK,
	)
	assistantService := appsvc.NewAssistantService(gateway, citations.NewEngine(), callPublisher)

	docHandler := handler.NewDocumentHandler(ragService)
	analyzeHandler := handler.NewAnalyzeHandler(ragService)
	assistantHandler := handler.NewAssistantHandler(assistantService)
	auditHandler := handler.NewAuditHandler(callRepo)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.RequireAPIKey(app.Config.Auth.APIKey))

	v1.POST("/documents/upload", docHandler.Upload)
	v1.GET("/documents", docHandler.List)
	v1.DELETE("/documents/:id", docHandler.Delete)

	v1.POST("/analyze/contract", analyzeHandler.AnalyzeContract)

	v1.POST("/ask", assistantHandler.Ask)
	v1.POST("/chat", assistantHandler.Chat)

	v1.GET("/llm-calls", auditHandler.List)

	return router
}
