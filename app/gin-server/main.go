package main

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/okhamid/interviewly/config"
	"github.com/okhamid/interviewly/internal/api/handlers"
	"github.com/okhamid/interviewly/internal/api/routes"
	"github.com/okhamid/interviewly/internal/cache"
	"github.com/okhamid/interviewly/internal/logger"
	"github.com/okhamid/interviewly/internal/providers/llm"
	"github.com/okhamid/interviewly/internal/providers/stt"
	"github.com/okhamid/interviewly/internal/ratelimit"
	"github.com/okhamid/interviewly/internal/realtime"
	mongorepo "github.com/okhamid/interviewly/internal/repositories/mongo"
	pgrepo "github.com/okhamid/interviewly/internal/repositories/postgres"
	"github.com/okhamid/interviewly/internal/services"
	"github.com/okhamid/interviewly/internal/storage"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()
	ctx := context.Background()

	// Init MongoDB
	if err := config.InitMongo(); err != nil {
		log.Fatalf("MongoDB init error: %v", err)
	}
	log.Info("MongoDB connected")
	if err := config.EnsureMongoIndexes(); err != nil {
		log.Fatalf("MongoDB index error: %v", err)
	}

	// Init PostgreSQL
	if err := config.InitPostgres(); err != nil {
		log.Fatalf("PostgreSQL init error: %v", err)
	}
	log.Info("PostgreSQL connected")

	// Init Redis
	if err := config.InitRedis(); err != nil {
		log.Fatalf("Redis init error: %v", err)
	}
	log.Info("Redis connected")

	dbName := os.Getenv("MONGO_DB")
	if dbName == "" {
		dbName = "interviewly"
	}
	mongoDB := config.MongoClient.Database(dbName)

	// Repositories
	sessionRepo := mongorepo.NewSessionRepo(mongoDB)
	transcriptRepo := mongorepo.NewTranscriptRepo(mongoDB)
	qaRepo := mongorepo.NewQARepo(mongoDB)
	profileRepo := pgrepo.NewProfileRepo(config.PostgresDB)
	jdRepo := pgrepo.NewJobDescRepo(config.PostgresDB)

	redisCache := cache.NewRedisCache(config.RedisClient)

	// Providers
	sttProvider, err := stt.NewGoogleSpeech(ctx)
	if err != nil {
		log.Fatalf("Speech client init error: %v", err)
	}
	defer sttProvider.Close()

	gemini, err := llm.NewVertexGemini(ctx,
		os.Getenv("VERTEX_PROJECT_ID"),
		os.Getenv("VERTEX_LOCATION"),
		os.Getenv("VERTEX_MODEL"),
	)
	if err != nil {
		log.Fatalf("Vertex init error: %v", err)
	}
	defer gemini.Close()

	ollama := llm.NewOllama(os.Getenv("OLLAMA_BASE_URL"), os.Getenv("OLLAMA_MODEL"))
	chain := llm.NewChain(log, gemini, ollama)
	defer chain.Close()

	pipeline := config.LoadPipeline()
	limits := ratelimit.New(pipeline.STTRatePerSec, pipeline.LLMRatePerSec)

	// Services
	sessionSvc := services.NewSessionService(sessionRepo)
	store := services.NewDocumentService(sessionSvc, profileRepo, jdRepo, transcriptRepo, qaRepo, redisCache)
	transcriber := services.NewTranscriptionService(sttProvider, limits, pipeline.STTTimeout, pipeline.TranscriptFloor)
	assembler := services.NewContextService(store, pipeline.PriorQALimit)
	generator := services.NewAnswerService(chain, limits, pipeline.LLMTimeout)
	profileSvc := services.NewProfileService(profileRepo, jdRepo, redisCache)
	historySvc := services.NewHistoryService(sessionSvc, transcriptRepo, qaRepo)

	// Optional audio archival
	var archiver storage.Uploader
	if bucket := os.Getenv("GCS_AUDIO_BUCKET"); bucket != "" {
		up, uerr := storage.NewGCSUploader(ctx, bucket)
		if uerr != nil {
			log.Fatalf("GCS init error: %v", uerr)
		}
		archiver = up
	}

	manager := realtime.NewManager(realtime.Deps{
		Store:       store,
		Transcriber: transcriber,
		Assembler:   assembler,
		Generator:   generator,
		Archiver:    archiver,
		Logger:      log,
		Pipeline:    pipeline,
	})

	// Start Gin server
	r := gin.New()
	r.Use(gin.Recovery())

	routes.RegisterRoutes(r, routes.Deps{
		Log:     log,
		Session: handlers.NewSessionHandler(sessionSvc),
		Profile: handlers.NewProfileHandler(profileSvc),
		History: handlers.NewHistoryHandler(historySvc),
		WS:      handlers.NewWSHandler(manager, log),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
