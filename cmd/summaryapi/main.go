package main

import (
	"context"
	"log"
	"os"
	"time"

	"aifiles/internal/config"
	"aifiles/internal/intake"
	"aifiles/internal/logging"
	"aifiles/internal/redis"
	"aifiles/internal/service/ai"
	"aifiles/internal/service/summaries"
	"aifiles/internal/storage"
	"aifiles/internal/summary"
	"aifiles/internal/summaryapi"
	"aifiles/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := os.Getenv("AIFILES_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logFile := logging.Setup(cfg.Log, "summaryapi")
	defer logFile.Close()
	apiCfg := cfg.SummaryAPI

	dbType := apiCfg.DBType
	log.Printf("dbType: %s\n", dbType)
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	// summaries are cached when redis is reachable; the API works without it
	var cache summaries.Cache
	rdb, err := redis.NewRedisClient(cfg)
	if err != nil {
		log.Printf("redis unavailable, summary cache disabled: %v", err)
	} else {
		defer rdb.Close()
		cache = rdb
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		summarizer summary.Summarizer = summary.Rules{}
		backend                       = "rules"
	)
	if apiCfg.Provider != "" {
		modelSvc, err := ai.NewService(ctx, apiCfg.Provider, cfg.Providers[apiCfg.Provider], apiCfg.Model)
		if err != nil {
			log.Fatalf("init %s summarizer: %v", apiCfg.Provider, err)
		}
		summarizer = modelSvc
		backend = modelSvc.Provider()
	}
	log.Printf("summary backend: %s", backend)

	cipher, err := summaries.ContentCipherFromEnv()
	if err != nil {
		log.Fatalf("content cipher: %v", err)
	}

	dispatcher := worker.NewDispatcher(worker.DispatcherConfig{
		MinWorkers:        1,
		MaxWorkers:        apiCfg.Workers,
		QueueSize:         apiCfg.QueueSize,
		WorkerIdleTimeout: 5 * time.Minute,
	})
	defer dispatcher.Stop()

	svc := summaries.NewService(db, intake.New(intake.DefaultRegistry()), summarizer, dispatcher, summaries.Options{
		FileBaseDir:              apiCfg.FileBaseDir,
		FileTTL:                  time.Duration(apiCfg.FileTTLMinutes) * time.Minute,
		CacheTTL:                 time.Duration(apiCfg.CacheTTLMinutes) * time.Minute,
		MaxConcurrentGenerations: int64(apiCfg.MaxConcurrentGenerations),
		Backend:                  backend,
		Cipher:                   cipher,
		Cache:                    cache,
	})
	svc.StartUploadCleaner(ctx, time.Duration(apiCfg.CleanIntervalMinutes)*time.Minute)

	handlers := summaryapi.NewHandler(svc, summaryapi.HandlerOptions{
		Limiter:        summaryapi.NewRateLimiter(time.Duration(apiCfg.RateLimitEveryMS)*time.Millisecond, apiCfg.RateLimitBurst),
		SharedSecret:   apiCfg.SharedSecret,
		MaxUploadBytes: cfg.BasicConfig.MaxUploadBytes,
	})

	router := gin.Default()
	handlers.RegisterRoutes(router)

	if err := router.Run(apiCfg.ServerAddress); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
