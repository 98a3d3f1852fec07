package main

import (
	"log"
	"os"
	"time"

	"aifiles/internal/api"
	"aifiles/internal/config"
	"aifiles/internal/export"
	"aifiles/internal/intake"
	"aifiles/internal/logging"
	"aifiles/internal/remote"
	"aifiles/internal/session"
	"aifiles/internal/summary"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := os.Getenv("AIFILES_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logFile := logging.Setup(cfg.Log, "aifiles")
	defer logFile.Close()

	var summarizer summary.Summarizer = summary.Rules{}
	if cfg.Summary.Backend == "remote" {
		client := remote.NewClient(cfg.RemoteAPI.BaseURL,
			time.Duration(cfg.RemoteAPI.TimeoutSeconds)*time.Second,
			remote.WithSharedSecret(cfg.SummaryAPI.SharedSecret))
		summarizer = remote.NewSummarizer(client)
		log.Printf("summary backend: remote (%s)", cfg.RemoteAPI.BaseURL)
	} else {
		log.Printf("summary backend: rules")
	}

	controller := session.NewController(intake.New(intake.DefaultRegistry()), summarizer, cfg.GenerateDelay())
	handlers := api.NewHandler(controller, export.SystemClipboard{}, cfg.BasicConfig.PublicURL, cfg.BasicConfig.MaxUploadBytes)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	if err := router.Run(cfg.BasicConfig.ServerAddress); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
