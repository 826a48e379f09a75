package main

import (
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mizuamedesu/whisper-large-v3-turbo-webui/internal/api"
	"github.com/mizuamedesu/whisper-large-v3-turbo-webui/internal/config"
	"github.com/mizuamedesu/whisper-large-v3-turbo-webui/internal/registry"
	"github.com/mizuamedesu/whisper-large-v3-turbo-webui/internal/service"
	"github.com/mizuamedesu/whisper-large-v3-turbo-webui/internal/storage"
	"github.com/mizuamedesu/whisper-large-v3-turbo-webui/internal/transcribe"
	"github.com/mizuamedesu/whisper-large-v3-turbo-webui/internal/upload"
	"github.com/mizuamedesu/whisper-large-v3-turbo-webui/internal/worker"
)

func main() {
	cfgPath := os.Getenv("WHISPER_WEBUI_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	dbType := os.Getenv("WHISPER_WEBUI_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	uploadDir := cfg.BasicConfig.UploadDir
	if uploadDir == "" {
		uploadDir = "./data/uploads"
	}
	transcriptsDir := cfg.BasicConfig.TranscriptsDir
	if transcriptsDir == "" {
		transcriptsDir = "./data/transcriptions"
	}

	uploads, err := upload.NewStore(uploadDir)
	if err != nil {
		log.Fatalf("init upload store: %v", err)
	}
	results, err := storage.NewResultStore(db, transcriptsDir)
	if err != nil {
		log.Fatalf("init result store: %v", err)
	}

	engines := transcribe.NewCache(transcribe.Options{
		Command: cfg.Whisper.Command,
		Model:   cfg.Whisper.Model,
		Device:  cfg.Whisper.Device,
	})
	jobs := registry.New()
	runner := worker.NewRunner(engines, results, jobs, uploadDir)
	dispatcher := worker.NewDispatcher(worker.Config{
		MinWorkers:  cfg.BasicConfig.MinWorkers,
		MaxWorkers:  cfg.BasicConfig.MaxWorkers,
		QueueSize:   cfg.BasicConfig.QueueSize,
		IdleTimeout: time.Duration(cfg.BasicConfig.WorkerIdleTimeout) * time.Minute,
	}, runner)

	transcriber := service.NewTranscriber(uploads, jobs, results, runner, dispatcher)

	maxUpload := int64(cfg.BasicConfig.MaxUploadMB) << 20
	handlers := api.NewHandler(transcriber, uploadDir, maxUpload)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8080"
	}
	if err := router.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
