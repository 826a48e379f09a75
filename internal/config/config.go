package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Whisper     WhisperConfig             `json:"whisper"`
}

type BasicConfig struct {
	ServerAddress     string `json:"server_address"`
	UploadDir         string `json:"upload_dir"`
	TranscriptsDir    string `json:"transcripts_dir"`
	MaxUploadMB       int    `json:"max_upload_mb"`
	MinWorkers        int    `json:"min_workers"`
	MaxWorkers        int    `json:"max_workers"`
	QueueSize         int    `json:"queue_size"`
	WorkerIdleTimeout int    `json:"worker_idle_timeout"` // minutes
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type WhisperConfig struct {
	Command string `json:"command"`
	Model   string `json:"model"`
	Device  string `json:"device"`
}

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if len(cfg.Databases) == 0 {
		return nil, fmt.Errorf("at least one database must be configured")
	}

	// Resolve relative paths against the config file location.
	baseDir := filepath.Dir(absPath)
	for name, db := range cfg.Databases {
		if db.DSN != "" && db.DSN != ":memory:" && !filepath.IsAbs(db.DSN) {
			db.DSN = filepath.Join(baseDir, db.DSN)
			cfg.Databases[name] = db
		}
	}
	if cfg.BasicConfig.UploadDir != "" && !filepath.IsAbs(cfg.BasicConfig.UploadDir) {
		cfg.BasicConfig.UploadDir = filepath.Join(baseDir, cfg.BasicConfig.UploadDir)
	}
	if cfg.BasicConfig.TranscriptsDir != "" && !filepath.IsAbs(cfg.BasicConfig.TranscriptsDir) {
		cfg.BasicConfig.TranscriptsDir = filepath.Join(baseDir, cfg.BasicConfig.TranscriptsDir)
	}

	return &cfg, nil
}
