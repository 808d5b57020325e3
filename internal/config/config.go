package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Pipeline PipelineConfig
	OCR      OCRConfig
	Vertex   VertexConfig
	S3       S3Config
	Server   ServerConfig
	Log      LogConfig
}

// PipelineConfig holds validation, rasterization and scheduling settings.
type PipelineConfig struct {
	AcceptedTypes []string      `mapstructure:"accepted_types"`
	MaxSizeBytes  int64         `mapstructure:"max_size_bytes"`
	Scale         float64       `mapstructure:"scale"`
	Workers       int           `mapstructure:"workers"`
	RasterWorkers int           `mapstructure:"raster_workers"`
	RejectionTTL  time.Duration `mapstructure:"rejection_ttl"`
	Language      string        `mapstructure:"language"`
}

// OCRConfig selects and tunes the OCR engine.
type OCRConfig struct {
	Engine      string `mapstructure:"engine"`
	PageSegMode int    `mapstructure:"page_seg_mode"`
}

// VertexConfig holds settings for the Vertex AI vision engine.
type VertexConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Region    string `mapstructure:"region"`
	Model     string `mapstructure:"model"`
}

// S3Config holds settings for reading s3:// inputs.
type S3Config struct {
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxUploadMB  int64         `mapstructure:"max_upload_mb"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const (
	EngineTesseract = "tesseract"
	EngineVertex    = "vertex"
)

// Load reads configuration from environment variables with the OCRGRAB_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("OCRGRAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{}
	cfg.Pipeline = PipelineConfig{
		AcceptedTypes: splitList(v.GetString("pipeline.accepted_types")),
		MaxSizeBytes:  v.GetInt64("pipeline.max_size_bytes"),
		Scale:         v.GetFloat64("pipeline.scale"),
		Workers:       v.GetInt("pipeline.workers"),
		RasterWorkers: v.GetInt("pipeline.raster_workers"),
		RejectionTTL:  v.GetDuration("pipeline.rejection_ttl"),
		Language:      v.GetString("pipeline.language"),
	}
	cfg.OCR = OCRConfig{
		Engine:      strings.ToLower(v.GetString("ocr.engine")),
		PageSegMode: v.GetInt("ocr.page_seg_mode"),
	}
	cfg.Vertex = VertexConfig{
		ProjectID: v.GetString("vertex.project_id"),
		Region:    v.GetString("vertex.region"),
		Model:     v.GetString("vertex.model"),
	}
	cfg.S3 = S3Config{
		Region:    v.GetString("s3.region"),
		Endpoint:  v.GetString("s3.endpoint"),
		AccessKey: v.GetString("s3.access_key"),
		SecretKey: v.GetString("s3.secret_key"),
	}

	// Cloud Run and Cloud Functions set PORT. Use it unless the server port is set explicitly.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("OCRGRAB_SERVER_PORT") == "" {
		serverPort = ":" + port
	}
	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		MaxUploadMB:  v.GetInt64("server.max_upload_mb"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}

	if cfg.Pipeline.Workers == 0 {
		cfg.Pipeline.Workers = runtime.NumCPU()
	}
	if cfg.Pipeline.RasterWorkers == 0 {
		cfg.Pipeline.RasterWorkers = max(1, cfg.Pipeline.Workers/2)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Pipeline defaults
	v.SetDefault("pipeline.accepted_types", "application/pdf,image/*")
	v.SetDefault("pipeline.max_size_bytes", 0)
	v.SetDefault("pipeline.scale", 1.0)
	v.SetDefault("pipeline.workers", 0)
	v.SetDefault("pipeline.raster_workers", 0)
	v.SetDefault("pipeline.rejection_ttl", "5s")
	v.SetDefault("pipeline.language", "eng")

	// OCR defaults
	v.SetDefault("ocr.engine", EngineTesseract)
	v.SetDefault("ocr.page_seg_mode", 3)

	// Vertex defaults
	v.SetDefault("vertex.project_id", "")
	v.SetDefault("vertex.region", "us-central1")
	v.SetDefault("vertex.model", "gemini-1.5-pro")

	// S3 defaults
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.max_upload_mb", 64)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if len(c.Pipeline.AcceptedTypes) == 0 {
		return fmt.Errorf("pipeline.accepted_types must not be empty")
	}
	if c.Pipeline.Scale <= 0 {
		return fmt.Errorf("pipeline.scale must be positive, got %v", c.Pipeline.Scale)
	}
	if c.Pipeline.Workers < 0 {
		return fmt.Errorf("pipeline.workers must not be negative, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.RasterWorkers < 0 {
		return fmt.Errorf("pipeline.raster_workers must not be negative, got %d", c.Pipeline.RasterWorkers)
	}
	if c.Pipeline.MaxSizeBytes < 0 {
		return fmt.Errorf("pipeline.max_size_bytes must not be negative")
	}
	switch c.OCR.Engine {
	case EngineTesseract:
	case EngineVertex:
		if c.Vertex.ProjectID == "" {
			return fmt.Errorf("vertex.project_id must be set when ocr.engine is %q", EngineVertex)
		}
	default:
		return fmt.Errorf("unknown ocr engine: %s", c.OCR.Engine)
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
