package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Server
	Port string

	// Secrets
	OpenRouterAPIKey string

	// Per-category upload ceilings. Treated as configuration, not constants.
	MaxUploadBytes      int64
	MaxPDFBytes         int64
	MaxImageBytes       int64
	MaxOfficeBytes      int64
	MaxSpreadsheetBytes int64
	MaxTextBytes        int64

	// Concurrency
	MaxConcurrentRequests int64
	MaxOCRConcurrent      int64

	// Server timeouts
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration

	// Rate limiting (per client IP)
	RateLimitEvery time.Duration
	RateLimitBurst int

	// Health
	HealthDegradeRatio float64

	// Vision / OCR upstream
	OCRModel          string
	OCRMaxTokens      int
	OCRTemperature    float64
	OCRRequestTimeout time.Duration

	// Monitoring thresholds
	MetricsWindow       time.Duration
	AlertErrorRate      float64
	AlertLatency        time.Duration
	AlertMinSamples     int
	MonitoringSweepTick time.Duration
}

// fileConfig is the optional YAML overlay; env vars override its values.
type fileConfig struct {
	Port   string `yaml:"port"`
	Limits struct {
		UploadMB      int `yaml:"uploadMB"`
		PDFMB         int `yaml:"pdfMB"`
		ImageMB       int `yaml:"imageMB"`
		OfficeMB      int `yaml:"officeMB"`
		SpreadsheetMB int `yaml:"spreadsheetMB"`
		TextMB        int `yaml:"textMB"`
	} `yaml:"limits"`
	OCR struct {
		Model       string  `yaml:"model"`
		MaxTokens   int     `yaml:"maxTokens"`
		Temperature float64 `yaml:"temperature"`
	} `yaml:"ocr"`
}

// Load builds the configuration from the environment, layered on top of the
// optional YAML file named by EXTRACT_CONFIG_FILE.
func Load() (Config, error) {
	var fc fileConfig
	if path := strings.TrimSpace(os.Getenv("EXTRACT_CONFIG_FILE")); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config file: %w", err)
		}
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return Config{}, fmt.Errorf("config file: %w", err)
		}
	}

	cfg := Config{
		Port: envStr("PORT", fallbackStr(fc.Port, "8080")),

		OpenRouterAPIKey: envStr("OPENROUTER_API_KEY", ""),

		MaxUploadBytes:      int64(envInt("MAX_UPLOAD_BYTES", mb(fc.Limits.UploadMB, 50))),
		MaxPDFBytes:         int64(envInt("MAX_PDF_BYTES", mb(fc.Limits.PDFMB, 15))),
		MaxImageBytes:       int64(envInt("MAX_IMAGE_BYTES", mb(fc.Limits.ImageMB, 10))),
		MaxOfficeBytes:      int64(envInt("MAX_OFFICE_BYTES", mb(fc.Limits.OfficeMB, 20))),
		MaxSpreadsheetBytes: int64(envInt("MAX_SPREADSHEET_BYTES", mb(fc.Limits.SpreadsheetMB, 20))),
		MaxTextBytes:        int64(envInt("MAX_TEXT_BYTES", mb(fc.Limits.TextMB, 5))),

		MaxConcurrentRequests: int64(envInt("MAX_CONCURRENT_REQUESTS", 15)),
		MaxOCRConcurrent:      int64(envInt("MAX_OCR_CONCURRENT", 3)),

		ReadHeaderTimeout: envDur("READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:       envDur("READ_TIMEOUT", 60*time.Second),
		WriteTimeout:      envDur("WRITE_TIMEOUT", 180*time.Second),
		IdleTimeout:       envDur("IDLE_TIMEOUT", 60*time.Second),

		RateLimitEvery: envDur("RATE_LIMIT_EVERY", 600*time.Millisecond),
		RateLimitBurst: envInt("RATE_LIMIT_BURST", 20),

		HealthDegradeRatio: envFloat("HEALTH_DEGRADE_RATIO", 0.9),

		OCRModel:          envStr("OCR_MODEL", fallbackStr(fc.OCR.Model, "google/gemma-3-27b-it")),
		OCRMaxTokens:      envInt("OCR_MAX_TOKENS", fallbackInt(fc.OCR.MaxTokens, 4096)),
		OCRTemperature:    envFloat("OCR_TEMPERATURE", fallbackFloat(fc.OCR.Temperature, 0.1)),
		OCRRequestTimeout: envDur("OCR_REQUEST_TIMEOUT", 60*time.Second),

		MetricsWindow:       envDur("METRICS_WINDOW", time.Hour),
		AlertErrorRate:      envFloat("ALERT_ERROR_RATE", 0.25),
		AlertLatency:        envDur("ALERT_LATENCY", 20*time.Second),
		AlertMinSamples:     envInt("ALERT_MIN_SAMPLES", 10),
		MonitoringSweepTick: envDur("MONITORING_SWEEP_TICK", time.Minute),
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if c.MaxUploadBytes < c.MaxPDFBytes || c.MaxUploadBytes < c.MaxImageBytes ||
		c.MaxUploadBytes < c.MaxOfficeBytes || c.MaxUploadBytes < c.MaxSpreadsheetBytes ||
		c.MaxUploadBytes < c.MaxTextBytes {
		return fmt.Errorf("MAX_UPLOAD_BYTES must cover every per-category ceiling")
	}
	return nil
}

func mb(fileValue, fallbackMB int) int {
	if fileValue > 0 {
		return fileValue << 20
	}
	return fallbackMB << 20
}

func fallbackStr(v, def string) string {
	if strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func fallbackInt(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func fallbackFloat(v, def float64) float64 {
	if v > 0 {
		return v
	}
	return def
}

func envStr(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}

func envDur(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
