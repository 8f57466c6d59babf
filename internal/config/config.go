// Package config loads application settings from the environment. Settings
// are an explicit struct handed to constructors; there is no process-wide
// mutable singleton.
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// Settings holds every tunable the analysis core consumes: credentials,
// retry bounds, per-call timeouts, and the specialist weights.
type Settings struct {
	AnthropicAPIKey string
	RapidAPIKey     string
	SerperAPIKey    string
	SocrataAppToken string

	LoopNetBaseURL string
	LoopNetHost    string

	MaxRetries   int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	HTTPTimeout  time.Duration

	WeightInvestment   float64
	WeightLocation     float64
	WeightNews         float64
	WeightVCRisk       float64
	WeightConstruction float64

	DatasetLimit int
	ReportDBPath string
}

// Load reads .env (when present) and the process environment.
func Load(log *zap.SugaredLogger) Settings {
	if err := godotenv.Load(); err != nil && log != nil {
		log.Debug("no .env file found, using system env vars")
	}

	return Settings{
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		RapidAPIKey:     os.Getenv("RAPIDAPI_KEY"),
		SerperAPIKey:    os.Getenv("SERPER_API_KEY"),
		SocrataAppToken: os.Getenv("SOCRATA_APP_TOKEN"),

		LoopNetBaseURL: getEnv("LOOPNET_BASE_URL", "https://loopnet-api.p.rapidapi.com"),
		LoopNetHost:    getEnv("LOOPNET_HOST", "loopnet-api.p.rapidapi.com"),

		MaxRetries:   getEnvInt("MAX_RETRIES", 3),
		RetryWaitMin: time.Duration(getEnvInt("RETRY_WAIT_MIN_SEC", 1)) * time.Second,
		RetryWaitMax: time.Duration(getEnvInt("RETRY_WAIT_MAX_SEC", 10)) * time.Second,
		HTTPTimeout:  time.Duration(getEnvInt("HTTP_TIMEOUT_SEC", 30)) * time.Second,

		WeightInvestment:   getEnvFloat("WEIGHT_INVESTMENT", 0.30),
		WeightLocation:     getEnvFloat("WEIGHT_LOCATION", 0.25),
		WeightNews:         getEnvFloat("WEIGHT_NEWS", 0.10),
		WeightVCRisk:       getEnvFloat("WEIGHT_VC_RISK", 0.20),
		WeightConstruction: getEnvFloat("WEIGHT_CONSTRUCTION", 0.15),

		DatasetLimit: getEnvInt("DATASET_LIMIT", 50),
		ReportDBPath: getEnv("REPORT_DB_PATH", "./out/reports.db"),
	}
}

// Weights returns the specialist weight map keyed by specialist key.
func (s Settings) Weights() map[string]float64 {
	return map[string]float64{
		"investment":   s.WeightInvestment,
		"location":     s.WeightLocation,
		"news":         s.WeightNews,
		"vc_risk":      s.WeightVCRisk,
		"construction": s.WeightConstruction,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return fallback
	}
	return f
}
