package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultSecret is only suitable for local development.
const DefaultSecret = "super-secret-key"

// Load reads the .env file specified by CONDENSATE_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("CONDENSATE_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	_ = godotenv.Load(envFile)
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

func MigrationsPath() string {
	return stringOr("MIGRATIONS_PATH", "migrations")
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	return positiveFloat("RATE_LIMIT_RPS", 100)
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	return positiveInt("RATE_LIMIT_BURST", 20)
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	return stringOr("LOG_LEVEL", "info")
}

// ReviewMode returns "auto" or "manual". Anything else is treated as manual.
func ReviewMode() string {
	if strings.EqualFold(os.Getenv("REVIEW_MODE"), "auto") {
		return "auto"
	}
	return "manual"
}

func InstructionBlockThreshold() float64 {
	return nonNegativeFloat("INSTRUCTION_BLOCK_THRESHOLD", 0.5)
}

func SafetyBlockThreshold() float64 {
	return nonNegativeFloat("SAFETY_BLOCK_THRESHOLD", 0.7)
}

// LLMEnabled switches the orchestrator onto the language-model path.
// Defaults to false.
func LLMEnabled() bool {
	v, err := strconv.ParseBool(os.Getenv("LLM_ENABLED"))
	return err == nil && v
}

// LLMProvider selects the extractor implementation: "openai" or "mock".
func LLMProvider() string {
	return stringOr("LLM_PROVIDER", "openai")
}

func LLMBaseURL() string {
	return stringOr("LLM_BASE_URL", "http://localhost:11434/v1")
}

func LLMModel() string {
	return stringOr("LLM_MODEL", "phi3")
}

func LLMAPIKey() string {
	return os.Getenv("LLM_API_KEY")
}

func LLMMaxConcurrency() int {
	return positiveInt("LLM_MAX_CONCURRENCY", 4)
}

// Secret returns the provenance signing key and whether it was explicitly set.
func Secret() (string, bool) {
	s := os.Getenv("CONDENSATE_SECRET")
	if s == "" {
		return DefaultSecret, false
	}
	return s, true
}

// NERURL is the model-backed entity extractor endpoint. Empty disables NER.
func NERURL() string {
	return os.Getenv("NER_URL")
}

func PoolInitialWorkers() int {
	return positiveInt("POOL_INITIAL_WORKERS", 4)
}

func PoolMinWorkers() int {
	return positiveInt("POOL_MIN_WORKERS", 2)
}

func PoolMaxWorkers() int {
	return positiveInt("POOL_MAX_WORKERS", 16)
}

func PoolMonitorInterval() time.Duration {
	return duration("POOL_MONITOR_INTERVAL", 5*time.Second)
}

func DecayInterval() time.Duration {
	return duration("DECAY_INTERVAL", 24*time.Hour)
}

func DecayRate() float64 {
	return positiveFloat("DECAY_RATE", 0.05)
}

func GuardrailPatternsFile() string {
	return os.Getenv("GUARDRAIL_PATTERNS_FILE")
}

// StopwordsFile is the cached stop word corpus, one word per line.
func StopwordsFile() string {
	return os.Getenv("STOPWORDS_FILE")
}

// StopwordsURL is downloaded into StopwordsFile when the cache is missing.
// Empty keeps the built-in list.
func StopwordsURL() string {
	return os.Getenv("STOPWORDS_URL")
}

func stringOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func positiveInt(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func positiveFloat(key string, def float64) float64 {
	f, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || f <= 0 {
		return def
	}
	return f
}

func nonNegativeFloat(key string, def float64) float64 {
	f, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || f < 0 {
		return def
	}
	return f
}

func duration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return def
	}
	return d
}
