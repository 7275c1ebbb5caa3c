package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all harness configuration
type Config struct {
	Inference InferenceConfig
	Eval      EvalConfig
	Output    OutputConfig
}

// InferenceConfig holds remote-endpoint configuration
type InferenceConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
}

// EvalConfig holds run-level configuration
type EvalConfig struct {
	Concurrency int
	MaxPages    int
}

// OutputConfig holds report persistence configuration
type OutputConfig struct {
	Dir    string
	DBPath string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Inference: InferenceConfig{
			BaseURL:     getEnv("MODEL_API_URL", ""),
			APIKey:      getEnv("MODEL_API_KEY", ""),
			Model:       getEnv("MODEL_NAME", "DotsOCR"),
			Temperature: getEnvAsFloat32("MODEL_TEMPERATURE", 0.1),
			MaxTokens:   getEnvAsInt("INFER_MAX_TOKENS", 24000),
			Timeout:     getEnvAsDuration("INFER_TIMEOUT", 60*time.Second),
			MaxRetries:  getEnvAsInt("INFER_MAX_RETRIES", 3),
		},
		Eval: EvalConfig{
			Concurrency: getEnvAsInt("EVAL_CONCURRENCY", 4),
			MaxPages:    getEnvAsInt("EVAL_MAX_PAGES", 10),
		},
		Output: OutputConfig{
			Dir:    getEnv("OUTPUT_DIR", "./sample_outputs"),
			DBPath: getEnv("RUN_DB_PATH", ""),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Inference.BaseURL == "" {
		return NewAppError("CONFIG_ERROR", "MODEL_API_URL is required", ErrInvalidInput)
	}
	if c.Inference.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "MODEL_API_KEY is required", ErrInvalidInput)
	}
	if c.Eval.Concurrency <= 0 {
		return NewAppError("CONFIG_ERROR", "EVAL_CONCURRENCY must be positive", ErrInvalidInput)
	}
	if c.Inference.MaxRetries <= 0 {
		return NewAppError("CONFIG_ERROR", "INFER_MAX_RETRIES must be positive", ErrInvalidInput)
	}
	return nil
}
