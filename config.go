package main

import (
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LLMProvider     string  `yaml:"llm_provider"`
	LLMModel        string  `yaml:"llm_model"`
	AnthropicAPIKey string  `yaml:"anthropic_api_key"`
	OpenAIAPIKey    string  `yaml:"openai_api_key"`
	LLMTimeoutSecs  int     `yaml:"llm_timeout_seconds"`
	LLMRetries      int     `yaml:"llm_retries"`
	BatchSize       int     `yaml:"batch_size"`
	ExampleCount    int     `yaml:"example_count"`
	ExampleMaxLen   int     `yaml:"example_max_chars"`
	EvidenceMaxLen  int     `yaml:"evidence_max_chars"`
	PriceThreshold  float64 `yaml:"price_threshold"`

	SchemaPath string `yaml:"schema_path"`
	DBPath     string `yaml:"db_path"`
	VectorDir  string `yaml:"vector_dir"`
	OutputDir  string `yaml:"output_dir"`

	InboxDir            string `yaml:"inbox_dir"`
	AutoProcessSchedule string `yaml:"auto_process_schedule"`
}

func LoadConfig() Config {
	var cfg Config

	// Load from config.yaml if it exists
	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	// Env vars override YAML values
	envOverride(&cfg.LLMProvider, "LLM_PROVIDER")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	envOverrideInt(&cfg.LLMTimeoutSecs, "LLM_TIMEOUT_SECONDS")
	envOverrideInt(&cfg.LLMRetries, "LLM_RETRIES")
	envOverrideInt(&cfg.BatchSize, "BATCH_SIZE")
	envOverrideInt(&cfg.ExampleCount, "EXAMPLE_COUNT")
	envOverrideInt(&cfg.ExampleMaxLen, "EXAMPLE_MAX_CHARS")
	envOverrideInt(&cfg.EvidenceMaxLen, "EVIDENCE_MAX_CHARS")
	envOverrideFloat(&cfg.PriceThreshold, "PRICE_THRESHOLD")
	envOverride(&cfg.SchemaPath, "SCHEMA_PATH")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.VectorDir, "VECTOR_DIR")
	envOverride(&cfg.OutputDir, "OUTPUT_DIR")
	envOverride(&cfg.InboxDir, "INBOX_DIR")
	envOverride(&cfg.AutoProcessSchedule, "AUTO_PROCESS_SCHEDULE")

	// Defaults
	if cfg.LLMProvider == "" {
		cfg.LLMProvider = "anthropic"
	}
	if cfg.LLMTimeoutSecs == 0 {
		cfg.LLMTimeoutSecs = 60
	}
	if cfg.LLMRetries == 0 {
		cfg.LLMRetries = 1
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 40
	}
	if cfg.ExampleCount == 0 {
		cfg.ExampleCount = 2
	}
	if cfg.ExampleMaxLen == 0 {
		cfg.ExampleMaxLen = 500
	}
	if cfg.EvidenceMaxLen == 0 {
		cfg.EvidenceMaxLen = 20000
	}
	if cfg.PriceThreshold == 0 {
		cfg.PriceThreshold = 10000
	}
	if cfg.SchemaPath == "" {
		cfg.SchemaPath = "./schema.yaml"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./quotefill.db"
	}
	if cfg.VectorDir == "" {
		cfg.VectorDir = "./vectors"
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "./results"
	}

	switch cfg.LLMProvider {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			log.Fatalf("anthropic_api_key is required when llm_provider=anthropic")
		}
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			log.Fatalf("openai_api_key is required when llm_provider=openai")
		}
	default:
		log.Fatalf("llm_provider must be 'anthropic' or 'openai', got '%s'", cfg.LLMProvider)
	}

	if cfg.BatchSize < 1 {
		log.Fatalf("invalid batch_size '%d': must be >= 1", cfg.BatchSize)
	}
	if cfg.ExampleCount < 0 {
		log.Fatalf("invalid example_count '%d': must be >= 0", cfg.ExampleCount)
	}
	if cfg.ExampleMaxLen < 20 {
		log.Fatalf("invalid example_max_chars '%d': must be >= 20", cfg.ExampleMaxLen)
	}
	if cfg.EvidenceMaxLen < 1000 {
		log.Fatalf("invalid evidence_max_chars '%d': must be >= 1000", cfg.EvidenceMaxLen)
	}
	if cfg.PriceThreshold <= 0 {
		log.Fatalf("invalid price_threshold '%f': must be > 0", cfg.PriceThreshold)
	}
	if cfg.LLMTimeoutSecs < 1 {
		log.Fatalf("invalid llm_timeout_seconds '%d': must be >= 1", cfg.LLMTimeoutSecs)
	}
	if cfg.LLMRetries < 0 {
		log.Fatalf("invalid llm_retries '%d': must be >= 0", cfg.LLMRetries)
	}

	return cfg
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func envOverrideFloat(field *float64, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}
