package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every setting the service reads at startup.
type Config struct {
	Server    ServerConfig
	AI        AIConfig
	Store     StoreConfig
	Retrieval RetrievalConfig
	Voice     VoiceConfig
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	retrieval, err := loadRetrievalConfig()
	if err != nil {
		return nil, err
	}

	voice, err := loadVoiceConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:    server,
		AI:        ai,
		Store:     StoreConfig{Path: getEnvOrDefault("SESSION_DB_PATH", "sessions.db")},
		Retrieval: retrieval,
		Voice:     voice,
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// accepts ":8080" or "127.0.0.1:8080"
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig describes the Ark chat model.
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled reports whether the required credentials are present.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel builds a fresh model instance. Each caller that binds tools needs
// its own instance.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: set ARK_API_KEY + Model or an AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("Model")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

// StoreConfig locates the session database. ":memory:" keeps everything in process.
type StoreConfig struct {
	Path string
}

// RetrievalConfig covers the vector index, the embedding model and chunking.
type RetrievalConfig struct {
	QdrantHost     string
	QdrantPort     int
	QdrantAPIKey   string
	QdrantUseTLS   bool
	Collection     string
	TopK           int
	ScoreThreshold *float64
	OllamaHost     string
	EmbedModel     string
	EmbedTimeout   time.Duration
	ChunkSize      int
	ChunkOverlap   int
}

func loadRetrievalConfig() (RetrievalConfig, error) {
	port, err := parseIntEnv("QDRANT_PORT", 6334)
	if err != nil {
		return RetrievalConfig{}, err
	}

	useTLS, err := parseBoolEnv("QDRANT_USE_TLS", false)
	if err != nil {
		return RetrievalConfig{}, err
	}

	topK, err := parseIntEnv("RAG_TOP_K", 3)
	if err != nil {
		return RetrievalConfig{}, err
	}
	if topK < 1 {
		return RetrievalConfig{}, fmt.Errorf("invalid RAG_TOP_K value %d: must be at least 1", topK)
	}

	threshold, err := parseOptionalFloatEnv("RAG_SCORE_THRESHOLD")
	if err != nil {
		return RetrievalConfig{}, err
	}

	timeoutSeconds, err := parseIntEnv("OLLAMA_TIMEOUT", 30)
	if err != nil {
		return RetrievalConfig{}, err
	}

	chunkSize, err := parseIntEnv("RAG_CHUNK_SIZE", 1000)
	if err != nil {
		return RetrievalConfig{}, err
	}

	chunkOverlap, err := parseIntEnv("RAG_CHUNK_OVERLAP", 200)
	if err != nil {
		return RetrievalConfig{}, err
	}
	if chunkSize < 1 || chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return RetrievalConfig{}, fmt.Errorf("invalid chunking: size=%d overlap=%d", chunkSize, chunkOverlap)
	}

	return RetrievalConfig{
		QdrantHost:     getEnvOrDefault("QDRANT_HOST", "localhost"),
		QdrantPort:     port,
		QdrantAPIKey:   strings.TrimSpace(os.Getenv("QDRANT_API_KEY")),
		QdrantUseTLS:   useTLS,
		Collection:     getEnvOrDefault("QDRANT_COLLECTION", "my_rag"),
		TopK:           topK,
		ScoreThreshold: threshold,
		OllamaHost:     getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434"),
		EmbedModel:     getEnvOrDefault("OLLAMA_EMBED_MODEL", "all-minilm"),
		EmbedTimeout:   time.Duration(timeoutSeconds) * time.Second,
		ChunkSize:      chunkSize,
		ChunkOverlap:   chunkOverlap,
	}, nil
}

// VoiceConfig controls the websocket voice agent.
type VoiceConfig struct {
	Enabled      bool
	Instructions string
	Greeting     string
}

func loadVoiceConfig() (VoiceConfig, error) {
	enabled, err := parseBoolEnv("VOICE_ENABLED", true)
	if err != nil {
		return VoiceConfig{}, err
	}

	return VoiceConfig{
		Enabled:      enabled,
		Instructions: strings.TrimSpace(os.Getenv("VOICE_INSTRUCTIONS")),
		Greeting:     strings.TrimSpace(os.Getenv("VOICE_GREETING")),
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	val, err := parseOptionalIntEnv(key)
	if err != nil {
		return 0, err
	}
	if val == nil {
		return defaultValue, nil
	}
	return *val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
