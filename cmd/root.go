package cmd

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/resume-rag/internal/ai/gemini"
	"github.com/spigell/resume-rag/internal/chunker"
	"github.com/spigell/resume-rag/internal/embedding"
	"github.com/spigell/resume-rag/internal/matching"
	"github.com/spigell/resume-rag/internal/retriever"
)

const (
	app = "resume-rag"
)

type Config struct {
	AI       *AIConfig       `mapstructure:"ai"`
	RAG      *RAGConfig      `mapstructure:"rag"`
	Matching *MatchingConfig `mapstructure:"matching"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey             string        `mapstructure:"api-key"`
	APIKeyFile         string        `mapstructure:"api-key-file"`
	GenerationModels   []string      `mapstructure:"generation-models"`
	GenerationFallback string        `mapstructure:"generation-fallback"`
	EmbeddingModels    []string      `mapstructure:"embedding-models"`
	EmbeddingFallback  string        `mapstructure:"embedding-fallback"`
	RequestTimeout     time.Duration `mapstructure:"request-timeout"`
	// MaxRetries counts retries after the first attempt. Zero disables them.
	MaxRetries         int           `mapstructure:"max-retries"`
	MaxLogLength       int           `mapstructure:"max-log-length"`
	ResetAfterFailures int           `mapstructure:"reset-after-failures"`
}

type RAGConfig struct {
	ChunkSize            int     `mapstructure:"chunk-size"`
	TopK                 int     `mapstructure:"top-k"`
	EmbeddingDimension   int     `mapstructure:"embedding-dimension"`
	EmbeddingRate        float64 `mapstructure:"embedding-rate"`
	EmbeddingConcurrency int     `mapstructure:"embedding-concurrency"`
}

type MatchingConfig struct {
	ExcerptLength int `mapstructure:"excerpt-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:           app,
		Short:         "resume-rag matches a resume against a job description and answers questions about both",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("ai.gemini.api-key", "GEMINI_API_KEY"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY environment variable: %v", err)
	}
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	viper.SetDefault("ai.gemini.max-retries", gemini.DefaultMaxRetries)

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is resume-rag.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config needed only for analyze command. If there is no config file, defaults are used.
	if analyzeCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		// We can't proceed if the config file parsed with error.
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if config == nil {
		config = &Config{}
	}

	applyDefaults(config)
	return config, nil
}

var (
	defaultGenerationModels = []string{"gemini-2.5-flash", "gemini-2.0-flash", "gemini-1.5-flash"}
	defaultEmbeddingModels  = []string{"text-embedding-004", "gemini-embedding-001"}
)

func applyDefaults(config *Config) {
	if config.AI == nil {
		config.AI = &AIConfig{}
	}
	if config.AI.Gemini == nil {
		config.AI.Gemini = &GeminiConfig{}
	}
	g := config.AI.Gemini
	if len(g.GenerationModels) == 0 {
		g.GenerationModels = append([]string(nil), defaultGenerationModels...)
	}
	if g.GenerationFallback == "" {
		g.GenerationFallback = "gemini-pro"
	}
	if len(g.EmbeddingModels) == 0 {
		g.EmbeddingModels = append([]string(nil), defaultEmbeddingModels...)
	}
	if g.EmbeddingFallback == "" {
		g.EmbeddingFallback = "embedding-001"
	}
	if g.MaxLogLength <= 0 {
		g.MaxLogLength = 200
	}

	if config.RAG == nil {
		config.RAG = &RAGConfig{}
	}
	if config.RAG.ChunkSize <= 0 {
		config.RAG.ChunkSize = chunker.DefaultSize
	}
	if config.RAG.TopK <= 0 {
		config.RAG.TopK = retriever.DefaultTopK
	}
	if config.RAG.EmbeddingDimension <= 0 {
		config.RAG.EmbeddingDimension = embedding.DefaultDimension
	}
	// A negative rate turns the throttle off.
	if config.RAG.EmbeddingRate == 0 {
		config.RAG.EmbeddingRate = embedding.DefaultRatePerSecond
	}
	if config.RAG.EmbeddingConcurrency <= 0 {
		config.RAG.EmbeddingConcurrency = embedding.DefaultConcurrency
	}

	if config.Matching == nil {
		config.Matching = &MatchingConfig{}
	}
	if config.Matching.ExcerptLength <= 0 {
		config.Matching.ExcerptLength = matching.DefaultExcerptLength
	}
}
