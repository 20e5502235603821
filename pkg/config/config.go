package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	OpenAI    OpenAIConfig
	Poller    PollerConfig
	Sources   SourcesConfig
	Relevance RelevanceConfig
	Admin     AdminConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins string
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	CacheTTL int
}

type OpenAIConfig struct {
	APIKey      string
	FactsModel  string
	MarketModel string
	Temperature float32
	MaxTokens   int
	TimeoutSec  int
}

type PollerConfig struct {
	IntervalSeconds int
	SkipAnalysis    bool
	Disabled        bool
}

type SourcesConfig struct {
	WhiteHouseEnabled  bool
	WhiteHouseURL      string
	TruthSocialEnabled bool
	TruthSocialURL     string
	UserAgent          string
}

type RelevanceConfig struct {
	MinScore      int
	MinConfidence float64
}

type AdminConfig struct {
	APIKey string
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/trumpdump")

	viper.SetEnvPrefix("TRUMPDUMP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.allowedOrigins", "http://localhost:3000,http://localhost:5173")

	viper.SetDefault("sqlite.path", "./data/trumpdump.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.cacheTTL", 15)

	viper.SetDefault("openai.factsModel", "gpt-4o-mini")
	viper.SetDefault("openai.marketModel", "gpt-4o")
	viper.SetDefault("openai.temperature", 0.2)
	viper.SetDefault("openai.maxTokens", 2048)
	viper.SetDefault("openai.timeoutSec", 60)

	viper.SetDefault("poller.intervalSeconds", 60)
	viper.SetDefault("poller.skipAnalysis", false)
	viper.SetDefault("poller.disabled", false)

	viper.SetDefault("sources.whiteHouseEnabled", true)
	viper.SetDefault("sources.whiteHouseURL", "https://www.whitehouse.gov/briefings-statements/")
	viper.SetDefault("sources.truthSocialEnabled", true)
	viper.SetDefault("sources.truthSocialURL", "https://trumpstruth.org/")
	viper.SetDefault("sources.userAgent", "TrumpDumpBot/0.2 (contact: ops@trumpdump.dev)")

	viper.SetDefault("relevance.minScore", 50)
	viper.SetDefault("relevance.minConfidence", 0.65)

	viper.SetDefault("ratelimit.requestsPerMinute", 60)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
