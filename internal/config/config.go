package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lexsuite/review-cli/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	API     APIConfig     `yaml:"api" mapstructure:"api"`
	Upload  UploadConfig  `yaml:"upload" mapstructure:"upload"`
	Poll    PollConfig    `yaml:"poll" mapstructure:"poll"`
	Match   MatchConfig   `yaml:"match" mapstructure:"match"`
	Extract ExtractConfig `yaml:"extract" mapstructure:"extract"`
	Output  OutputConfig  `yaml:"output" mapstructure:"output"`
	Store   store.Config  `yaml:"store" mapstructure:"store"`
	Batch   BatchConfig   `yaml:"batch" mapstructure:"batch"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// APIConfig holds review backend connection settings.
type APIConfig struct {
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	Burst          int     `yaml:"burst" mapstructure:"burst"`
}

// UploadConfig constrains what may be uploaded.
type UploadConfig struct {
	MaxFileSizeBytes int64 `yaml:"max_file_size_bytes" mapstructure:"max_file_size_bytes"`
}

// PollConfig configures review status polling.
type PollConfig struct {
	IntervalMillis int `yaml:"interval_millis" mapstructure:"interval_millis"`
	TimeoutSecs    int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxFailures    int `yaml:"max_failures" mapstructure:"max_failures"`
}

// MatchConfig tunes the issue-to-line matcher.
type MatchConfig struct {
	MinAcceptScore float64 `yaml:"min_accept_score" mapstructure:"min_accept_score"`
	FullMatchScore float64 `yaml:"full_match_score" mapstructure:"full_match_score"`
	PartScoreScale float64 `yaml:"part_score_scale" mapstructure:"part_score_scale"`
	PartLengthCap  float64 `yaml:"part_length_cap" mapstructure:"part_length_cap"`
}

// ExtractConfig configures contract text extraction.
type ExtractConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"`
}

// OutputConfig configures where downloaded artifacts land.
type OutputConfig struct {
	Dir         string `yaml:"dir" mapstructure:"dir"`
	Timestamped bool   `yaml:"timestamped" mapstructure:"timestamped"`
}

// BatchConfig configures batch review runs.
type BatchConfig struct {
	MaxConcurrentReviews int `yaml:"max_concurrent_reviews" mapstructure:"max_concurrent_reviews"`
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("REVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://127.0.0.1:8000")
	v.SetDefault("api.timeout_secs", 30)
	v.SetDefault("api.requests_per_sec", 10)
	v.SetDefault("api.burst", 5)
	v.SetDefault("upload.max_file_size_bytes", 10*1024*1024)
	v.SetDefault("poll.interval_millis", 2000)
	v.SetDefault("poll.timeout_secs", 300)
	v.SetDefault("poll.max_failures", 3)
	v.SetDefault("match.min_accept_score", 15)
	v.SetDefault("match.full_match_score", 100)
	v.SetDefault("match.part_score_scale", 60)
	v.SetDefault("match.part_length_cap", 10)
	v.SetDefault("extract.provider", "auto")
	v.SetDefault("output.dir", ".")
	v.SetDefault("output.timestamped", false)
	v.SetDefault("store.backend", "sqlite")
	v.SetDefault("store.path", "review-history.db")
	v.SetDefault("batch.max_concurrent_reviews", 3)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
