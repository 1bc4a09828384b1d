// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	ES        ESConfig        `mapstructure:"elasticsearch"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Batch     BatchConfig     `mapstructure:"batch"`
	Threshold ThresholdConfig `mapstructure:"threshold"`
	LLM       LLMConfig       `mapstructure:"llm"`
}

// ServerConfig 存储 HTTP 服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// ESConfig 存储 Elasticsearch 相关的配置。
type ESConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
// MaxRetries 与 RetryBaseDelay 控制向量化失败时的线性退避重试；
// Timeout 是单次请求的超时，按尝试计，不按整个重试序列计。
type EmbeddingConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	Model          string        `mapstructure:"model"`
	Dimensions     int           `mapstructure:"dimensions"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	Timeout        time.Duration `mapstructure:"timeout"`
	ChunkSizeChars int           `mapstructure:"chunk_size_chars"`
}

// CacheConfig 存储缓存层相关的配置。
// 向量缓存的 TTL 比查询结果缓存更长：实体文本不常变化，而新文档持续写入。
type CacheConfig struct {
	VectorTTL time.Duration `mapstructure:"vector_ttl"`
	QueryTTL  time.Duration `mapstructure:"query_ttl"`
}

// BatchConfig 存储批量向量化工作池的配置。
type BatchConfig struct {
	MaxWorkers        int           `mapstructure:"max_workers"`
	DelayBetweenCalls time.Duration `mapstructure:"delay_between_calls"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryDelay        time.Duration `mapstructure:"retry_delay"`
}

// ThresholdConfig 是全部相似度阈值的统一配置表。
// 旧版本在多个模块里各写了一份阈值，这里收敛为唯一来源。
type ThresholdConfig struct {
	Context           float64 `mapstructure:"context"`
	Chunk             float64 `mapstructure:"chunk"`
	PreCheck          float64 `mapstructure:"pre_check"`
	PostCheck         float64 `mapstructure:"post_check"`
	Foreshadow        float64 `mapstructure:"foreshadow"`
	ForeshadowResolve float64 `mapstructure:"foreshadow_resolve"`
	ContextLimit      int     `mapstructure:"context_limit"`
	PostCheckChars    int     `mapstructure:"post_check_chars"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Model      string              `mapstructure:"model"`
	Generation LLMGenerationConfig `mapstructure:"generation"`
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// Load 从指定路径读取 YAML 配置文件并解析为 Config。
// 配置由组合根（main）加载后显式向下传递，不使用包级全局变量。
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// applyDefaults 为未配置的关键参数填充默认值。
func (c *Config) applyDefaults() {
	if c.Embedding.Dimensions == 0 {
		c.Embedding.Dimensions = 768
	}
	if c.Embedding.MaxRetries == 0 {
		c.Embedding.MaxRetries = 3
	}
	if c.Embedding.RetryBaseDelay == 0 {
		c.Embedding.RetryBaseDelay = time.Second
	}
	if c.Embedding.Timeout == 0 {
		c.Embedding.Timeout = 300 * time.Second
	}
	if c.Embedding.ChunkSizeChars == 0 {
		c.Embedding.ChunkSizeChars = 500
	}
	if c.Cache.VectorTTL == 0 {
		c.Cache.VectorTTL = 24 * time.Hour
	}
	if c.Cache.QueryTTL == 0 {
		c.Cache.QueryTTL = 10 * time.Minute
	}
	if c.Batch.MaxWorkers == 0 {
		c.Batch.MaxWorkers = 3
	}
	if c.Batch.DelayBetweenCalls == 0 {
		c.Batch.DelayBetweenCalls = 200 * time.Millisecond
	}
	if c.Batch.MaxRetries == 0 {
		c.Batch.MaxRetries = 3
	}
	if c.Batch.RetryDelay == 0 {
		c.Batch.RetryDelay = 500 * time.Millisecond
	}
	if c.Threshold.Context == 0 {
		c.Threshold.Context = 0.6
	}
	if c.Threshold.Chunk == 0 {
		c.Threshold.Chunk = 0.75
	}
	if c.Threshold.PreCheck == 0 {
		c.Threshold.PreCheck = 0.75
	}
	if c.Threshold.PostCheck == 0 {
		c.Threshold.PostCheck = 0.85
	}
	if c.Threshold.Foreshadow == 0 {
		c.Threshold.Foreshadow = 0.8
	}
	if c.Threshold.ForeshadowResolve == 0 {
		c.Threshold.ForeshadowResolve = 0.85
	}
	if c.Threshold.ContextLimit == 0 {
		c.Threshold.ContextLimit = 5
	}
	if c.Threshold.PostCheckChars == 0 {
		c.Threshold.PostCheckChars = 500
	}
}
