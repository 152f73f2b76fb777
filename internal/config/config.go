// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Log        LogConfig        `mapstructure:"log"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Weaviate   WeaviateConfig   `mapstructure:"weaviate"`
	Anthropic  AnthropicConfig  `mapstructure:"anthropic"`
	Braintrust BraintrustConfig `mapstructure:"braintrust"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
// MySQL 与 Redis 均为可选：缺失时相应功能降级。
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

// JWTConfig 存储 JWT 相关的配置。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
	RefreshTokenExpireDays int    `mapstructure:"refresh_token_expire_days"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
// Brokers 为空时，优化触发退化为进程内 goroutine 直接调度。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// WeaviateConfig 存储向量库相关的配置。搜索链路的必需依赖。
// Profile 标识 collection 的 schema 版本（production / legacy），
// 采集适配器据此选择字段映射。
type WeaviateConfig struct {
	Host       string  `mapstructure:"host"`
	Scheme     string  `mapstructure:"scheme"`
	APIKey     string  `mapstructure:"api_key"`
	Collection string  `mapstructure:"collection"`
	Profile    string  `mapstructure:"profile"`
	Alpha      float64 `mapstructure:"alpha"`
	Limit      int     `mapstructure:"limit"`
}

// AnthropicConfig 存储答案生成模型相关的配置。搜索链路的必需依赖。
type AnthropicConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	Version     string  `mapstructure:"version"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// BraintrustConfig 存储遥测上报的配置。APIKey 为空时遥测完全旁路。
type BraintrustConfig struct {
	APIKey      string `mapstructure:"api_key"`
	BaseURL     string `mapstructure:"base_url"`
	ProjectName string `mapstructure:"project_name"`
}

// PipelineConfig 存储优化器的启发式阈值。
// 这些数值沿用原始产品的观测行为，不具备统计意义，按配置对待。
type PipelineConfig struct {
	MinExamplesForRetraining int           `mapstructure:"min_examples_for_retraining"`
	PerformanceDropThreshold float64       `mapstructure:"performance_drop_threshold"`
	ScheduleInterval         time.Duration `mapstructure:"schedule_interval"`
	MaxBootstrapExamples     int           `mapstructure:"max_bootstrap_examples"`
	ValidationSplitRatio     float64       `mapstructure:"validation_split_ratio"`
	MaxExamplesPerTask       int           `mapstructure:"max_examples_per_task"`
	DefaultModel             string        `mapstructure:"default_model"`
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
// 环境变量可覆盖同名配置项（如 VERONA_ANTHROPIC_API_KEY）。
func Init(configPath string) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("verona")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("读取配置文件失败: %w", err))
	}

	if err := viper.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("无法将配置解析到结构体中: %w", err))
	}
}

// setDefaults 注入与原始产品一致的默认阈值。
func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")

	viper.SetDefault("weaviate.scheme", "https")
	viper.SetDefault("weaviate.collection", "VC_PE_Claude97_Production")
	viper.SetDefault("weaviate.profile", "production")
	viper.SetDefault("weaviate.alpha", 0.5)
	viper.SetDefault("weaviate.limit", 20)

	viper.SetDefault("anthropic.base_url", "https://api.anthropic.com")
	viper.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	viper.SetDefault("anthropic.version", "2023-06-01")
	viper.SetDefault("anthropic.temperature", 0.1)
	viper.SetDefault("anthropic.max_tokens", 1000)

	viper.SetDefault("braintrust.base_url", "https://api.braintrust.dev")
	viper.SetDefault("braintrust.project_name", "VeronaAI")

	viper.SetDefault("kafka.topic", "pipeline-optimize")

	viper.SetDefault("pipeline.min_examples_for_retraining", 50)
	viper.SetDefault("pipeline.performance_drop_threshold", 0.15)
	viper.SetDefault("pipeline.schedule_interval", 24*time.Hour)
	viper.SetDefault("pipeline.max_bootstrap_examples", 20)
	viper.SetDefault("pipeline.validation_split_ratio", 0.2)
	viper.SetDefault("pipeline.max_examples_per_task", 100)
	viper.SetDefault("pipeline.default_model", "claude-sonnet-4-20250514")
}
