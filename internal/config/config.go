// Package config 负责加载和管理应用程序的配置。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Log           LogConfig           `mapstructure:"log"`
	Gallery       GalleryConfig       `mapstructure:"gallery"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	Match         MatchConfig         `mapstructure:"match"`
	Enrichment    EnrichmentConfig    `mapstructure:"enrichment"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port        string `mapstructure:"port"`
	Mode        string `mapstructure:"mode"`
	CORSOrigins string `mapstructure:"cors_origins"`
	MaxUploadMB int    `mapstructure:"max_upload_mb"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// GalleryConfig 描述参考图库的位置与索引方式。
type GalleryConfig struct {
	Source  string `mapstructure:"source"` // "dir" 或 "minio"
	Dir     string `mapstructure:"dir"`
	Workers int    `mapstructure:"workers"`
}

// EmbeddingConfig 存储图像 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	Model      string        `mapstructure:"model"`
	Dimensions int           `mapstructure:"dimensions"`
	InputSize  int           `mapstructure:"input_size"`
	RateLimit  float64       `mapstructure:"rate_limit"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// MatchConfig 存储匹配请求相关的配置。
type MatchConfig struct {
	TopK    int           `mapstructure:"top_k"`
	MaxTopK int           `mapstructure:"max_top_k"`
	Timeout time.Duration `mapstructure:"timeout"`
	Ranker  string        `mapstructure:"ranker"` // "memory" 或 "elasticsearch"
}

// EnrichmentConfig 控制结果展示字段的生成方式。
type EnrichmentConfig struct {
	MinScore int `mapstructure:"min_score"`
	MaxScore int `mapstructure:"max_score"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置，用于宠物档案查询。
type MySQLConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置，用于图库向量缓存。
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Endpoint        string        `mapstructure:"endpoint"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	UseSSL          bool          `mapstructure:"use_ssl"`
	BucketName      string        `mapstructure:"bucket_name"`
	Prefix          string        `mapstructure:"prefix"`
	URLExpiry       time.Duration `mapstructure:"url_expiry"`
}

// KafkaConfig 存储 Kafka 相关的配置，用于图库刷新任务。
type KafkaConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// setDefaults 为所有配置项注册默认值，空配置文件即可在本地运行。
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "3000")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.cors_origins", "*")
	v.SetDefault("server.max_upload_mb", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("gallery.source", "dir")
	v.SetDefault("gallery.dir", "./dog-images")
	v.SetDefault("gallery.workers", 4)

	v.SetDefault("embedding.base_url", "http://localhost:8000/v1")
	v.SetDefault("embedding.model", "Xenova/clip-vit-base-patch32")
	v.SetDefault("embedding.dimensions", 512)
	v.SetDefault("embedding.input_size", 224)
	v.SetDefault("embedding.timeout", 20*time.Second)

	v.SetDefault("match.top_k", 5)
	v.SetDefault("match.max_top_k", 20)
	v.SetDefault("match.timeout", 30*time.Second)
	v.SetDefault("match.ranker", "memory")

	v.SetDefault("enrichment.min_score", 70)
	v.SetDefault("enrichment.max_score", 99)

	v.SetDefault("database.redis.addr", "localhost:6379")
	v.SetDefault("database.redis.ttl", 7*24*time.Hour)

	v.SetDefault("elasticsearch.addresses", "http://localhost:9200")
	v.SetDefault("elasticsearch.index_name", "pet_gallery")

	v.SetDefault("minio.bucket_name", "dog-images")
	v.SetDefault("minio.url_expiry", time.Hour)

	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "gallery-refresh")
	v.SetDefault("kafka.group_id", "pet-match-go-consumer")
}

// Load 读取指定路径的 YAML 文件并返回解析后的配置，不修改全局变量。
// 文件不存在时仅使用默认值与环境变量。
func Load(configPath string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PETMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return cfg, fmt.Errorf("读取配置文件失败: %w", err)
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = cfg
}

// Validate 检查互相关联的配置项。
func (c Config) Validate() error {
	if c.Match.TopK <= 0 {
		return fmt.Errorf("match.top_k 必须为正数, 当前为 %d", c.Match.TopK)
	}
	if c.Match.MaxTopK < c.Match.TopK {
		return fmt.Errorf("match.max_top_k (%d) 不能小于 match.top_k (%d)", c.Match.MaxTopK, c.Match.TopK)
	}
	if c.Enrichment.MinScore > c.Enrichment.MaxScore {
		return fmt.Errorf("enrichment.min_score (%d) 不能大于 max_score (%d)", c.Enrichment.MinScore, c.Enrichment.MaxScore)
	}
	if c.Embedding.InputSize <= 0 {
		return fmt.Errorf("embedding.input_size 必须为正数")
	}
	switch c.Gallery.Source {
	case "dir":
	case "minio":
		if !c.MinIO.Enabled {
			return fmt.Errorf("gallery.source=minio 需要启用 minio")
		}
	default:
		return fmt.Errorf("未知的 gallery.source: %q", c.Gallery.Source)
	}
	switch c.Match.Ranker {
	case "memory":
	case "elasticsearch":
		if !c.Elasticsearch.Enabled {
			return fmt.Errorf("match.ranker=elasticsearch 需要启用 elasticsearch")
		}
	default:
		return fmt.Errorf("未知的 match.ranker: %q", c.Match.Ranker)
	}
	return nil
}
