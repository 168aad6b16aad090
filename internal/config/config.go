package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"` // listen address, e.g. ":8080"
}

// MySQLConfig holds the MySQL connection settings.
type MySQLConfig struct {
	Address         string `yaml:"address"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	Database        string `yaml:"database"`
	MaxOpenConns    int    `yaml:"maxOpenConns"`
	MaxIdleConns    int    `yaml:"maxIdleConns"`
	ConnMaxLifetime int    `yaml:"connMaxLifetime"` // seconds
}

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MilvusConfig holds the Milvus connection settings and the embedding
// dimension used when bootstrapping per-folder collections.
type MilvusConfig struct {
	Address      string `yaml:"address"`
	EmbeddingDim int    `yaml:"embeddingDim"`
}

// KafkaConfig holds the ingestion job queue settings.
type KafkaConfig struct {
	Brokers   []string `yaml:"brokers"`
	JobsTopic string   `yaml:"jobsTopic"`
	GroupID   string   `yaml:"groupID"`
}

// MinIOConfig holds the raw-file archive settings. The archive is optional;
// an empty endpoint disables it.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Secure    bool   `yaml:"secure"`
}

// MongoConfig holds the ingestion report store settings. Optional; an empty
// URI disables it.
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// GoogleConfig holds the Drive OAuth client and the Gemini API settings.
type GoogleConfig struct {
	ClientID       string `yaml:"clientID"`
	ClientSecret   string `yaml:"clientSecret"`
	APIKey         string `yaml:"apiKey"`
	ChatModel      string `yaml:"chatModel"`
	EmbeddingModel string `yaml:"embeddingModel"`
}

// AuthConfig holds the settings for verifying bearer tokens. Token issuance
// happens in the auth service; this service only validates.
type AuthConfig struct {
	JWTSecret string `yaml:"jwtSecret"`
}

// IngestionConfig holds the tunables of the ingestion pipeline.
type IngestionConfig struct {
	ChunkSize           int      `yaml:"chunkSize"`
	ChunkOverlap        int      `yaml:"chunkOverlap"`
	DownloadConcurrency int      `yaml:"downloadConcurrency"`
	UploadConcurrency   int      `yaml:"uploadConcurrency"`
	IgnorePatterns      []string `yaml:"ignorePatterns"` // glob patterns of file names to skip while listing
}

// AppConfig is the root configuration object.
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	MySQL     MySQLConfig     `yaml:"mysql"`
	Redis     RedisConfig     `yaml:"redis"`
	Milvus    MilvusConfig    `yaml:"milvus"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	MinIO     MinIOConfig     `yaml:"minio"`
	Mongo     MongoConfig     `yaml:"mongo"`
	Google    GoogleConfig    `yaml:"google"`
	Auth      AuthConfig      `yaml:"auth"`
	Ingestion IngestionConfig `yaml:"ingestion"`
}

// Load reads and parses the YAML configuration file at path, applying
// defaults for unset ingestion tunables.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	applyDefaults(&cfg)
	if cfg.Ingestion.ChunkOverlap >= cfg.Ingestion.ChunkSize {
		return nil, fmt.Errorf("ingestion.chunkOverlap (%d) must be smaller than ingestion.chunkSize (%d)",
			cfg.Ingestion.ChunkOverlap, cfg.Ingestion.ChunkSize)
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Milvus.EmbeddingDim == 0 {
		cfg.Milvus.EmbeddingDim = 768
	}
	if cfg.Kafka.JobsTopic == "" {
		cfg.Kafka.JobsTopic = "ingest.jobs"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "drivemind-ingest"
	}
	if cfg.Google.ChatModel == "" {
		cfg.Google.ChatModel = "gemini-2.0-flash"
	}
	if cfg.Google.EmbeddingModel == "" {
		cfg.Google.EmbeddingModel = "text-embedding-004"
	}
	if cfg.Ingestion.ChunkSize == 0 {
		cfg.Ingestion.ChunkSize = 1000
	}
	if cfg.Ingestion.ChunkOverlap == 0 {
		cfg.Ingestion.ChunkOverlap = 200
	}
	if cfg.Ingestion.DownloadConcurrency == 0 {
		cfg.Ingestion.DownloadConcurrency = 5
	}
	if cfg.Ingestion.UploadConcurrency == 0 {
		// The native-file store misbehaves under parallel uploads, so the
		// default stays strictly sequential.
		cfg.Ingestion.UploadConcurrency = 1
	}
}
