package infra

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// UsageConfigYAML 代表 config.yml 中的使用量統計配置
type UsageConfigYAML struct {
	RetentionHours        int  `yaml:"retention_hours"`         // 紀錄保留時間
	CleanIntervalMinutes  int  `yaml:"clean_interval_minutes"`  // 清除過期紀錄的間隔
	BackupIntervalMinutes int  `yaml:"backup_interval_minutes"` // 備份到 MongoDB 的間隔
	TrustProxy            bool `yaml:"trust_proxy"`             // 是否信任 X-Forwarded-For
	TopLimit              int  `yaml:"top_limit"`               // 排行榜筆數
}

// IPFSConfigYAML 代表 config.yml 中的 IPFS 協調層配置
type IPFSConfigYAML struct {
	V1Relays              []string `yaml:"v1_relays"`               // 靜態設定的 v1 Circuit Relay
	ConnectTimeoutSeconds int      `yaml:"connect_timeout_seconds"` // /ipfs/connect 等待回覆的時間
	PeerTTLMinutes        int      `yaml:"peer_ttl_minutes"`        // peer 公告的有效時間
	ConnectPerMinute      int      `yaml:"connect_per_minute"`      // /ipfs/connect 每分鐘上限
	ConnectBurst          int      `yaml:"connect_burst"`           // /ipfs/connect 瞬間上限
}

// TelemetryConfigYAML 代表 config.yml 中的 OpenTelemetry 配置
type TelemetryConfigYAML struct {
	Enabled      bool    `yaml:"enabled"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"` // OTEL_EXPORTER_OTLP_ENDPOINT 優先
	SampleRatio  float64 `yaml:"sample_ratio"`  // 0 或 1 表示全部取樣
}

type Config struct {
	App struct {
		Name       string `yaml:"name"`
		AppVersion string `yaml:"app_version"`
		Port       int    `yaml:"port"`
		LogLevel   string `yaml:"log_level"` // LOG_LEVEL 環境變數優先
	} `yaml:"app"`
	MongoDB struct {
		URI                   string `yaml:"uri"`
		Database              string `yaml:"database"`
		ConnectTimeoutSeconds int    `yaml:"connect_timeout_seconds"`
		MaxPoolSize           uint64 `yaml:"max_pool_size"`
	} `yaml:"mongodb"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`
	RabbitMQ struct {
		URL      string `yaml:"url"`
		Prefetch int    `yaml:"prefetch"`
	} `yaml:"rabbitmq"`
	JWT struct {
		SecretKey    string `yaml:"secret_key"`
		ExpiresHours int    `yaml:"expires_hours"`
	} `yaml:"jwt"`
	Admin struct {
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"admin"`
	Usage       UsageConfigYAML     `yaml:"usage"`
	IPFS        IPFSConfigYAML      `yaml:"ipfs"`
	Telemetry   TelemetryConfigYAML `yaml:"telemetry"`
	CertBaseURL string              `yaml:"cert_base_url"`
}

var AppConfig Config

func LoadConfig() error {
	return LoadConfigFrom("config.yml")
}

// LoadConfigFrom 從指定路徑讀取設定檔並補上預設值
func LoadConfigFrom(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	err = decoder.Decode(&cfg)
	if err != nil {
		return err
	}
	cfg.applyDefaults()
	AppConfig = cfg
	return nil
}

// applyDefaults 未設定的欄位使用預設值
func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = ServiceName
	}
	if c.App.Port == 0 {
		c.App.Port = 5001
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.MongoDB.ConnectTimeoutSeconds == 0 {
		c.MongoDB.ConnectTimeoutSeconds = 10
	}
	if c.MongoDB.Database == "" {
		c.MongoDB.Database = "ipfs-service-provider"
	}
	if c.JWT.ExpiresHours == 0 {
		c.JWT.ExpiresHours = 24 * 30
	}
	if c.Usage.RetentionHours == 0 {
		c.Usage.RetentionHours = 24
	}
	if c.Usage.CleanIntervalMinutes == 0 {
		c.Usage.CleanIntervalMinutes = 60
	}
	if c.Usage.BackupIntervalMinutes == 0 {
		c.Usage.BackupIntervalMinutes = 1
	}
	if c.Usage.TopLimit == 0 {
		c.Usage.TopLimit = 20
	}
	if c.RabbitMQ.Prefetch == 0 {
		c.RabbitMQ.Prefetch = 50
	}
	if c.Telemetry.OTLPEndpoint == "" {
		c.Telemetry.OTLPEndpoint = "localhost:4317"
	}
	if c.IPFS.ConnectTimeoutSeconds == 0 {
		c.IPFS.ConnectTimeoutSeconds = 10
	}
	if c.IPFS.PeerTTLMinutes == 0 {
		c.IPFS.PeerTTLMinutes = 10
	}
	if c.IPFS.ConnectPerMinute == 0 {
		c.IPFS.ConnectPerMinute = 30
	}
	if c.IPFS.ConnectBurst == 0 {
		c.IPFS.ConnectBurst = 5
	}
}

func (u UsageConfigYAML) Retention() time.Duration {
	return time.Duration(u.RetentionHours) * time.Hour
}

func (u UsageConfigYAML) CleanInterval() time.Duration {
	return time.Duration(u.CleanIntervalMinutes) * time.Minute
}

func (u UsageConfigYAML) BackupInterval() time.Duration {
	return time.Duration(u.BackupIntervalMinutes) * time.Minute
}

func (i IPFSConfigYAML) ConnectTimeout() time.Duration {
	return time.Duration(i.ConnectTimeoutSeconds) * time.Second
}

func (i IPFSConfigYAML) PeerTTL() time.Duration {
	return time.Duration(i.PeerTTLMinutes) * time.Minute
}

// MongoConfig 由 config.yml 組出連線設定
func (c Config) MongoConfig() MongoConfig {
	return MongoConfig{
		URI:            c.MongoDB.URI,
		Database:       c.MongoDB.Database,
		ConnectTimeout: time.Duration(c.MongoDB.ConnectTimeoutSeconds) * time.Second,
		MaxPoolSize:    c.MongoDB.MaxPoolSize,
	}
}

func (c Config) RedisConfig() RedisConfig {
	return RedisConfig{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		PoolSize: c.Redis.PoolSize,
	}
}

func (c Config) RabbitMQConfig() RabbitMQConfig {
	return RabbitMQConfig{
		URL:      c.RabbitMQ.URL,
		Prefetch: c.RabbitMQ.Prefetch,
	}
}
