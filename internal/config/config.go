package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string           `yaml:"env" env:"ENV" env-default:"local"`
	BaseURL    string           `yaml:"base_url" env:"BASE_URL"`
	Storage    StorageConfig    `yaml:"storage"`
	Redis      RedisConfig      `yaml:"redis"`
	DynamoDB   DynamoDBConfig   `yaml:"dynamodb"`
	HTTPServer HTTPServerConfig `yaml:"http_server"`
	Migrations MigrationsConfig `yaml:"migrations"`
	Allocation AllocationConfig `yaml:"allocation"`
	Analytics  AnalyticsConfig  `yaml:"analytics"`
	Insight    InsightConfig    `yaml:"insight"`
	Threat     ThreatConfig     `yaml:"threat"`
	PublicList PublicListConfig `yaml:"public_list"`
	Admin      AdminConfig      `yaml:"admin"`
}

type StorageConfig struct {
	// Driver is one of memory, sqlite, redis, dynamodb.
	Driver  string        `yaml:"driver" env:"STORAGE_DRIVER" env-default:"sqlite"`
	Path    string        `yaml:"path" env:"STORAGE_PATH" env-default:"./storage/links.db"`
	Timeout time.Duration `yaml:"timeout" env-default:"3s"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env-default:"0"`
}

type DynamoDBConfig struct {
	Region          string `yaml:"region" env:"AWS_REGION" env-default:"us-east-1"`
	Endpoint        string `yaml:"endpoint" env:"DYNAMODB_ENDPOINT"`
	AccessKeyID     string `yaml:"access_key_id" env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"AWS_SECRET_ACCESS_KEY"`
	LinksTable      string `yaml:"links_table" env:"LINKS_TABLE" env-default:"links"`
	AliasesTable    string `yaml:"aliases_table" env:"ALIASES_TABLE" env-default:"link_aliases"`
	ClicksTable     string `yaml:"clicks_table" env:"CLICKS_TABLE" env-default:"clicks"`
	CountersTable   string `yaml:"counters_table" env:"COUNTERS_TABLE" env-default:"category_counters"`
	InsightsTable   string `yaml:"insights_table" env:"INSIGHTS_TABLE" env-default:"insight_history"`
	MonitorTable    string `yaml:"monitor_table" env:"MONITOR_TABLE" env-default:"monitor_metrics"`
	VisibilityIndex string `yaml:"visibility_index" env-default:"VisibilityIndex"`
}

type HTTPServerConfig struct {
	Address     string        `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"5s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	// RateLimit is the number of shorten requests per second allowed per client IP.
	RateLimit float64 `yaml:"rate_limit" env-default:"1"`
	Burst     int     `yaml:"burst" env-default:"5"`
}

type MigrationsConfig struct {
	MigrationTable string `yaml:"migration_table" env-default:"migrations"`
	AutoMigrate    bool   `yaml:"auto_migrate" env-default:"true"`
}

type AllocationConfig struct {
	CodeLength  int `yaml:"code_length" env-default:"7"`
	MaxAttempts int `yaml:"max_attempts" env-default:"10"`
}

type AnalyticsConfig struct {
	Window time.Duration `yaml:"window" env-default:"168h"`
	// Dispatcher is inline (in-process goroutine) or nats.
	Dispatcher    string        `yaml:"dispatcher" env:"ANALYTICS_DISPATCHER" env-default:"inline"`
	RecordTimeout time.Duration `yaml:"record_timeout" env-default:"5s"`
	NATSURL       string        `yaml:"nats_url" env:"NATS_URL" env-default:"nats://127.0.0.1:4222"`
	NATSSubject   string        `yaml:"nats_subject" env-default:"links.clicks"`
	NATSQueue     string        `yaml:"nats_queue" env-default:"click-aggregators"`
}

type InsightConfig struct {
	TTL            time.Duration `yaml:"ttl" env-default:"24h"`
	Timeout        time.Duration `yaml:"timeout" env-default:"10s"`
	GeminiAPIKey   string        `yaml:"gemini_api_key" env:"GEMINI_API_KEY"`
	GeminiModel    string        `yaml:"gemini_model" env-default:"gemini-2.5-flash"`
	GeminiEndpoint string        `yaml:"gemini_endpoint" env-default:"https://generativelanguage.googleapis.com/v1beta"`
}

type ThreatConfig struct {
	Timeout              time.Duration `yaml:"timeout" env-default:"3s"`
	SafeBrowsingAPIKey   string        `yaml:"safe_browsing_api_key" env:"SAFE_BROWSING_API_KEY"`
	SafeBrowsingEndpoint string        `yaml:"safe_browsing_endpoint" env-default:"https://safebrowsing.googleapis.com/v4"`
	GeminiEnabled        bool          `yaml:"gemini_enabled" env-default:"true"`
}

type PublicListConfig struct {
	DefaultLimit int `yaml:"default_limit" env-default:"10"`
	MaxLimit     int `yaml:"max_limit" env-default:"100"`
}

type AdminConfig struct {
	Token string `yaml:"token" env:"ADMIN_TOKEN"`
}

func MustLoad() *Config {
	path := fetchConfigPath()
	if path == "" {
		panic("config file path is empty")
	}

	return MustLoadByPath(path)
}

func MustLoadByPath(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file not found: " + configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("failed to read config: " + err.Error())
	}

	return &cfg
}

func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}
	return res
}
