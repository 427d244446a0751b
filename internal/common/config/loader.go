// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads .env, configs/config.yaml, the APP_ENVIRONMENT overlay and the
// process environment, in that order of increasing precedence.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // overlay is optional

	return decode(v)
}

// LoadFromFile reads a single YAML file plus environment overrides.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	bindEnv(v)
	return v
}

// bindEnv registers keys that have no YAML default so AutomaticEnv can see them,
// plus the legacy variable names used by existing deployments.
func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("azure_openai.api_key", "AZURE_OPENAI_API_KEY")
	_ = v.BindEnv("azure_openai.api_version", "AZURE_OPENAI_API_VERSION")
	_ = v.BindEnv("azure_openai.endpoint", "AZURE_OPENAI_ENDPOINT")
	_ = v.BindEnv("azure_openai.deployment", "AZURE_OPENAI_DEPLOYMENT")
	_ = v.BindEnv("database.postgres.url", "DATABASE_POSTGRES_URL", "DB_URL")
	_ = v.BindEnv("database.elasticsearch.url", "DATABASE_ELASTICSEARCH_URL", "ELASTICSEARCH_HOST")
	_ = v.BindEnv("database.elasticsearch.api_key", "DATABASE_ELASTICSEARCH_API_KEY", "ELASTICSEARCH_API_KEY")
	_ = v.BindEnv("database.redis.username", "DATABASE_REDIS_USERNAME", "REDIS_USERNAME")
	_ = v.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD", "REDIS_PASSWORD")
	_ = v.BindEnv("auth.secret_key", "AUTH_SECRET_KEY", "SECRET_KEY")
	_ = v.BindEnv("tracing.enabled", "TRACING_ENABLED", "ENABLE_TRACING")
	_ = v.BindEnv("notifications.workflow_topic_arn", "NOTIFICATIONS_WORKFLOW_TOPIC_ARN")
}

func decode(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills Redis host/port style settings that older .env
// files still carry as separate variables.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Database.Redis.Address == "" {
		host := os.Getenv("REDIS_HOST")
		port := os.Getenv("REDIS_PORT")
		if host != "" {
			if port == "" {
				port = "6379"
			}
			cfg.Database.Redis.Address = host + ":" + port
		}
	}
	if cfg.Tracing.Endpoint == "" {
		if val := os.Getenv("JAEGER_COLLECTOR_ENDPOINT"); val != "" {
			cfg.Tracing.Endpoint = val
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "OCAP Agent"
	}
	if cfg.App.Version == "" {
		cfg.App.Version = "0.1.0"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}
	if cfg.App.APIPrefix == "" {
		cfg.App.APIPrefix = "/api/v1"
	}
	if cfg.App.Port == 0 {
		cfg.App.Port = 8000
	}
	if cfg.App.MetricsPort == 0 {
		cfg.App.MetricsPort = 8080
	}
	if cfg.App.ShutdownTimeout == 0 {
		cfg.App.ShutdownTimeout = 30000
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 15
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}
	if cfg.Database.Redis.Timeout == 0 {
		cfg.Database.Redis.Timeout = 3000
	}

	if cfg.AzureOpenAI.Timeout == 0 {
		cfg.AzureOpenAI.Timeout = 60000
	}
	if cfg.AzureOpenAI.MaxRetries == 0 {
		cfg.AzureOpenAI.MaxRetries = 2
	}

	if cfg.Auth.SecretKey == "" {
		cfg.Auth.SecretKey = "your-secret-key-here-change-in-production"
	}
	if cfg.Auth.AccessTokenExpireMinutes == 0 {
		cfg.Auth.AccessTokenExpireMinutes = 30
	}
	if cfg.Auth.BcryptCost == 0 {
		cfg.Auth.BcryptCost = 12
	}

	if cfg.OCAP.KnowledgeIndex == "" {
		cfg.OCAP.KnowledgeIndex = "ocap-knowledge-base"
	}
	if cfg.OCAP.RelationshipIndex == "" {
		cfg.OCAP.RelationshipIndex = "ocap-relationship-index"
	}
	if cfg.OCAP.RegistryPath == "" {
		cfg.OCAP.RegistryPath = "configs/registry.json"
	}
	if cfg.OCAP.SearchSize == 0 {
		cfg.OCAP.SearchSize = 50
	}
	if cfg.OCAP.MemoryTTL == 0 {
		cfg.OCAP.MemoryTTL = 2592000
	}
	if cfg.OCAP.MemoryMaxWorkflows == 0 {
		cfg.OCAP.MemoryMaxWorkflows = 100
	}
	if cfg.OCAP.QueryTimeout == 0 {
		cfg.OCAP.QueryTimeout = 120000
	}

	if cfg.BackgroundTasks.Workers == 0 {
		cfg.BackgroundTasks.Workers = 2
	}
	if cfg.BackgroundTasks.QueueSize == 0 {
		cfg.BackgroundTasks.QueueSize = 1000
	}

	if cfg.Tracing.Exporter == "" {
		cfg.Tracing.Exporter = "otlp-grpc"
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "ocap-agent"
	}
	if cfg.Tracing.JaegerAgentHost == "" {
		cfg.Tracing.JaegerAgentHost = "localhost"
	}
	if cfg.Tracing.JaegerAgentPort == 0 {
		cfg.Tracing.JaegerAgentPort = 6831
	}
	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = 1.0
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Notifications.Region == "" {
		cfg.Notifications.Region = "us-east-1"
	}
	if cfg.Notifications.WelcomeSubject == "" {
		cfg.Notifications.WelcomeSubject = "Welcome to " + cfg.App.Name
	}

	if cfg.Workers == nil {
		cfg.Workers = map[string]WorkerConfig{}
	}
	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

func validateConfig(cfg *Config) error {
	if cfg.App.Port <= 0 || cfg.App.Port > 65535 {
		return fmt.Errorf("app.port %d out of range", cfg.App.Port)
	}
	if !strings.HasPrefix(cfg.App.APIPrefix, "/") {
		return fmt.Errorf("app.api_prefix must start with '/'")
	}
	if cfg.Camunda.Enabled && cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required when camunda is enabled")
	}
	if cfg.BackgroundTasks.Workers < 1 {
		return fmt.Errorf("background_tasks.workers must be positive")
	}
	switch cfg.Tracing.Exporter {
	case "jaeger", "otlp-grpc", "otlp-http":
	default:
		return fmt.Errorf("tracing.exporter %q is not supported", cfg.Tracing.Exporter)
	}
	if cfg.Notifications.Enabled && cfg.Notifications.WorkflowTopic == "" && cfg.Notifications.SenderEmail == "" {
		return fmt.Errorf("notifications enabled without a topic or sender email")
	}
	return nil
}

func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	return WorkerConfig{
		Enabled:       false,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return false
}
