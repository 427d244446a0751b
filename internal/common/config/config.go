// internal/common/config/config.go
package config

import (
	"fmt"
	"net/url"
	"time"
)

type Config struct {
	App             AppConfig               `mapstructure:"app"`
	Camunda         CamundaConfig           `mapstructure:"camunda"`
	Database        DatabaseConfig          `mapstructure:"database"`
	AzureOpenAI     AzureOpenAIConfig       `mapstructure:"azure_openai"`
	Auth            AuthConfig              `mapstructure:"auth"`
	OCAP            OCAPConfig              `mapstructure:"ocap"`
	BackgroundTasks BackgroundTasksConfig   `mapstructure:"background_tasks"`
	Workers         map[string]WorkerConfig `mapstructure:"workers"`
	Tracing         TracingConfig           `mapstructure:"tracing"`
	Logging         LoggingConfig           `mapstructure:"logging"`
	Notifications   NotificationConfig      `mapstructure:"notifications"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
	APIPrefix   string `mapstructure:"api_prefix"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	MetricsPort int    `mapstructure:"metrics_port"`
	// ShutdownTimeout in milliseconds.
	ShutdownTimeout int `mapstructure:"shutdown_timeout"`
}

// Addr is the listen address of the public API.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

func (a AppConfig) MetricsAddr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.MetricsPort)
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	TLS            bool   `mapstructure:"tls"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	// URL takes precedence over the discrete fields when set.
	URL            string `mapstructure:"url"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

func (p PostgresConfig) GetDSN() string {
	if p.URL != "" {
		return p.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// DatabaseName returns the target database, parsing URL when it is set.
func (p PostgresConfig) DatabaseName() string {
	if p.URL == "" {
		return p.Database
	}
	u, err := url.Parse(p.URL)
	if err != nil || len(u.Path) < 2 {
		return p.Database
	}
	return u.Path[1:]
}

type ElasticsearchConfig struct {
	Addresses          []string `mapstructure:"addresses"`
	URL                string   `mapstructure:"url"`
	APIKey             string   `mapstructure:"api_key"`
	Username           string   `mapstructure:"username"`
	Password           string   `mapstructure:"password"`
	InsecureSkipVerify bool     `mapstructure:"insecure_skip_verify"`
}

func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// Timeout in milliseconds for dial, read and write.
	Timeout int `mapstructure:"timeout"`
}

type AzureOpenAIConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	APIKey      string  `mapstructure:"api_key"`
	APIVersion  string  `mapstructure:"api_version"`
	Deployment  string  `mapstructure:"deployment"`
	Timeout     int     `mapstructure:"timeout"` // milliseconds
	MaxRetries  int     `mapstructure:"max_retries"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

type AuthConfig struct {
	SecretKey                string `mapstructure:"secret_key"`
	AccessTokenExpireMinutes int    `mapstructure:"access_token_expire_minutes"`
	BcryptCost               int    `mapstructure:"bcrypt_cost"`
}

func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenExpireMinutes) * time.Minute
}

type OCAPConfig struct {
	KnowledgeIndex    string `mapstructure:"knowledge_index"`
	RelationshipIndex string `mapstructure:"relationship_index"`
	RegistryPath      string `mapstructure:"registry_path"`
	SearchSize        int    `mapstructure:"search_size"`
	// MemoryTTL in seconds for workflow state kept in Redis.
	MemoryTTL          int `mapstructure:"memory_ttl"`
	MemoryMaxWorkflows int `mapstructure:"memory_max_workflows"`
	// QueryTimeout in milliseconds for one full graph run.
	QueryTimeout int `mapstructure:"query_timeout"`
}

type BackgroundTasksConfig struct {
	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`
}

type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Exporter is one of jaeger, otlp-grpc, otlp-http.
	Exporter        string  `mapstructure:"exporter"`
	Endpoint        string  `mapstructure:"endpoint"`
	Insecure        bool    `mapstructure:"insecure"`
	JaegerAgentHost string  `mapstructure:"jaeger_agent_host"`
	JaegerAgentPort int     `mapstructure:"jaeger_agent_port"`
	ServiceName     string  `mapstructure:"service_name"`
	SampleRatio     float64 `mapstructure:"sample_ratio"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type NotificationConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Region         string `mapstructure:"region"`
	WorkflowTopic  string `mapstructure:"workflow_topic_arn"`
	SenderEmail    string `mapstructure:"sender_email"`
	WelcomeSubject string `mapstructure:"welcome_subject"`
}
