package types

import (
	"time"
)

type ConfigManager interface {
	Load() error
	GetConfig() *ServiceConfig
	GetAs(path string, target interface{}) error
}

type ServiceConfig struct {
	Name    string         `yaml:"name" json:"name" validate:"required"`
	Version string         `yaml:"version" json:"version" validate:"required"`
	Logger  *LoggerConfig  `yaml:"logger" json:"logger" validate:"required"`
	Gateway *GatewayConfig `yaml:"gateway" json:"gateway" validate:"required"`
	Cache   *CacheConfig   `yaml:"cache" json:"cache" validate:"required"`
	Feed    *FeedConfig    `yaml:"feed" json:"feed" validate:"required"`
	Profile *ProfileConfig `yaml:"profile" json:"profile" validate:"required"`
	Session *SessionConfig `yaml:"session" json:"session" validate:"required"`
	Metrics *MetricsConfig `yaml:"metrics" json:"metrics"`
}

type LoggerConfig struct {
	Type   string      `yaml:"type" json:"type"`
	Level  string      `yaml:"level" json:"level" validate:"required"`
	Config interface{} `yaml:"config" json:"config"`
}

type GatewayConfig struct {
	BaseURL        string                `yaml:"base_url" json:"base_url" validate:"required,url"`
	Timeout        time.Duration         `yaml:"timeout" json:"timeout" validate:"min=0"`
	Retries        int                   `yaml:"retries" json:"retries" validate:"min=0,max=10"`
	RetryBackoff   time.Duration         `yaml:"retry_backoff" json:"retry_backoff" validate:"min=0"`
	UserAgent      string                `yaml:"user_agent" json:"user_agent"`
	CircuitBreaker *CircuitBreakerConfig `yaml:"circuit_breaker" json:"circuit_breaker"`
}

type CircuitBreakerConfig struct {
	Enabled          bool          `yaml:"enabled" json:"enabled"`
	FailureThreshold int           `yaml:"failure_threshold" json:"failure_threshold" validate:"min=0"`
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout" json:"recovery_timeout"`
	HalfOpenRequests int           `yaml:"half_open_requests" json:"half_open_requests" validate:"min=0"`
}

type CacheConfig struct {
	StaleTime  time.Duration  `yaml:"stale_time" json:"stale_time" validate:"min=0"`
	GCTime     time.Duration  `yaml:"gc_time" json:"gc_time" validate:"min=0"`
	GCSchedule string         `yaml:"gc_schedule" json:"gc_schedule"`
	Persist    *PersistConfig `yaml:"persist" json:"persist"`
}

type PersistConfig struct {
	Enabled bool        `yaml:"enabled" json:"enabled"`
	Type    string      `yaml:"type" json:"type" validate:"required_if=Enabled true"`
	Config  interface{} `yaml:"config" json:"config"`
}

type FeedConfig struct {
	PageSize            int  `yaml:"page_size" json:"page_size" validate:"min=1,max=100"`
	RevalidateAfterLike bool `yaml:"revalidate_after_like" json:"revalidate_after_like"`
}

type ProfileConfig struct {
	StaleTime  time.Duration `yaml:"stale_time" json:"stale_time" validate:"min=0"`
	PreviewDir string        `yaml:"preview_dir" json:"preview_dir"`
}

type SessionConfig struct {
	Store  string `yaml:"store" json:"store" validate:"oneof=memory file"`
	Path   string `yaml:"path" json:"path" validate:"required_if=Store file"`
	Secret string `yaml:"secret,omitempty" json:"-"`
}

type MetricsConfig struct {
	Enabled   bool              `yaml:"enabled" json:"enabled"`
	Type      string            `yaml:"type" json:"type" validate:"required_if=Enabled true"`
	Namespace string            `yaml:"namespace" json:"namespace"`
	Address   string            `yaml:"address" json:"address"`
	Path      string            `yaml:"path" json:"path"`
	Labels    map[string]string `yaml:"labels" json:"labels"`
}
