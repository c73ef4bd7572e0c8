package config

import (
	"context"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/saiset-co/sai-feed/types"
	"github.com/saiset-co/sai-feed/utils"
)

const (
	EnvGatewayBaseURL = "SAI_FEED_GATEWAY_BASE_URL"
	EnvLogLevel       = "SAI_FEED_LOG_LEVEL"
	EnvSessionSecret  = "SAI_FEED_SESSION_SECRET"
)

type Loader struct {
	readTimeout time.Duration
	lookupEnv   func(string) (string, bool)
}

func NewLoader() *Loader {
	return &Loader{
		readTimeout: 30 * time.Second,
		lookupEnv:   os.LookupEnv,
	}
}

func (l *Loader) LoadFromFile(ctx context.Context, configPath string) (*types.ServiceConfig, error) {
	if configPath == "" {
		return nil, types.ErrConfigNotFound
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, types.WrapError(types.ErrConfigInvalidPath, "file not found: "+configPath)
	}

	ctx, cancel := context.WithTimeout(ctx, l.readTimeout)
	defer cancel()

	data, err := l.ReadFileWithTimeout(ctx, configPath)
	if err != nil {
		return nil, types.WrapError(err, "failed to read config file")
	}

	return l.LoadFromBytes(data)
}

func (l *Loader) LoadFromBytes(data []byte) (*types.ServiceConfig, error) {
	config := l.Defaults()

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, types.Errorf(types.ErrConfigParseFailed, "%v", err)
	}

	l.applyEnv(config)

	if err := utils.Validator().Struct(config); err != nil {
		return nil, types.Errorf(types.ErrConfigValidateFailed, "%v", err)
	}

	return config, nil
}

func (l *Loader) ReadFileWithTimeout(ctx context.Context, filepath string) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}

	resultChan := make(chan result, 1)

	go func() {
		data, err := os.ReadFile(filepath)
		resultChan <- result{data: data, err: err}
	}()

	select {
	case res := <-resultChan:
		return res.data, res.err
	case <-ctx.Done():
		return nil, types.WrapError(ctx.Err(), "file read timeout")
	}
}

func (l *Loader) applyEnv(config *types.ServiceConfig) {
	if v, ok := l.lookupEnv(EnvGatewayBaseURL); ok && v != "" {
		config.Gateway.BaseURL = v
	}
	if v, ok := l.lookupEnv(EnvLogLevel); ok && v != "" {
		config.Logger.Level = v
	}
	if v, ok := l.lookupEnv(EnvSessionSecret); ok && v != "" && config.Session != nil {
		config.Session.Secret = v
	}
}

func (l *Loader) Defaults() *types.ServiceConfig {
	return &types.ServiceConfig{
		Logger: &types.LoggerConfig{
			Level: "info",
		},
		Gateway: &types.GatewayConfig{
			Timeout:      30 * time.Second,
			Retries:      2,
			RetryBackoff: time.Second,
			UserAgent:    "sai-feed",
			CircuitBreaker: &types.CircuitBreakerConfig{
				Enabled:          true,
				FailureThreshold: 5,
				RecoveryTimeout:  60 * time.Second,
				HalfOpenRequests: 3,
			},
		},
		Cache: &types.CacheConfig{
			StaleTime:  0,
			GCTime:     5 * time.Minute,
			GCSchedule: "@every 1m",
			Persist: &types.PersistConfig{
				Enabled: false,
			},
		},
		Feed: &types.FeedConfig{
			PageSize: 5,
		},
		Profile: &types.ProfileConfig{
			StaleTime: 5 * time.Minute,
		},
		Session: &types.SessionConfig{
			Store: "memory",
		},
		Metrics: &types.MetricsConfig{
			Enabled:   false,
			Type:      "prometheus",
			Namespace: "sai_feed",
			Path:      "/metrics",
		},
	}
}
