package config

import (
	"context"
	"sync"

	"github.com/saiset-co/sai-feed/types"
)

type Manager struct {
	ctx        context.Context
	configPath string
	loader     *Loader
	config     *types.ServiceConfig
	parser     *Parser
	mu         sync.RWMutex
}

func NewManager(ctx context.Context, configPath string) (*Manager, error) {
	cm := &Manager{
		ctx:        ctx,
		configPath: configPath,
		loader:     NewLoader(),
	}

	if err := cm.Load(); err != nil {
		return nil, types.WrapError(err, "failed to load initial configuration")
	}

	return cm, nil
}

// NewStaticManager serves an already built configuration; Load is a no-op.
func NewStaticManager(config *types.ServiceConfig) *Manager {
	return &Manager{
		ctx:    context.Background(),
		config: config,
		parser: NewParser(config),
	}
}

func (cm *Manager) Load() error {
	if cm.configPath == "" {
		if cm.config != nil {
			return nil
		}
		return types.ErrConfigInvalidPath
	}

	config, err := cm.loader.LoadFromFile(cm.ctx, cm.configPath)
	if err != nil {
		return types.WrapError(err, "failed to load configuration from file")
	}

	parser := NewParser(config)

	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.config = config
	cm.parser = parser

	return nil
}

func (cm *Manager) GetConfig() *types.ServiceConfig {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

func (cm *Manager) GetAs(path string, target interface{}) error {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	if cm.parser == nil {
		return types.ErrConfigIsNil
	}
	return cm.parser.GetAs(path, target)
}
