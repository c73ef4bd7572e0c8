package persist

import (
	"context"

	"github.com/saiset-co/sai-feed/types"
)

var customPersisterCreators = make(map[string]types.PersisterCreator)

func RegisterPersister(name string, creator types.PersisterCreator) {
	customPersisterCreators[name] = creator
}

func NewPersister(ctx context.Context, logger types.Logger, config *types.PersistConfig) (types.Persister, error) {
	if config == nil || !config.Enabled {
		return nil, types.ErrPersistDisabled
	}

	switch config.Type {
	case "redis":
		return NewRedisPersister(ctx, logger, config)
	case "clover":
		return NewCloverPersister(logger, config)
	default:
		if creator, exists := customPersisterCreators[config.Type]; exists {
			return creator(config.Config)
		}
		return nil, types.Errorf(types.ErrPersistTypeUnknown, "type: %s", config.Type)
	}
}
