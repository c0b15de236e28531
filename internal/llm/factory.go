package llm

import (
	"fmt"
	"sync"

	"github.com/nulzo/tier-router/internal/config"
)

type Factory func(cfg config.ProviderConfig) (Provider, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a provider type available to New. Adapters call it from init.
func Register(providerType string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[providerType]; exists {
		panic(fmt.Sprintf("provider factory %s already registered", providerType))
	}
	factories[providerType] = f
}

func Get(providerType string) (Factory, error) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := factories[providerType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProviderType, providerType)
	}
	return f, nil
}

// New builds a provider of cfg.Type.
func New(cfg config.ProviderConfig) (Provider, error) {
	f, err := Get(cfg.Type)
	if err != nil {
		return nil, err
	}
	return f(cfg)
}

// Types lists the registered provider types.
func Types() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for t := range factories {
		out = append(out, t)
	}
	return out
}
