package provider

import (
	"fmt"
	"sync"
)

// Factory builds an adapter from its config. Adapter packages register their
// factory in init() under a protocol type key ("openaicompat", "anthropic",
// "gemini", "clicmd").
type Factory func(cfg Config) (Provider, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

func Register(protocolType string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[protocolType]; exists {
		panic(fmt.Sprintf("provider factory %s already registered", protocolType))
	}
	factories[protocolType] = f
}

func Get(protocolType string) (Factory, error) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := factories[protocolType]
	if !ok {
		return nil, fmt.Errorf("provider factory not found for type: %s", protocolType)
	}
	return f, nil
}
