package llm

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// provider construction settings, filled from config.Config
type Options struct {
	APIKey string
	Model  string
	Logger *zap.Logger
}

// defines a function that creates a new provider instance
type ProviderFactory func(opts Options) (Provider, error)

// global registry of available providers
var providers = make(map[string]ProviderFactory)

// registers a provider factory with the given name
func RegisterProvider(name string, factory ProviderFactory) {
	providers[name] = factory
}

// creates a new provider instance based on the given name
func NewProvider(name string, opts Options) (Provider, error) {
	factory, exists := providers[name]
	if !exists {
		return nil, fmt.Errorf("unsupported provider: %s", name)
	}
	return factory(opts)
}

// RegisteredProviders lists provider names, sorted
func RegisteredProviders() []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
