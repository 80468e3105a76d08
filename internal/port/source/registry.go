package source

import (
	"fmt"
	"sync"
	"time"
)

// Config carries everything a factory needs to build a Source instance.
type Config struct {
	// Credentials holds credential material (cookie, OAuth tokens, ...)
	// keyed by well-known names each adapter documents.
	Credentials map[string]string
	// PageSize is the number of items requested per listing call.
	// Zero means the adapter's default.
	PageSize int
	// BaseURL overrides the upstream endpoint. Empty means production.
	BaseURL string
	// Since bounds the listing to entities modified after this instant, for
	// sources that support server-side filtering. Zero means list everything.
	Since time.Time
}

// Factory is a constructor function that creates a new Source instance.
type Factory func(cfg Config) (Source, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a source factory available by name.
// It is typically called from an init() function in the adapter package.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("source: duplicate registration for %q", name))
	}
	factories[name] = factory
}

// New creates a new Source by name using the registered factory.
func New(name string, cfg Config) (Source, error) {
	mu.RLock()
	factory, ok := factories[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("source: unknown source %q", name)
	}
	return factory(cfg)
}

// Available returns the names of all registered sources.
func Available() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	return names
}
