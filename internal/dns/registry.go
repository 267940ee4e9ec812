package dns

import (
	"fmt"
	"sort"
	"sync"

	"github.com/go-logr/logr"
)

// Factory is a constructor function that store backends register to create themselves.
type Factory func(log logr.Logger, settings map[string]string) (Store, error)

var (
	mu        sync.Mutex
	factories = make(map[string]Factory)
)

// Register is called by store packages in their init() to self-register.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("dns: store %q already registered", name))
	}
	factories[name] = f
}

// Stores returns the names of all registered store backends, sorted.
func Stores() []string {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewStore looks up the named store backend in the registry and creates it.
func NewStore(name string, log logr.Logger, settings map[string]string) (Store, error) {
	mu.Lock()
	f, ok := factories[name]
	mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unsupported record store: %q (registered: %v)", name, Stores())
	}
	return f(log, settings)
}
