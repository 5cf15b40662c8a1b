package core

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/JonMunkholm/dsvmender/internal/profile"
)

// ErrDuplicateProfile is returned when a profile name is already registered.
var ErrDuplicateProfile = errors.New("profile already registered")

var (
	registry   = make(map[string]profile.Profile)
	registryMu sync.RWMutex
)

// Register adds a profile to the registry.
func Register(p profile.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[p.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateProfile, p.Name)
	}
	registry[p.Name] = p
	return nil
}

// MustRegister is Register for profiles known to be valid. It panics on
// error.
func MustRegister(p profile.Profile) {
	if err := Register(p); err != nil {
		panic(fmt.Sprintf("register profile %s: %v", p.Name, err))
	}
}

// RegisterAll registers every profile, replacing profiles of the same name
// when replace is set.
func RegisterAll(profiles []profile.Profile, replace bool) error {
	for _, p := range profiles {
		if replace {
			Unregister(p.Name)
		}
		if err := Register(p); err != nil {
			return err
		}
	}
	return nil
}

// Unregister removes a profile if present.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, name)
}

// Get returns a profile by name.
func Get(name string) (profile.Profile, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	p, ok := registry[name]
	return p, ok
}

// All returns every registered profile sorted by name.
func All() []profile.Profile {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]profile.Profile, 0, len(registry))
	for _, p := range registry {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// Names returns the registered profile names, sorted.
func Names() []string {
	profiles := All()
	names := make([]string, len(profiles))
	for i, p := range profiles {
		names[i] = p.Name
	}
	return names
}

// ProfileCount returns the number of registered profiles.
func ProfileCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered profiles.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]profile.Profile)
}
