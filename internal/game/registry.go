package game

import (
	"fmt"
	"sort"
	"sync"
)

// Registry manages game kind registration and lookup by command.
type Registry struct {
	kinds map[string]Kind
	mu    sync.RWMutex
}

// NewRegistry creates a new registry.
func NewRegistry() *Registry {
	return &Registry{
		kinds: make(map[string]Kind),
	}
}

// Register adds a kind. A kind with the same command is replaced.
func (r *Registry) Register(k Kind) error {
	if k == nil {
		return fmt.Errorf("cannot register nil game kind")
	}
	if k.Command() == "" {
		return fmt.Errorf("game command cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds[k.Command()] = k
	return nil
}

// Get retrieves a kind by its command.
func (r *Registry) Get(command string) (Kind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.kinds[command]
	return k, ok
}

// List returns all registered kinds ordered by command.
func (r *Registry) List() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]Kind, 0, len(r.kinds))
	for _, k := range r.kinds {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool {
		return kinds[i].Command() < kinds[j].Command()
	})
	return kinds
}

// Commands returns all registered commands, sorted.
func (r *Registry) Commands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	commands := make([]string, 0, len(r.kinds))
	for cmd := range r.kinds {
		commands = append(commands, cmd)
	}
	sort.Strings(commands)
	return commands
}

// Count returns the number of registered kinds.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.kinds)
}

// Unregister removes a kind by its command.
func (r *Registry) Unregister(command string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.kinds[command]; ok {
		delete(r.kinds, command)
		return true
	}
	return false
}
