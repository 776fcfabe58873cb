package commands

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Registry maps command names and aliases to commands.
type Registry struct {
	mu      sync.RWMutex
	lookup  map[string]Command
	primary []Command // one entry per command, sorted by Name
}

func NewRegistry() *Registry {
	return &Registry{lookup: make(map[string]Command)}
}

// Register adds c under its name and aliases. No key is added if any of them
// is taken.
func (r *Registry) Register(c Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := append([]string{c.Name()}, c.Aliases()...)
	for _, k := range keys {
		if _, taken := r.lookup[k]; taken {
			return fmt.Errorf("command already registered: %s", k)
		}
	}
	for _, k := range keys {
		r.lookup[k] = c
	}

	at, _ := slices.BinarySearchFunc(r.primary, c.Name(), func(cmd Command, name string) int {
		return strings.Compare(cmd.Name(), name)
	})
	r.primary = slices.Insert(r.primary, at, c)
	return nil
}

// Find looks up a command by name or alias.
func (r *Registry) Find(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.lookup[name]
	return cmd, ok
}

// All returns each command once, sorted by name.
func (r *Registry) All() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.primary)
}

// DefaultRegistry holds the commands that register themselves in init.
var DefaultRegistry = NewRegistry()

// Register adds c to DefaultRegistry and panics on a duplicate name.
func Register(c Command) {
	if err := DefaultRegistry.Register(c); err != nil {
		panic(err)
	}
}
