// Package rxtype implements the type-handler chain of §4.7: a registry
// of named resource types (with aliases), each carrying a resolve.Resolver.
// Registration follows the teacher's by-name factory pattern
// (registry/storage/driver/factory/factory.go's Register/Create), with
// the factory's panic-on-duplicate downgraded to a returned
// ResourceTypeError per §9's "ambiguity noted, not guessed" note: alias
// registration is first-come-first-served, and any collision — whether
// with a name or another alias — is rejected at registration time.
package rxtype

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/deepractice/resourcex/internal/rxerr"
	"github.com/deepractice/resourcex/resolve"
)

// Type is one registered resource type.
type Type struct {
	Name        string
	Aliases     []string
	Description string
	Schema      json.RawMessage // JSON Schema for args; nil if unvalidated
	Resolver    resolve.Resolver
}

// Chain is the registry of types, keyed by name and alias.
type Chain struct {
	mu    sync.RWMutex
	byKey map[string]*Type // both Name and every Alias point here
}

// NewChain builds an empty Chain.
func NewChain() *Chain {
	return &Chain{byKey: map[string]*Type{}}
}

// Register adds t to the chain. Duplicate-name or alias-collision
// registrations fail with a ResourceTypeError, per §4.7.
func (c *Chain) Register(t Type) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := append([]string{t.Name}, t.Aliases...)
	for _, k := range keys {
		if _, exists := c.byKey[k]; exists {
			return rxerr.New(rxerr.ResourceType, "duplicate-registration", fmt.Sprintf("type or alias %q already registered", k))
		}
	}
	for _, k := range keys {
		c.byKey[k] = &t
	}
	return nil
}

// Lookup resolves a type name or alias, per §4.7. Unknown types raise a
// ResourceTypeError.
func (c *Chain) Lookup(name string) (*Type, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.byKey[name]
	if !ok {
		return nil, rxerr.New(rxerr.ResourceType, "unknown-type", "unknown resource type "+name)
	}
	return t, nil
}

// RegisterBuiltins registers the five built-in types of §4.7 on c.
func RegisterBuiltins(c *Chain) error {
	for _, t := range builtins() {
		if err := c.Register(t); err != nil {
			return err
		}
	}
	return nil
}
