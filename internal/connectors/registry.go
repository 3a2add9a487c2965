package connectors

import (
	"fmt"
	"sort"
)

// Registry holds the set of connectors wired in at process start. It is
// populated once during bootstrap and read-only afterwards; routing must not
// depend on registration order.
type Registry struct {
	byName map[string]Connector
}

// NewRegistry builds a registry from the given connectors, rejecting
// duplicate or empty names.
func NewRegistry(conns ...Connector) (*Registry, error) {
	r := &Registry{byName: make(map[string]Connector, len(conns))}
	for _, conn := range conns {
		if conn == nil {
			return nil, fmt.Errorf("nil connector")
		}
		name := conn.Name()
		if name == "" {
			return nil, fmt.Errorf("connector with empty name")
		}
		if _, exists := r.byName[name]; exists {
			return nil, fmt.Errorf("duplicate connector %q", name)
		}
		r.byName[name] = conn
	}
	return r, nil
}

// All returns the registered connectors sorted by name.
func (r *Registry) All() []Connector {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)

	conns := make([]Connector, 0, len(names))
	for _, name := range names {
		conns = append(conns, r.byName[name])
	}
	return conns
}

// Get returns the connector with the given name, if registered.
func (r *Registry) Get(name string) (Connector, bool) {
	conn, ok := r.byName[name]
	return conn, ok
}

// Len returns the number of registered connectors.
func (r *Registry) Len() int {
	return len(r.byName)
}
