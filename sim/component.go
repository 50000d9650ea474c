package sim

import (
	"log"
	"sort"
	"strings"
)

// A Named object is an object that has a name.
type Named interface {
	Name() string
}

// A Component is a ticking, hookable unit that talks through ports.
type Component interface {
	Named
	Hookable
	Ticker

	GetPortByName(name string) Port
	Ports() []Port
}

// ComponentBase holds the name and the ports of a component.
type ComponentBase struct {
	HookableBase

	name  string
	ports map[string]Port
}

// NewComponentBase creates a ComponentBase without ports.
func NewComponentBase(name string) *ComponentBase {
	return &ComponentBase{
		name:  name,
		ports: make(map[string]Port),
	}
}

func (c *ComponentBase) Name() string {
	return c.name
}

// AddPort registers a port under a short name, for example "Top".
func (c *ComponentBase) AddPort(name string, port Port) {
	if _, found := c.ports[name]; found {
		log.Panicf("port %s already exists on %s", name, c.name)
	}

	c.ports[name] = port
}

// GetPortByName returns the port registered under a short name. Asking for
// a port that does not exist is a wiring bug and panics.
func (c *ComponentBase) GetPortByName(name string) Port {
	port, found := c.ports[name]
	if !found {
		log.Panicf("%s has no port %s, available ports: %s",
			c.name, name, strings.Join(c.portNames(), ", "))
	}

	return port
}

func (c *ComponentBase) portNames() []string {
	names := make([]string, 0, len(c.ports))
	for n := range c.ports {
		names = append(names, n)
	}

	sort.Strings(names)

	return names
}

// Ports returns the ports ordered by short name.
func (c *ComponentBase) Ports() []Port {
	names := c.portNames()

	ports := make([]Port, len(names))
	for i, n := range names {
		ports[i] = c.ports[n]
	}

	return ports
}
