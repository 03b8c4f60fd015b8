package device

import (
	"fmt"
	"sort"
	"sync"

	"github.com/banshee-data/logic.report/internal/logic"
)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]func() Driver)
)

// RegisterDriver makes a driver constructor available to NewDriver. It
// is intended to be called from init functions; registering the same
// name twice panics.
func RegisterDriver(name string, factory func() Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if factory == nil {
		panic("device: RegisterDriver factory is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("device: RegisterDriver called twice for driver " + name)
	}
	drivers[name] = factory
}

// NewDriver returns a fresh instance of the named driver.
func NewDriver(name string) (Driver, error) {
	driversMu.RLock()
	factory, ok := drivers[name]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown driver %q: %w", name, logic.ErrArgument)
	}
	return factory(), nil
}

// DriverNames lists the registered drivers in sorted order.
func DriverNames() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
