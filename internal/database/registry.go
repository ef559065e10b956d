package database

import (
	"sort"
	"sync"

	"github.com/koustreak/schemacache/internal/errs"
)

var (
	registryMu sync.RWMutex
	dialects   = make(map[Driver]Dialect)
)

// Register makes a dialect available under its Driver kind.
// Registering the same kind twice replaces the earlier dialect.
func Register(d Dialect) {
	registryMu.Lock()
	defer registryMu.Unlock()
	dialects[d.Driver()] = d
}

// Lookup returns the dialect registered for driver.
func Lookup(driver Driver) (Dialect, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	d, ok := dialects[driver]
	if !ok {
		return nil, errs.Newf(errs.ErrKindUnsupported, "no dialect registered for driver %q", driver)
	}
	return d, nil
}

// Drivers returns the registered driver kinds in sorted order.
func Drivers() []Driver {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]Driver, 0, len(dialects))
	for k := range dialects {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
