// internal/chains/registry.go
package chains

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"remittance-service/internal/domain"
)

// Registry holds one ledger client per settlement ledger
type Registry struct {
	ledgers map[string]domain.Ledger
	mu      sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		ledgers: make(map[string]domain.Ledger),
	}
}

// Register adds a ledger to the registry
func (r *Registry) Register(ledger domain.Ledger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ledgers[strings.ToUpper(ledger.Name())] = ledger
}

// Get retrieves a ledger by name
func (r *Registry) Get(name string) (domain.Ledger, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ledger, ok := r.ledgers[strings.ToUpper(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrLedgerUnsupported, name)
	}
	return ledger, nil
}

// List returns registered ledger names, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.ledgers))
	for name := range r.ledgers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
