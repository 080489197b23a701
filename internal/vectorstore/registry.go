// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkstone Contributors

package vectorstore

import (
	"sort"
	"sync"

	inkerr "github.com/inkstone-dev/inkstone/pkg/errors"
)

// DefaultBackend is the reference local persistent backend, used as the
// fallback target when auto-switch is enabled.
const DefaultBackend = "sqlite"

// Factory constructs an uninitialized backend; the manager calls
// Initialize on it afterwards.
type Factory func() Backend

// knownBackends is the static set of recognized backend identifiers.
// Names listed here without a registered factory are recognized but not
// implemented, which is a distinct condition from an unknown name.
var knownBackends = map[string]bool{
	"sqlite":   true,
	"qdrant":   true,
	"weaviate": true,
	"milvus":   true,
	"pinecone": true,
}

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{}
)

// RegisterBackend registers a factory for a named backend. Backend
// packages call this from init(). Goroutine-safe.
func RegisterBackend(name string, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = factory
}

// BackendStatus describes one registry entry.
type BackendStatus struct {
	Name        string `json:"name"`
	Implemented bool   `json:"implemented"`
}

// SupportedBackends lists every recognized backend name, sorted, with
// whether an implementation is registered in this binary.
func SupportedBackends() []BackendStatus {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	statuses := make([]BackendStatus, 0, len(knownBackends))
	for name := range knownBackends {
		_, implemented := factories[name]
		statuses = append(statuses, BackendStatus{Name: name, Implemented: implemented})
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}

// newBackend constructs the named backend. Unknown names and recognized
// names without an implementation fail with distinct codes so the
// manager's fallback policy can report what happened.
func newBackend(name string) (Backend, error) {
	if !knownBackends[name] {
		return nil, inkerr.Errorf(inkerr.CodeStoreBackendUnsupported, "unsupported vector store backend %q", name)
	}

	factoriesMu.RLock()
	factory, ok := factories[name]
	factoriesMu.RUnlock()
	if !ok {
		return nil, inkerr.Errorf(inkerr.CodeStoreBackendNotImplemented, "vector store backend %q is not implemented", name)
	}

	return factory(), nil
}
