package dispatch

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/offload/errors"
)

// Loader builds a backend's capability table. Implementations live in
// backend packages and self-register in an init function; a loader
// backed by a dynamic library would resolve symbols here instead.
//
// Load is called on every activation. It must either return a fully
// populated table or an error; a partially populated table is rejected
// by Activate, so a loader cannot half-activate a backend.
type Loader interface {
	Load() (*Table, error)
}

// IOLoader is optionally implemented by loaders that also provide the
// surface/IO extension table.
type IOLoader interface {
	LoadIO() (*IOTable, error)
}

var registry = struct {
	sync.RWMutex
	loaders map[string]Loader
}{loaders: make(map[string]Loader)}

// Register makes a backend loader available under a name. Later
// registrations replace earlier ones, which keeps tests able to
// substitute fakes.
func Register(name string, l Loader) {
	registry.Lock()
	defer registry.Unlock()
	registry.loaders[name] = l
}

// Backends lists the registered loader names, sorted.
func Backends() []string {
	registry.RLock()
	defer registry.RUnlock()
	names := make([]string, 0, len(registry.loaders))
	for name := range registry.loaders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Activate loads the named backend and returns its capability table.
//
// Activation is all-or-nothing: if the loader fails or any required
// entry point is missing, no table is returned and the process is left
// in exactly its pre-activation state. A failed activation is retriable
// with a different name.
func Activate(name string) (*Table, error) {
	registry.RLock()
	l, ok := registry.loaders[name]
	registry.RUnlock()
	if !ok {
		return nil, errors.BackendUnavailable(name, errors.NotFound(errors.PhaseActivate, "backend loader", name))
	}

	tab, err := l.Load()
	if err != nil {
		return nil, errors.BackendUnavailable(name, err)
	}
	if err := validateTable(tab); err != nil {
		return nil, errors.BackendUnavailable(name, err)
	}

	Logger().Debug("backend activated", zap.String("backend", name))
	return tab, nil
}

// ActivateIO loads the named backend's optional IO extension table.
// Backends without one report backend_unavailable for the extension
// only; the core table stays usable.
func ActivateIO(name string) (*IOTable, error) {
	registry.RLock()
	l, ok := registry.loaders[name]
	registry.RUnlock()
	if !ok {
		return nil, errors.BackendUnavailable(name, errors.NotFound(errors.PhaseActivate, "backend loader", name))
	}

	iol, ok := l.(IOLoader)
	if !ok {
		return nil, errors.BackendUnavailable(name, errors.Unsupported(errors.PhaseActivate, "io extension table"))
	}

	tab, err := iol.LoadIO()
	if err != nil {
		return nil, errors.BackendUnavailable(name, err)
	}
	if err := validateTable(tab); err != nil {
		return nil, errors.BackendUnavailable(name, err)
	}
	return tab, nil
}
