// internal/platform/registry/module_registry.go
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rfs85/DicordEnumeration/internal/core/ports"
	"github.com/rfs85/DicordEnumeration/internal/platform/cache"
	"github.com/rfs85/DicordEnumeration/internal/platform/httpclient"
	"github.com/rfs85/DicordEnumeration/internal/platform/logx"
)

// ModuleRegistry gestiona el registro y construcción de módulos.
// Implementa el patrón Registry + Factory para desacoplar la creación
// de módulos del código de aplicación.
type ModuleRegistry struct {
	mu        sync.RWMutex
	factories map[string]ModuleFactory
	metadata  map[string]ports.ModuleMetadata
	logger    logx.Logger
}

// Deps son las dependencias compartidas que recibe cada factory.
type Deps struct {
	HTTP   *httpclient.Client
	Cache  *cache.MemoryCache
	Logger logx.Logger
}

// ModuleFactory es una función que crea una instancia de Module.
type ModuleFactory func(cfg ports.ModuleConfig, deps Deps) (ports.Module, error)

// globalRegistry es la instancia global del registry.
var globalRegistry *ModuleRegistry
var once sync.Once

// Global retorna la instancia global del registry.
func Global() *ModuleRegistry {
	once.Do(func() {
		globalRegistry = NewModuleRegistry(logx.New())
	})
	return globalRegistry
}

// NewModuleRegistry crea un nuevo registry de módulos.
func NewModuleRegistry(logger logx.Logger) *ModuleRegistry {
	return &ModuleRegistry{
		factories: make(map[string]ModuleFactory),
		metadata:  make(map[string]ports.ModuleMetadata),
		logger:    logger.With("component", "module-registry"),
	}
}

// Register registra una module factory con su metadata.
// Típicamente llamado desde init() de cada module package.
func (r *ModuleRegistry) Register(name string, factory ModuleFactory, meta ports.ModuleMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		return fmt.Errorf("module name cannot be empty")
	}

	if factory == nil {
		return fmt.Errorf("factory cannot be nil for module %s", name)
	}

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("module %s is already registered", name)
	}

	r.factories[name] = factory
	r.metadata[name] = meta
	r.logger.Debug("module registered", "name", name, "source", meta.Source)

	return nil
}

// Build construye los módulos habilitados según la configuración.
// Un módulo no registrado o cuya factory falla se acumula como error
// sin impedir la construcción del resto.
func (r *ModuleRegistry) Build(configs map[string]ports.ModuleConfig, deps Deps) ([]ports.Module, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if configs == nil {
		return nil, fmt.Errorf("configs cannot be nil")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	names := make([]string, 0, len(configs))
	for name, cfg := range configs {
		if cfg.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	modules := make([]ports.Module, 0, len(names))
	buildErrs := make([]error, 0)

	for _, name := range names {
		cfg := configs[name]

		factory, exists := r.factories[name]
		if !exists {
			r.logger.Warn("module not registered, skipping", "module", name)
			buildErrs = append(buildErrs, fmt.Errorf("module %s not registered in registry", name))
			continue
		}

		meta := r.metadata[name]
		if meta.RequiresAuth && cfg.Token == "" {
			r.logger.Warn("module requires a token, skipping", "module", name)
			continue
		}

		module, err := factory(cfg, deps)
		if err != nil {
			buildErrs = append(buildErrs, fmt.Errorf("failed to build module %s: %w", name, err))
			continue
		}

		modules = append(modules, module)
		r.logger.Debug("module built", "name", name, "source", meta.Source)
	}

	if len(buildErrs) > 0 {
		for _, err := range buildErrs {
			r.logger.Warn("module build error", "error", err.Error())
		}
	}

	if len(modules) == 0 && len(names) > 0 {
		return nil, fmt.Errorf("no modules could be built")
	}

	deps.Logger.Info("modules built", "count", len(modules), "requested", len(names))
	return modules, nil
}

// List retorna los nombres de todos los módulos registrados.
func (r *ModuleRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetMetadata retorna el metadata de un módulo.
func (r *ModuleRegistry) GetMetadata(name string) (ports.ModuleMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	meta, exists := r.metadata[name]
	return meta, exists
}

// IsRegistered verifica si un módulo está registrado.
func (r *ModuleRegistry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.factories[name]
	return exists
}

// Clear elimina todos los módulos registrados (útil para testing).
func (r *ModuleRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories = make(map[string]ModuleFactory)
	r.metadata = make(map[string]ports.ModuleMetadata)
}
