package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/onap/policy-clamp-acm/internal/model"
)

// Logger defines the logging interface used by the registries.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// CompositionRegistry is a write-through cache in front of a CompositionStore.
//
// The cache is populated on startup via RefreshCache and kept in sync by the
// CRUD methods. It is only correct while this process is the sole writer;
// replicas sharing a database use the repository directly.
//
// All public methods are thread-safe and return deep copies.
type CompositionRegistry struct {
	repo    CompositionStore
	cache   map[string]*model.AutomationComposition
	cacheMu sync.RWMutex
	logger  Logger
}

// NewCompositionRegistry creates a registry around repo.
func NewCompositionRegistry(repo CompositionStore) *CompositionRegistry {
	return &CompositionRegistry{
		repo:   repo,
		cache:  make(map[string]*model.AutomationComposition),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *CompositionRegistry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all compositions from the repository.
func (r *CompositionRegistry) RefreshCache(ctx context.Context) error {
	compositions, err := r.repo.List(ctx, CompositionFilter{})
	if err != nil {
		return fmt.Errorf("loading compositions: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]*model.AutomationComposition, len(compositions))
	for i := range compositions {
		r.cache[compositions[i].InstanceID] = compositions[i].DeepCopy()
	}

	r.logger.Info("composition cache refreshed", "count", len(compositions))
	return nil
}

// Get returns a copy of the cached composition.
func (r *CompositionRegistry) Get(_ context.Context, instanceID string) (*model.AutomationComposition, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[instanceID]
	r.cacheMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: composition %s", model.ErrNotFound, instanceID)
	}
	return cached.DeepCopy(), nil
}

// List returns copies of the cached compositions matching filter, sorted by
// name then version to match the repository ordering.
func (r *CompositionRegistry) List(_ context.Context, filter CompositionFilter) ([]model.AutomationComposition, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	compositions := make([]model.AutomationComposition, 0, len(r.cache))
	for _, ac := range r.cache {
		if filter.Matches(ac) {
			compositions = append(compositions, *ac.DeepCopy())
		}
	}
	sort.Slice(compositions, func(i, j int) bool {
		if compositions[i].Name != compositions[j].Name {
			return compositions[i].Name < compositions[j].Name
		}
		return compositions[i].Version < compositions[j].Version
	})
	return compositions, nil
}

// Create persists then caches a new composition.
func (r *CompositionRegistry) Create(ctx context.Context, ac *model.AutomationComposition) error {
	if err := r.repo.Create(ctx, ac); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[ac.InstanceID] = ac.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Debug("composition created", "instance_id", ac.InstanceID, "name", ac.Name)
	return nil
}

// Update persists then re-caches a composition.
func (r *CompositionRegistry) Update(ctx context.Context, ac *model.AutomationComposition) error {
	if err := r.repo.Update(ctx, ac); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[ac.InstanceID] = ac.DeepCopy()
	r.cacheMu.Unlock()
	return nil
}

// UpdateAll persists the batch atomically, then re-caches it.
func (r *CompositionRegistry) UpdateAll(ctx context.Context, acs []*model.AutomationComposition) error {
	if err := r.repo.UpdateAll(ctx, acs); err != nil {
		return err
	}

	r.cacheMu.Lock()
	for _, ac := range acs {
		r.cache[ac.InstanceID] = ac.DeepCopy()
	}
	r.cacheMu.Unlock()
	return nil
}

// Delete removes a composition from the repository and cache.
func (r *CompositionRegistry) Delete(ctx context.Context, instanceID string) error {
	if err := r.repo.Delete(ctx, instanceID); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, instanceID)
	r.cacheMu.Unlock()

	r.logger.Debug("composition deleted", "instance_id", instanceID)
	return nil
}

// DefinitionRegistry is a write-through cache in front of a DefinitionStore.
// Definitions are read on every validation and rarely written.
type DefinitionRegistry struct {
	repo    DefinitionStore
	cache   map[string]*model.CompositionDefinition
	cacheMu sync.RWMutex
	logger  Logger
}

// NewDefinitionRegistry creates a registry around repo.
func NewDefinitionRegistry(repo DefinitionStore) *DefinitionRegistry {
	return &DefinitionRegistry{
		repo:   repo,
		cache:  make(map[string]*model.CompositionDefinition),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *DefinitionRegistry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all definitions from the repository.
func (r *DefinitionRegistry) RefreshCache(ctx context.Context) error {
	defs, err := r.repo.List(ctx, DefinitionFilter{})
	if err != nil {
		return fmt.Errorf("loading composition definitions: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]*model.CompositionDefinition, len(defs))
	for i := range defs {
		r.cache[defs[i].CompositionID] = defs[i].DeepCopy()
	}

	r.logger.Info("composition definition cache refreshed", "count", len(defs))
	return nil
}

// Get returns a copy of the cached definition.
func (r *DefinitionRegistry) Get(_ context.Context, compositionID string) (*model.CompositionDefinition, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[compositionID]
	r.cacheMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: composition definition %s", model.ErrNotFound, compositionID)
	}
	return cached.DeepCopy(), nil
}

// List returns copies of cached definitions matching filter.
func (r *DefinitionRegistry) List(_ context.Context, filter DefinitionFilter) ([]model.CompositionDefinition, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	defs := make([]model.CompositionDefinition, 0, len(r.cache))
	for _, def := range r.cache {
		if filter.Matches(def) {
			defs = append(defs, *def.DeepCopy())
		}
	}
	sort.Slice(defs, func(i, j int) bool {
		if defs[i].Name != defs[j].Name {
			return defs[i].Name < defs[j].Name
		}
		return defs[i].Version < defs[j].Version
	})
	return defs, nil
}

// Create persists then caches a definition.
func (r *DefinitionRegistry) Create(ctx context.Context, def *model.CompositionDefinition) error {
	if err := r.repo.Create(ctx, def); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[def.CompositionID] = def.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Debug("composition definition created", "composition_id", def.CompositionID, "name", def.Name)
	return nil
}

// Update persists then re-caches a definition.
func (r *DefinitionRegistry) Update(ctx context.Context, def *model.CompositionDefinition) error {
	if err := r.repo.Update(ctx, def); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[def.CompositionID] = def.DeepCopy()
	r.cacheMu.Unlock()
	return nil
}

// Delete removes a definition from the repository and cache.
func (r *DefinitionRegistry) Delete(ctx context.Context, compositionID string) error {
	if err := r.repo.Delete(ctx, compositionID); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, compositionID)
	r.cacheMu.Unlock()

	r.logger.Debug("composition definition deleted", "composition_id", compositionID)
	return nil
}
