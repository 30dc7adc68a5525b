// Package store persists composition definitions, automation compositions,
// participants and migration rollback snapshots in SQLite.
//
// Repositories implement small interfaces (CompositionStore, DefinitionStore,
// ParticipantStore, RollbackStore) so coordinator packages can be tested
// against in-memory databases. CompositionRegistry and DefinitionRegistry
// add a write-through in-memory cache for single-replica deployments.
//
// Uniqueness is enforced by the schema: a composition's instance id and its
// name/version pair, and each (instance id, element id) pair. Violations are
// reported as model.ErrAlreadyDefined.
//
// # Usage
//
//	repo := store.NewSQLiteCompositionRepository(db)
//	compositions := store.NewCompositionRegistry(repo)
//	compositions.SetLogger(log)
//
//	if err := compositions.RefreshCache(ctx); err != nil {
//	    return err
//	}
package store
