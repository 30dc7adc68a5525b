// Package transition validates lifecycle orders against a composition's
// current state and cascades accepted orders to its elements.
//
// Legal edges from terminal states:
//
//	UNDEPLOYED        --DEPLOY-->           DEPLOYING
//	UNDEPLOYED        --PREPARE-->          UNDEPLOYED / PREPARING
//	UNDEPLOYED        --DELETE-->           DELETING
//	DEPLOYED+LOCKED   --UNDEPLOY-->         UNDEPLOYING
//	DEPLOYED+LOCKED   --UNLOCK-->           DEPLOYED+UNLOCKING
//	DEPLOYED+UNLOCKED --LOCK-->             DEPLOYED+LOCKING
//	DEPLOYED+LOCKED   --UPDATE-->           UPDATING
//	DEPLOYED+LOCKED   --MIGRATE-->          MIGRATING
//	DEPLOYED+LOCKED   --MIGRATE_PRECHECK--> DEPLOYED / MIGRATION_PRECHECKING
//	DEPLOYED+LOCKED   --REVIEW-->           DEPLOYED / REVIEWING
//
// A transition that ended FAILED or TIMEOUT may be retried or taken over
// (for example UNDEPLOY after a failed DEPLOY, MIGRATION_REVERT after a
// failed MIGRATE). Everything else is rejected with model.ErrInvalidState.
//
// Validate never mutates; Apply only runs after Validate succeeds.
package transition
