// Package coordination provides the per-composition lock held around every
// read-validate-write section of the instantiation provider and the status
// aggregator.
//
// A LocalLocker is always used. When Redis is enabled, a RedisLocker lease
// is chained after it so several runtime replicas can share one database:
//
//	locker := coordination.Chain{coordination.NewLocalLocker(), coordination.NewRedisLocker(leases, log)}
//	unlock, err := locker.Lock(ctx, instanceID)
//	if err != nil {
//	    return err
//	}
//	defer unlock()
//
// Locks are never held across participant dispatch.
package coordination
