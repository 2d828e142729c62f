// Package runlock guards click-map pipeline runs so that only one build
// executes at a time, across every instance sharing the same backend.
package runlock

import (
	"context"
	"database/sql"
	"hash/fnv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// runKey identifies the pipeline run lock across all backends.
const runKey = "clickmap:run"

// Lock serializes pipeline runs. Implementations must be safe for use
// from a single goroutine; concurrent use across goroutines requires
// separate lock instances.
type Lock interface {
	// Acquire tries to acquire the lock. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

// New creates a run lock using the best available backend. Redis is
// preferred for cross-host locking; PostgreSQL advisory locks are the
// fallback, and a process-local lock serves single-instance deployments
// with neither configured.
func New(redisClient *redis.Client, db *sql.DB, ttl time.Duration) Lock {
	if redisClient != nil {
		return NewRedisLock(redisClient, ttl)
	}
	if db != nil {
		return NewPGAdvisoryLock(db)
	}
	return NewLocalLock()
}

// LocalLock is an in-process run guard for deployments without shared
// infrastructure.
type LocalLock struct {
	mu   sync.Mutex
	held bool
}

// NewLocalLock creates a process-local run lock.
func NewLocalLock() *LocalLock {
	return &LocalLock{}
}

// Acquire takes the lock unless a run already holds it.
func (l *LocalLock) Acquire(_ context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

// Release frees the lock.
func (l *LocalLock) Release(_ context.Context) error {
	l.mu.Lock()
	l.held = false
	l.mu.Unlock()
	return nil
}

// PGAdvisoryLock guards runs with pg_try_advisory_lock, which is
// session-scoped. The lock auto-releases if the DB connection drops,
// so a crashed instance cannot wedge future runs.
type PGAdvisoryLock struct {
	db     *sql.DB
	lockID int64
}

// NewPGAdvisoryLock creates a PG advisory run lock. The lock ID is
// derived deterministically from the run key so every instance
// contends on the same lock.
func NewPGAdvisoryLock(db *sql.DB) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(runKey))
	return &PGAdvisoryLock{
		db:     db,
		lockID: int64(h.Sum64()),
	}
}

// Acquire tries to take the advisory lock. Non-blocking.
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	var acquired bool
	err := l.db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired)
	return acquired, err
}

// Release releases the advisory lock.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	return err
}
