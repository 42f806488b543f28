package persistence

import (
	"go.uber.org/zap"

	"github.com/spec-kit/aviation-mailbot/internal/connector"
	"github.com/spec-kit/aviation-mailbot/internal/lock"
	"github.com/spec-kit/aviation-mailbot/internal/repository"
	"github.com/spec-kit/aviation-mailbot/internal/repository/memory"
)

// Store returns the Postgres-backed store, or an in-memory one when no
// pool was configured.
func (p *Postgres) Store() repository.Store {
	if !p.Enabled() {
		return memory.NewStore()
	}
	return repository.NewPostgresStore(p.Pool)
}

// Locker returns a Redis lease locker, or a process-local one without Redis.
func (r *Redis) Locker(prefix string, logger *zap.Logger) lock.Locker {
	if !r.Enabled() {
		return lock.NewLocalLocker()
	}
	return lock.NewRedisLocker(r.Client, prefix, logger)
}

// Inbox returns the Redis-backed inbox, or an in-memory one without Redis.
func (r *Redis) Inbox(prefix string) connector.Inbox {
	if !r.Enabled() {
		return connector.NewMemoryInbox()
	}
	return connector.NewRedisInbox(r.Client, prefix)
}
