// Package ratelimit serializes reconciliation runs across instances.
// Vendor rate limits and idempotency windows are scoped per credential,
// so two overlapping runs would defeat the pacing between submissions.
package ratelimit

import (
	"context"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	runGuardKey = "lotshot:reconcile:run"
	// Upper bound for a full pass over every tenant. The key expires on
	// its own if a run dies without releasing.
	runGuardTTL = 30 * time.Minute
)

// releaseIfOwner deletes the guard key only when it still holds the
// caller's token, so a guard that expired and was reacquired by another
// run is never released from under it.
var releaseIfOwner = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// RunGuard admits at most one reconciliation run at a time.
type RunGuard interface {
	// Acquire returns ok=false when another run holds the guard. The
	// release func is always non-nil and safe to call.
	Acquire(ctx context.Context) (release func(), ok bool, err error)
}

type redisRunGuard struct {
	client *redis.Client
	log    *zap.Logger
}

// noopRunGuard admits every run. Used when no Redis is configured;
// single-process deployments serialize through the scheduler anyway.
type noopRunGuard struct{}

func (noopRunGuard) Acquire(context.Context) (func(), bool, error) {
	return func() {}, true, nil
}

func NewRunGuard(client *redis.Client, log *zap.Logger) RunGuard {
	if client == nil {
		return noopRunGuard{}
	}
	return &redisRunGuard{
		client: client,
		log:    log.Named("ratelimit"),
	}
}

func (g *redisRunGuard) Acquire(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, runGuardKey, token, runGuardTTL).Result()
	if err != nil || !ok {
		return func() {}, false, err
	}

	release := func() {
		// The run may outlive the request that triggered it being
		// canceled; the guard still has to go.
		rctx := context.WithoutCancel(ctx)
		if err := releaseIfOwner.Run(rctx, g.client, []string{runGuardKey}, token).Err(); err != nil {
			g.log.Warn("release run guard", zap.Error(err))
		}
	}
	return release, true, nil
}
