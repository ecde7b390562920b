package sqlp

import (
	"context"
	"time"
)

// Audit is a set of audit fields to embed into entities.
type Audit struct {
	CreatedAt time.Time `sqlp:"created_at"`
	UpdatedAt time.Time `sqlp:"updated_at"`
	CreatedBy string    `sqlp:"created_by"`
	UpdatedBy string    `sqlp:"updated_by"`
}

// AuditFields lets an embedded Audit satisfy Auditable.
func (a *Audit) AuditFields() *Audit {
	return a
}

// Auditable entities expose their audit fields for stamping.
type Auditable interface {
	AuditFields() *Audit
}

type actorKeyType struct{}

// WithActor returns a context that records who is making changes.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKeyType{}, actor)
}

// ActorFromContext returns the actor set by WithActor, or "" if none.
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorKeyType{}).(string)
	return actor
}

// StampCreate fills in all audit fields for a new entity.
func StampCreate(ctx context.Context, e Auditable, now time.Time) {
	a := e.AuditFields()
	actor := ActorFromContext(ctx)
	a.CreatedAt, a.UpdatedAt = now, now
	a.CreatedBy, a.UpdatedBy = actor, actor
}

// StampUpdate fills in update audit fields, leaving creation ones alone.
func StampUpdate(ctx context.Context, e Auditable, now time.Time) {
	a := e.AuditFields()
	a.UpdatedAt = now
	a.UpdatedBy = ActorFromContext(ctx)
}
