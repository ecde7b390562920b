package idgenp

import (
	"context"
	"fmt"
)

// Strategy is anything that generates int64 ids.
type Strategy interface {
	NextID(ctx context.Context) (int64, error)
}

// Optional Strategy capabilities.
type (
	Peeker interface {
		PeekNextID(ctx context.Context) (int64, error)
	}
	Reseeder interface {
		Reseed(ctx context.Context, nextID int64) error
	}
	Flusher interface {
		SaveChangesToID(ctx context.Context) error
	}
)

var (
	_ Strategy = (*Allocator)(nil)
	_ Peeker   = (*Allocator)(nil)
	_ Reseeder = (*Allocator)(nil)
	_ Flusher  = (*Allocator)(nil)
	_ Strategy = (*Increment)(nil)
)

// Integer is the set of id types an Adapter can hand out.
type Integer interface {
	~int32 | ~int64
}

// Adapter hands out ids of type T from any Strategy, for entities with narrower keys.
// Capabilities the strategy lacks fail with ErrUnsupported, except SaveChanges which has nothing
// to do.
type Adapter[T Integer] struct {
	strategy Strategy
}

func NewAdapter[T Integer](s Strategy) *Adapter[T] {
	return &Adapter[T]{strategy: s}
}

// Strategy returns the wrapped strategy.
func (a *Adapter[T]) Strategy() Strategy {
	return a.strategy
}

func (a *Adapter[T]) Generate(ctx context.Context) (T, error) {
	id, err := a.strategy.NextID(ctx)
	if err != nil {
		return 0, err
	}
	return narrow[T](id)
}

func (a *Adapter[T]) PeekNext(ctx context.Context) (T, error) {
	p, ok := a.strategy.(Peeker)
	if !ok {
		return 0, fmt.Errorf("%w: %T can't peek", ErrUnsupported, a.strategy)
	}
	id, err := p.PeekNextID(ctx)
	if err != nil {
		return 0, err
	}
	return narrow[T](id)
}

func (a *Adapter[T]) Reseed(ctx context.Context, nextID T) error {
	r, ok := a.strategy.(Reseeder)
	if !ok {
		return fmt.Errorf("%w: %T can't reseed", ErrUnsupported, a.strategy)
	}
	return r.Reseed(ctx, int64(nextID))
}

func (a *Adapter[T]) SaveChanges(ctx context.Context) error {
	if f, ok := a.strategy.(Flusher); ok {
		return f.SaveChangesToID(ctx)
	}
	return nil
}

func narrow[T Integer](id int64) (T, error) {
	t := T(id)
	if int64(t) != id {
		return 0, fmt.Errorf("%w: %d doesn't fit %T", ErrOverflow, id, t)
	}
	return t, nil
}
