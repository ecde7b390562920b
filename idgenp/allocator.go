package idgenp

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/greghart/powerputty-idgen/sqlp"
	"github.com/rs/zerolog"
)

// Conn is what an Allocator needs from the database. sqlp.DB satisfies it, and runs statements
// in the context's transaction if there is one.
type Conn interface {
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRow(ctx context.Context, query string, args ...any) *sql.Row
}

// Allocator generates ids for one sequence, minimizing gaps while serving most ids from memory.
// It's safe for concurrent use, and any number of Allocators may share a sequence.
type Allocator struct {
	conn Conn
	cfg  Config
	id   string
	log  zerolog.Logger

	mu sync.Mutex
	// currentID is the last id handed out.
	currentID int64
	// inMemoryIncrements counts ids served from the current block without the database.
	inMemoryIncrements int64
	// generationStarted is whether currentID means anything yet.
	generationStarted bool
	// nextIDStoredInDatabase is the watermark this instance last wrote.
	nextIDStoredInDatabase int64
}

func NewAllocator(conn Conn, cfg Config) (*Allocator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	a := &Allocator{
		conn: conn,
		cfg:  cfg,
		id:   uuid.NewString(),
		// Start exhausted, so the first id claims a block.
		inMemoryIncrements: cfg.BlockSize,
	}
	return a.WithLogger(zerolog.Nop()), nil
}

// WithLogger sets the logger, tagged with this instance and its sequence.
func (a *Allocator) WithLogger(l zerolog.Logger) *Allocator {
	a.log = l.With().
		Str("allocator", a.id).
		Str("table", a.cfg.Table).
		Str("key", a.cfg.Key).
		Logger()
	return a
}

// Config returns the config in use, with defaults applied.
func (a *Allocator) Config() Config {
	return a.cfg
}

// NextID returns the next id, claiming a new block from the database when the current one is
// used up. Ids from one Allocator are strictly increasing.
func (a *Allocator) NextID(ctx context.Context) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.inMemoryIncrements >= a.cfg.BlockSize {
		id, next, err := a.claim(ctx)
		if err != nil {
			return 0, err
		}
		a.nextIDStoredInDatabase = next
		if a.generationStarted {
			// The claim alone guarantees id is ours, this only guards against the row having
			// been moved back under us.
			a.currentID = max(id, a.currentID+1)
		} else {
			a.currentID = id
		}
		a.inMemoryIncrements = 0
	} else {
		a.currentID++
		a.inMemoryIncrements++
	}
	a.generationStarted = true
	return a.currentID, nil
}

// ClaimNextBlock reserves BlockSize+1 ids for the caller and returns the first.
// The block is independent of the one NextID is serving.
func (a *Allocator) ClaimNextBlock(ctx context.Context) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id, _, err := a.claim(ctx)
	return id, err
}

// PeekNextID returns what NextID would return, without consuming it.
// It's advisory only: other allocators may have claimed the id by the time it's used.
func (a *Allocator) PeekNextID(ctx context.Context) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.generationStarted {
		return a.read(ctx, false)
	}
	return a.currentID + 1, nil
}

// SaveChangesToID gives the unused rest of the current block back to the database, so it won't
// become a gap. Call it at the end of a unit of work, ideally in the same transaction.
//
// Nothing is written if another allocator has claimed since this one, as the watermark must
// never move backwards. The next NextID after a successful save claims a new block.
func (a *Allocator) SaveChangesToID(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.generationStarted {
		return nil
	}
	next := a.currentID + 1
	if next == a.nextIDStoredInDatabase {
		return nil
	}
	ok, err := a.swap(ctx, a.nextIDStoredInDatabase, next)
	if err != nil {
		return err
	}
	if !ok {
		a.log.Debug().
			Int64("expected", a.nextIDStoredInDatabase).
			Msg("sequence moved since last claim, not saving")
		return nil
	}
	a.log.Debug().
		Int64("from", a.nextIDStoredInDatabase).
		Int64("to", next).
		Msg("saved sequence")
	a.nextIDStoredInDatabase = next
	a.inMemoryIncrements = a.cfg.BlockSize
	return nil
}

// Reseed sets the sequence's next free id. It fails with ErrStaleState, without retrying, if the
// row changes while reseeding. This allocator forgets its current block.
func (a *Allocator) Reseed(ctx context.Context, nextID int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if nextID > a.cfg.lastClaimable() {
		return fmt.Errorf("%w: no block of %d fits after %d", ErrOverflow, a.cfg.BlockSize+1, nextID)
	}
	seen, err := a.read(ctx, true)
	if err != nil {
		return err
	}
	if seen != nextID {
		ok, err := a.swap(ctx, seen, nextID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s %q moved from %d while reseeding to %d",
				ErrStaleState, a.cfg.Table, a.cfg.Key, seen, nextID)
		}
	}
	ev := a.log.Info()
	if nextID < seen {
		ev = a.log.Warn()
	}
	ev.Int64("from", seen).Int64("to", nextID).Msg("reseeded sequence")

	a.nextIDStoredInDatabase = nextID
	a.currentID = 0
	a.generationStarted = false
	a.inMemoryIncrements = a.cfg.BlockSize
	return nil
}

////////////////////////////////////////////////////////////////////////////////

// claim reserves the next block, returning its first id and the new watermark.
// Losing a race to another allocator is retried for as long as ctx allows.
func (a *Allocator) claim(ctx context.Context) (int64, int64, error) {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		id, err := a.read(ctx, true)
		if err != nil {
			return 0, 0, err
		}
		if id > a.cfg.lastClaimable() {
			a.log.Error().Int64("current", id).Msg("sequence exhausted")
			return 0, 0, fmt.Errorf("%w: no block of %d fits after %d", ErrOverflow, a.cfg.BlockSize+1, id)
		}
		next := id + a.cfg.BlockSize + 1
		ok, err := a.swap(ctx, id, next)
		if err != nil {
			return 0, 0, err
		}
		if ok {
			a.log.Debug().
				Int64("first", id).
				Int64("next", next).
				Int("attempt", attempt).
				Msg("claimed block")
			return id, next, nil
		}
		a.log.Debug().Int64("expected", id).Int("attempt", attempt).Msg("lost block claim, retrying")
	}
}

// read returns the sequence's current watermark.
func (a *Allocator) read(ctx context.Context, lock bool) (int64, error) {
	q, args := a.cfg.readQuery(lock && inTx(a.conn, ctx))
	var id int64
	err := a.conn.QueryRow(ctx, q, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		a.log.Error().Str("sql", q).Msg("sequence not seeded")
		return 0, fmt.Errorf("%w: no %s row for %q", ErrSeedMissing, a.cfg.Table, a.cfg.Key)
	}
	if err != nil {
		a.logError(err, q, "failed to read sequence")
		return 0, err
	}
	return id, nil
}

// swap moves the watermark from seen to next, reporting false if it wasn't at seen anymore.
func (a *Allocator) swap(ctx context.Context, seen, next int64) (bool, error) {
	q, args := a.cfg.swapQuery(seen, next)
	res, err := a.conn.Exec(ctx, q, args...)
	if err != nil {
		a.logError(err, q, "failed to update sequence")
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		a.logError(err, q, "failed to update sequence")
		return false, err
	}
	return n > 0, nil
}

func (a *Allocator) logError(err error, q, msg string) {
	a.log.Error().
		Err(err).
		Str("sql", q).
		Str("code", sqlp.DriverCode(err)).
		Msg(msg)
}
