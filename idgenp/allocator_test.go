package idgenp

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/greghart/powerputty-idgen/errcmp"
	"github.com/greghart/powerputty-idgen/sqlp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	readSQL       = "SELECT current_id FROM id_generator WHERE object_type = ?"
	swapSQL       = "UPDATE id_generator SET current_id = ? WHERE object_type = ? AND current_id = ?"
	pgReadLockSQL = "SELECT current_id FROM id_generator WHERE object_type = $1 FOR UPDATE"
	pgSwapSQL     = "UPDATE id_generator SET current_id = $1 WHERE object_type = $2 AND current_id = $3"
)

func TestAllocator_NextID(t *testing.T) {
	t.Run("serves a block from memory after claiming it", func(t *testing.T) {
		a, mock := mockAllocator(t, Config{Key: "people", BlockSize: 4})
		expectRead(mock, 100)
		expectSwap(mock, 100, 105, 1)

		for _, expected := range []int64{100, 101, 102, 103, 104} {
			id, err := a.NextID(context.Background())
			require.NoError(t, err)
			assert.Equal(t, expected, id)
		}
		// Nothing but the first claim touched the database
		require.NoError(t, mock.ExpectationsWereMet())

		expectRead(mock, 105)
		expectSwap(mock, 105, 110, 1)
		id, err := a.NextID(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(105), id)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("block size of zero reads and writes for every id", func(t *testing.T) {
		a, mock := mockAllocator(t, Config{Key: "people"})
		for _, seen := range []int64{7, 8, 9} {
			expectRead(mock, seen)
			expectSwap(mock, seen, seen+1, 1)
			id, err := a.NextID(context.Background())
			require.NoError(t, err)
			assert.Equal(t, seen, id)
			require.NoError(t, mock.ExpectationsWereMet())
		}
	})

	t.Run("retries a lost claim", func(t *testing.T) {
		a, mock := mockAllocator(t, Config{Key: "people", BlockSize: 4})
		expectRead(mock, 100)
		expectSwap(mock, 100, 105, 0) // another allocator got there first
		expectRead(mock, 105)
		expectSwap(mock, 105, 110, 1)

		ids := nextIDs(t, a, 5)
		assert.Equal(t, []int64{105, 106, 107, 108, 109}, ids)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing seed is a configuration error", func(t *testing.T) {
		a, mock := mockAllocator(t, Config{Key: "people"})
		mock.ExpectQuery(readSQL).WithArgs("people").WillReturnRows(sqlmock.NewRows([]string{"current_id"}))

		_, err := a.NextID(context.Background())
		errcmp.MustMatch(t, err, ErrSeedMissing.Error())
		errcmp.MustMatch(t, err, `"people"`)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("driver errors are logged and returned unchanged", func(t *testing.T) {
		logs := &bytes.Buffer{}
		a, mock := mockAllocator(t, Config{Key: "people"})
		a.WithLogger(zerolog.New(logs))
		boom := errors.New("connection reset")
		expectRead(mock, 100)
		mock.ExpectExec(swapSQL).WithArgs(int64(101), "people", int64(100)).WillReturnError(boom)

		_, err := a.NextID(context.Background())
		assert.Equal(t, boom, err)
		assert.Contains(t, logs.String(), `"sql":"UPDATE id_generator`)
		assert.Contains(t, logs.String(), "connection reset")
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stops retrying once the context is done", func(t *testing.T) {
		a, mock := mockAllocator(t, Config{Key: "people"})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := a.NextID(ctx)
		errcmp.MustMatch(t, err, context.Canceled.Error())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("locks the row inside a transaction", func(t *testing.T) {
		mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
		require.NoError(t, err)
		defer mockDB.Close()
		db := sqlp.NewDB(mockDB).WithDialect(sqlp.Postgres)
		a, err := NewAllocator(db, Config{Key: "people", Dialect: sqlp.Postgres})
		require.NoError(t, err)

		mock.ExpectBegin()
		mock.ExpectQuery(pgReadLockSQL).WithArgs("people").
			WillReturnRows(sqlmock.NewRows([]string{"current_id"}).AddRow(int64(1)))
		mock.ExpectExec(pgSwapSQL).WithArgs(int64(2), "people", int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		var id int64
		err = db.RunInTx(context.Background(), func(ctx context.Context) (err error) {
			id, err = a.NextID(ctx)
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), id)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAllocator_ClaimNextBlock(t *testing.T) {
	a, mock := mockAllocator(t, Config{Key: "people", BlockSize: 4})
	expectRead(mock, 100)
	expectSwap(mock, 100, 105, 1)
	first, err := a.ClaimNextBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(100), first)

	// NextID claims its own block
	expectRead(mock, 105)
	expectSwap(mock, 105, 110, 1)
	assert.Equal(t, []int64{105, 106}, nextIDs(t, a, 2))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAllocator_PeekNextID(t *testing.T) {
	a, mock := mockAllocator(t, Config{Key: "people", BlockSize: 4})

	// Before generating, peeking reads without claiming
	expectRead(mock, 100)
	peeked, err := a.PeekNextID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(100), peeked)

	expectRead(mock, 100)
	expectSwap(mock, 100, 105, 1)
	assert.Equal(t, []int64{100}, nextIDs(t, a, 1))

	for i := 0; i < 3; i++ {
		peeked, err := a.PeekNextID(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(101), peeked)
	}
	assert.Equal(t, []int64{101}, nextIDs(t, a, 1))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAllocator_SaveChangesToID(t *testing.T) {
	t.Run("gives back the unused rest of the block", func(t *testing.T) {
		a, mock := mockAllocator(t, Config{Key: "people", BlockSize: 10})
		expectRead(mock, 99)
		expectSwap(mock, 99, 110, 1)
		ids := nextIDs(t, a, 9)
		require.Equal(t, int64(107), ids[len(ids)-1])

		expectSwap(mock, 110, 108, 1)
		require.NoError(t, a.SaveChangesToID(context.Background()))

		// The surrendered ids are claimed again rather than served from memory
		expectRead(mock, 108)
		expectSwap(mock, 108, 119, 1)
		assert.Equal(t, []int64{108}, nextIDs(t, a, 1))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("does nothing before generating", func(t *testing.T) {
		a, mock := mockAllocator(t, Config{Key: "people", BlockSize: 10})
		require.NoError(t, a.SaveChangesToID(context.Background()))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("does nothing when the block is used up", func(t *testing.T) {
		a, mock := mockAllocator(t, Config{Key: "people"})
		expectRead(mock, 7)
		expectSwap(mock, 7, 8, 1)
		nextIDs(t, a, 1)
		require.NoError(t, a.SaveChangesToID(context.Background()))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("leaves the row alone once another allocator claimed", func(t *testing.T) {
		a, mock := mockAllocator(t, Config{Key: "people", BlockSize: 4})
		expectRead(mock, 100)
		expectSwap(mock, 100, 105, 1)
		nextIDs(t, a, 1)

		expectSwap(mock, 105, 101, 0)
		require.NoError(t, a.SaveChangesToID(context.Background()))

		// Block is still ours to serve
		assert.Equal(t, []int64{101, 102}, nextIDs(t, a, 2))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAllocator_Reseed(t *testing.T) {
	t.Run("moves the sequence and restarts from it", func(t *testing.T) {
		a, mock := mockAllocator(t, Config{Key: "people", BlockSize: 4})
		expectRead(mock, 100)
		expectSwap(mock, 100, 105, 1)
		nextIDs(t, a, 2)

		expectRead(mock, 105)
		expectSwap(mock, 105, 50, 1)
		require.NoError(t, a.Reseed(context.Background(), 50))

		expectRead(mock, 50)
		expectSwap(mock, 50, 55, 1)
		assert.Equal(t, []int64{50, 51}, nextIDs(t, a, 2))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reports a concurrent change without retrying", func(t *testing.T) {
		a, mock := mockAllocator(t, Config{Key: "people"})
		expectRead(mock, 100)
		expectSwap(mock, 100, 500, 0)

		err := a.Reseed(context.Background(), 500)
		errcmp.MustMatch(t, err, ErrStaleState.Error())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("skips the write when already there", func(t *testing.T) {
		a, mock := mockAllocator(t, Config{Key: "people"})
		expectRead(mock, 500)
		require.NoError(t, a.Reseed(context.Background(), 500))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAllocator_overflow(t *testing.T) {
	t.Run("claims up to the end of int64 and no further", func(t *testing.T) {
		a, mock := mockAllocator(t, Config{Key: "people", BlockSize: 4})
		last := int64(math.MaxInt64 - 5)
		expectRead(mock, last)
		expectSwap(mock, last, math.MaxInt64, 1)
		assert.Equal(t, []int64{last, last + 1, last + 2, last + 3, last + 4}, nextIDs(t, a, 5))

		expectRead(mock, math.MaxInt64)
		_, err := a.NextID(context.Background())
		errcmp.MustMatch(t, err, ErrOverflow.Error())
		require.NoError(t, mock.ExpectationsWereMet())

		// Still exhausted, and still never wraps
		expectRead(mock, math.MaxInt64)
		_, err = a.NextID(context.Background())
		errcmp.MustMatch(t, err, ErrOverflow.Error())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("refuses a block that would wrap", func(t *testing.T) {
		a, mock := mockAllocator(t, Config{Key: "people", BlockSize: 4})
		expectRead(mock, math.MaxInt64-4)
		_, err := a.ClaimNextBlock(context.Background())
		errcmp.MustMatch(t, err, "no block of 5 fits after 9223372036854775803")
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("refuses to reseed where no block fits", func(t *testing.T) {
		a, mock := mockAllocator(t, Config{Key: "people", BlockSize: 4})
		err := a.Reseed(context.Background(), math.MaxInt64-2)
		errcmp.MustMatch(t, err, ErrOverflow.Error())
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestNewAllocator(t *testing.T) {
	tests := map[string]struct {
		cfg     Config
		dialect sqlp.Dialect
		err     string
	}{
		"defaults":               {Config{Key: "people"}, sqlp.SQLite, ""},
		"custom names":           {Config{Table: "app.sequences", KeyColumn: "name", ValueColumn: "next", Key: "people"}, sqlp.SQLite, ""},
		"pgx driver is postgres": {Config{Key: "people", Dialect: "pgx"}, sqlp.Postgres, ""},
		"sqlite driver alias":    {Config{Key: "people", Dialect: "sqlite"}, sqlp.SQLite, ""},
		"largest block size":     {Config{Key: "people", BlockSize: MaxBlockSize}, sqlp.SQLite, ""},
		"missing key":            {Config{}, "", "key is required"},
		"negative block":         {Config{Key: "people", BlockSize: -1}, "", "block size -1 is negative"},
		"block too large":        {Config{Key: "people", BlockSize: math.MaxInt64}, "", "is over 1073741824"},
		"injected table":         {Config{Key: "people", Table: "ids; DROP TABLE people"}, "", "is not a valid identifier"},
		"unsupported dialect":    {Config{Key: "people", Dialect: "oracle"}, "", "no dialect"},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			a, err := NewAllocator(nil, test.cfg)
			errcmp.MustMatch(t, err, test.err)
			if err != nil {
				errcmp.MustMatch(t, err, ErrInvalidConfig.Error())
				return
			}
			assert.Equal(t, test.dialect, a.Config().Dialect)
			assert.NotEmpty(t, a.Config().Table)
		})
	}
}

func TestConfig_driverAliasStatements(t *testing.T) {
	a, err := NewAllocator(nil, Config{Key: "people", Dialect: "pgx"})
	require.NoError(t, err)

	q, args := a.Config().readQuery(true)
	assert.Equal(t, pgReadLockSQL, q)
	assert.Equal(t, []any{"people"}, args)

	q, _ = a.Config().swapQuery(1, 2)
	assert.Equal(t, pgSwapSQL, q)
}

////////////////////////////////////////////////////////////////////////////////

func mockAllocator(t *testing.T, cfg Config) (*Allocator, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	a, err := NewAllocator(sqlp.NewDB(db), cfg)
	require.NoError(t, err)
	return a, mock
}

func expectRead(mock sqlmock.Sqlmock, current int64) {
	mock.ExpectQuery(readSQL).
		WithArgs("people").
		WillReturnRows(sqlmock.NewRows([]string{"current_id"}).AddRow(current))
}

func expectSwap(mock sqlmock.Sqlmock, seen, next, affected int64) {
	mock.ExpectExec(swapSQL).
		WithArgs(next, "people", seen).
		WillReturnResult(sqlmock.NewResult(0, affected))
}

func nextIDs(t *testing.T, s Strategy, n int) []int64 {
	t.Helper()
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		id, err := s.NextID(context.Background())
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}
