package idgenp

import "errors"

var (
	// ErrSeedMissing means the sequence row doesn't exist. The table must be seeded (see Seed)
	// before ids can be generated, this is never retried.
	ErrSeedMissing = errors.New("idgenp: sequence not seeded")

	// ErrAlreadySeeded is returned by Seed for a sequence that already has a row.
	ErrAlreadySeeded = errors.New("idgenp: sequence already seeded")

	// ErrStaleState means the sequence row changed between reading and writing it, for
	// operations that don't retry (Reseed).
	ErrStaleState = errors.New("idgenp: sequence changed concurrently")

	// ErrUnsupported is returned by an Adapter for capabilities its Strategy lacks.
	ErrUnsupported = errors.New("idgenp: operation not supported")

	// ErrOverflow means an id doesn't fit its integer type: an Adapter's narrower type, or int64
	// itself once a sequence nears its end.
	ErrOverflow = errors.New("idgenp: id overflows target type")

	// ErrInvalidConfig is returned for unusable configuration.
	ErrInvalidConfig = errors.New("idgenp: invalid config")
)
