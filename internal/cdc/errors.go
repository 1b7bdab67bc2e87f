package cdc

import (
	apperrors "github.com/lupppig/dchunk/internal/errors"
)

// Range faults.
var (
	ErrAverageTooSmall = apperrors.New(apperrors.TypeRange, "average < AVERAGE_MIN", "Use an average chunk size of at least 256 bytes.")
	ErrAverageTooLarge = apperrors.New(apperrors.TypeRange, "average > AVERAGE_MAX", "Use an average chunk size of at most 256 MiB.")
	ErrMinimumTooSmall = apperrors.New(apperrors.TypeRange, "minimum < MINIMUM_MIN", "Use a minimum chunk size of at least 64 bytes.")
	ErrMinimumTooLarge = apperrors.New(apperrors.TypeRange, "minimum > MINIMUM_MAX", "Use a minimum chunk size of at most 64 MiB.")
	ErrMaximumTooSmall = apperrors.New(apperrors.TypeRange, "maximum < MAXIMUM_MIN", "Use a maximum chunk size of at least 1 KiB.")
	ErrMaximumTooLarge = apperrors.New(apperrors.TypeRange, "maximum > MAXIMUM_MAX", "Use a maximum chunk size of at most 1 GiB.")

	ErrSourceRange = apperrors.New(apperrors.TypeRange, "source offset or size out of range", "Offsets and sizes must be non-negative and below 2^31-1.")
	ErrTargetRange = apperrors.New(apperrors.TypeRange, "target offset out of range", "Offsets must be non-negative and below 2^31-1.")

	// ErrInsufficientLookahead is returned for a non-final call whose source
	// is not longer than maximum.
	ErrInsufficientLookahead = apperrors.New(apperrors.TypeRange, "sourceSize <= maximum", "Supply more than maximum bytes per non-final call, or mark the call as final.")
)

// Relational faults.
var (
	ErrMinimumNotBelowAverage = apperrors.New(apperrors.TypeRelational, "minimum >= average", "The minimum chunk size must be smaller than the average.")
	ErrMaximumNotAboveAverage = apperrors.New(apperrors.TypeRelational, "maximum <= average", "The maximum chunk size must be larger than the average.")
	ErrSpreadBelowAverage     = apperrors.New(apperrors.TypeRelational, "maximum - minimum < average", "Increase maximum or decrease minimum so that maximum - minimum >= average.")
	ErrBitsOutOfRange         = apperrors.New(apperrors.TypeRelational, "average must be between 8 and 28 bits", "Pick an average between 256 bytes and 256 MiB.")
)

// Capacity faults.
var (
	ErrSourceOverflow = apperrors.New(apperrors.TypeCapacity, "source overflow", "sourceOffset + sourceSize exceeds the source buffer.")
	ErrTargetOverflow = apperrors.New(apperrors.TypeCapacity, "target overflow", "Size the target with RequiredCapacity(minimum, sourceSize).")
)

// Invariant faults. These indicate a defect, never a caller mistake.
var (
	ErrChunkEmpty      = apperrors.New(apperrors.TypeInvariant, "chunkSize == 0", "")
	ErrChunkTooLarge   = apperrors.New(apperrors.TypeInvariant, "chunkSize > maximum", "")
	ErrChunkTooSmall   = apperrors.New(apperrors.TypeInvariant, "chunkSize < minimum on a non-final call", "")
	ErrChunkOverrun    = apperrors.New(apperrors.TypeInvariant, "sourceOffset + chunkSize > sourceLength", "")
	ErrRecordOverflow  = apperrors.New(apperrors.TypeInvariant, "record would overflow the target region", "")
	ErrIncompleteFinal = apperrors.New(apperrors.TypeInvariant, "final call left bytes unconsumed", "")
)
