package engine

import "errors"

var (
	// ErrInvalidInput reports candles and signals that are not index-aligned.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMalformedSeries reports a series the simulator is not defined over:
	// misaligned, empty, unordered, or carrying non-finite values.
	ErrMalformedSeries = errors.New("malformed series")

	// ErrInvalidParameter reports simulation options outside their domain.
	ErrInvalidParameter = errors.New("invalid parameter")
)
