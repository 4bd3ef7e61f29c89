package indicators

import (
	"errors"
	"math"
)

var (
	// ErrInsufficientData means the series is shorter than the indicator window.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrDegenerate means the computation produced NaN, Inf or divided by zero.
	ErrDegenerate = errors.New("degenerate computation")
)

// Result is the outcome of one indicator at the latest bar.
type Result struct {
	Value float64
	OK    bool
	Err   error
}

// Ok wraps a computed value, rejecting non-finite numbers.
func Ok(v float64) Result {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Result{Err: ErrDegenerate}
	}
	return Result{Value: v, OK: true}
}

// Fail records why an indicator is unavailable.
func Fail(err error) Result {
	return Result{Err: err}
}

// last returns the final element of an indicator output stream.
func last(xs []float64) Result {
	if len(xs) == 0 {
		return Fail(ErrInsufficientData)
	}
	return Ok(xs[len(xs)-1])
}
