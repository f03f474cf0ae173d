package smpl

import "errors"

// Model and input errors.
var (
	// ErrConfiguration reports model parameters that cannot be evaluated:
	// mismatched dimensions, bad face indices or a kinematic tree out of order.
	ErrConfiguration = errors.New("invalid model configuration")

	// ErrInputShape reports per-call inputs whose lengths do not match the model
	// or each other.
	ErrInputShape = errors.New("invalid input shape")
)
