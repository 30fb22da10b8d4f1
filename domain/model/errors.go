package model

import "github.com/cockroachdb/errors"

var (
	// ErrUnsupportedField marks a source field whose kind cannot be written
	// into a column. Flattening drops such fields; the error only shows up in
	// diagnostics.
	ErrUnsupportedField = errors.New("unsupported field kind")

	// ErrInvalidConfiguration is returned when a parse configuration is
	// internally inconsistent
	ErrInvalidConfiguration = errors.New("invalid parse configuration")

	// ErrFingerprintMismatch is returned when the stored header bytes no longer
	// hash to the recorded fingerprint
	ErrFingerprintMismatch = errors.New("header fingerprint mismatch")
)
