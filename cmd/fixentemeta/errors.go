package main

import "errors"

// Per-file failure kinds. None of them abort a run.
var (
	ErrNoSidecar    = errors.New("no sidecar found")
	ErrMissingField = errors.New("no usable timestamp in sidecar")
	ErrWrite        = errors.New("metadata write failed")
)

// outcomeForError maps a per-file error onto its report outcome.
func outcomeForError(err error) Outcome {
	switch {
	case errors.Is(err, ErrNoSidecar):
		return OutcomeNoSidecar
	case errors.Is(err, ErrMissingField):
		return OutcomeMissingField
	default:
		return OutcomeWriteError
	}
}
