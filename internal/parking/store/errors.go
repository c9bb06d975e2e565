package store

import "errors"

var (
	// ErrActionConflict is returned when an approval targets a pending
	// action that is not in the processing state (already resolved,
	// expired, or claimed by someone else).
	ErrActionConflict = errors.New("pending action is not awaiting a decision")

	// ErrAlreadyProcessed is returned when an exit approval references a
	// transaction that is missing or already closed.
	ErrAlreadyProcessed = errors.New("transaction missing or already processed")

	// ErrOpenSessionExists is returned when an entry approval would create
	// a second open session for the same card.
	ErrOpenSessionExists = errors.New("card already has an open session")

	// ErrCardExists is returned by Create when the card id is taken.
	ErrCardExists = errors.New("card already exists")

	// ErrCardNotFound is returned by card mutations on an unknown id.
	ErrCardNotFound = errors.New("card not found")
)
