package services

import "errors"

var (
	// ErrValidation rejects malformed input before any state is read.
	ErrValidation = errors.New("validation failed")

	// ErrCurveMigrated fails buy/sell requests against a migrated curve.
	// No state is mutated.
	ErrCurveMigrated = errors.New("curve already migrated")

	// ErrAlreadyMigrated rejects a duplicate migration trigger without
	// re-executing the migration. Callers treat it as a successful no-op.
	ErrAlreadyMigrated = errors.New("launch already migrated")

	// ErrUnauthorizedCaller rejects callbacks from identities missing from
	// the allow-list. Logged as a potential attack signal.
	ErrUnauthorizedCaller = errors.New("unauthorized caller")

	// ErrUnknownLaunch is returned for events referencing a launch the
	// coordinator has never seen.
	ErrUnknownLaunch = errors.New("unknown launch")

	// ErrUnknownChain is returned when no ChainClient is configured for a
	// referenced chain id.
	ErrUnknownChain = errors.New("unknown chain")
)
