package health

import "errors"

var (
	// ErrCheckTimeout indicates a health check timed out.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrNoCheckers indicates an aggregator was built without checkers.
	ErrNoCheckers = errors.New("health: no checkers registered")

	// ErrDuplicateChecker indicates two checkers share a name.
	ErrDuplicateChecker = errors.New("health: duplicate checker name")
)
