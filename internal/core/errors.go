package core

import "errors"

var (
	// ErrUnknownTreatment is returned when a treatment key is not one of the
	// input's declared treatments.
	ErrUnknownTreatment = errors.New("core: unknown treatment")
	// ErrUnknownOutcome is returned when an outcome key is not one of the
	// input's declared outcomes.
	ErrUnknownOutcome = errors.New("core: unknown outcome")
	// ErrInvalidThreshold is returned for a significance threshold outside (0, 1].
	ErrInvalidThreshold = errors.New("core: threshold must be in (0, 1]")
	// ErrUnknownCluster is returned when a validity toggle names a cluster that
	// is not part of the current cut.
	ErrUnknownCluster = errors.New("core: unknown cluster")
)
