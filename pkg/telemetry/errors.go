package telemetry

import "errors"

// ErrInvalidRunParameters is returned when a run is requested with a target,
// timeout or interval that cannot produce a meaningful series
var ErrInvalidRunParameters = errors.New("invalid run parameters")
