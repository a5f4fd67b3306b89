package service

import "errors"

// ErrGenerationInFlight is returned when a clearing cycle is already
// running for the user. Callers retry on their next cycle.
var ErrGenerationInFlight = errors.New("clearing cycle already running")
