package thermostat

import "errors"

var (
	ErrValidation = errors.New("invalid thermostat setting")
	ErrActuation  = errors.New("relay actuation failed")
	ErrSafetyTrip = errors.New("safety shutdown")
	ErrClosed     = errors.New("thermostat closed")
)
