package sked

import "errors"

var (
	ErrClosed         = errors.New("sked: engine closed")
	ErrNilBody        = errors.New("sked: task body is nil")
	ErrInvalidPeriod  = errors.New("sked: invalid period")
	ErrInvalidDayTime = errors.New("sked: invalid time of day")
	ErrNoGranularity  = errors.New("sked: builder has no granularity selected")
)
