package service

import (
	"errors"
	"regexp"
)

var (
	// ErrConflict is returned when a synchronization is already running.
	ErrConflict = errors.New("a synchronization is already in progress")
	// ErrPrerequisiteMissing is returned by incremental sync on an empty store.
	ErrPrerequisiteMissing = errors.New("incremental sync requires existing data, run a full sync first")
	ErrInvalidPeriod       = errors.New("billing month must be formatted as YYYY-MM")
	ErrInvalidFrequency    = errors.New("frequency must be one of 5, 10, 60 or 300 seconds")
	ErrScheduleDisabled    = errors.New("auto sync is not enabled")
	ErrInvalidStatsPeriod  = errors.New("stats period must be one of 5h, 1d or 1m")
)

var periodPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

func validatePeriod(period string) error {
	if !periodPattern.MatchString(period) {
		return ErrInvalidPeriod
	}
	return nil
}
