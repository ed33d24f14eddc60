package catalog

import "errors"

var (
	ErrPlanNotFound        = errors.New("plan not found")
	ErrPlanInactive        = errors.New("plan is inactive")
	ErrApplicationNotFound = errors.New("application not found")
	ErrInvalidMoney        = errors.New("invalid monetary amount")

	// ErrStoreTimeout marks a store call that exceeded its deadline; callers
	// may retry the whole operation since nothing was committed.
	ErrStoreTimeout = errors.New("catalog store timeout")
)
