package kiosk

import "errors"

var (
	ErrPermission     = errors.New("camera access denied")
	ErrModelLoad      = errors.New("face recognition model unavailable")
	ErrEnrollment     = errors.New("failed to load enrolled employees")
	ErrBusy           = errors.New("session is busy")
	ErrNotArmed       = errors.New("session is not armed")
	ErrLocationDenied = errors.New("location not verified")
	ErrInvalidAction  = errors.New("invalid attendance action")
	ErrDeviceBusy     = errors.New("camera device already in use")
	ErrStopped        = errors.New("session stopped")
	ErrClosed         = errors.New("session closed")
	ErrNotFound       = errors.New("session not found")
)

// BusinessRuleError is a rejection by the attendance ledger, for example a
// second check-out on the same day. Reason is shown to the user unmodified.
type BusinessRuleError struct {
	Reason string
}

func (e *BusinessRuleError) Error() string {
	return e.Reason
}
