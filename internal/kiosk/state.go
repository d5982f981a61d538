package kiosk

import "fmt"

// State is the lifecycle state of a scan session.
type State int

const (
	StateIdle State = iota
	StateAwaitingCamera
	StateCheckingLocation
	StateLocationDenied
	StateArmed
	StateScanning
	StateMatchFound
	StateSubmitting
	StateCooldown
	StateStopped
	StateError
)

var stateNames = [...]string{
	StateIdle:             "idle",
	StateAwaitingCamera:   "awaiting_camera",
	StateCheckingLocation: "checking_location",
	StateLocationDenied:   "location_denied",
	StateArmed:            "armed",
	StateScanning:         "scanning",
	StateMatchFound:       "match_found",
	StateSubmitting:       "submitting",
	StateCooldown:         "cooldown",
	StateStopped:          "stopped",
	StateError:            "error",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// busy reports whether a scan loop owns the session.
func (s State) busy() bool {
	return s == StateScanning || s == StateMatchFound || s == StateSubmitting
}

// startable reports whether Start may begin a new camera session.
func (s State) startable() bool {
	return s == StateIdle || s == StateError
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", text)
}
