// Package facematch classifies probe face descriptors against a snapshot of
// enrolled employees.
package facematch

import "fmt"

// Policy selects which candidate wins when several are under the threshold.
type Policy string

const (
	PolicyFirst   Policy = "first"   // first record in snapshot order
	PolicyNearest Policy = "nearest" // globally closest record
)

// ParsePolicy maps a config value to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyFirst:
		return PolicyFirst, nil
	case PolicyNearest:
		return PolicyNearest, nil
	default:
		return "", fmt.Errorf("unknown match policy %q", s)
	}
}

// Record is one enrolled employee. Descriptor may be nil.
type Record struct {
	EmployeeID  string     `json:"employee_id"`
	DisplayName string     `json:"display_name"`
	Descriptor  Descriptor `json:"descriptor,omitempty"`
}

// Snapshot is the ordered enrollment set used for one session.
type Snapshot []Record

// Matchable counts records with a usable descriptor of length dim.
func (s Snapshot) Matchable(dim int) int {
	n := 0
	for i := range s {
		if s[i].Descriptor.Valid(dim) {
			n++
		}
	}
	return n
}

// Result is the outcome of matching one probe.
type Result struct {
	Record   *Record `json:"record,omitempty"`
	Distance float64 `json:"distance"`
	Matched  bool    `json:"matched"`
}

// Detection is one face found in a frame by the extraction model.
type Detection struct {
	Descriptor Descriptor `json:"descriptor"`
	BBox       []float64  `json:"bbox,omitempty"` // [x1, y1, x2, y2] in pixels
	Score      float64    `json:"score"`
}
