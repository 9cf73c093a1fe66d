package advisory

import (
	"errors"
	"fmt"
)

// ErrInvalidRange is returned when a threshold range is not a closed
// interval on [0, 360).
var ErrInvalidRange = errors.New("invalid threshold range")

// ThresholdRange is a closed angular interval on [0, 360) degrees. Wind
// blowing from a bearing inside the interval requires protective action.
// Fixed at deployment per station profile; two known variants are 45-225
// and 90-180.
type ThresholdRange struct {
	MinDegrees float64
	MaxDegrees float64
}

// NewThresholdRange validates and constructs a ThresholdRange.
func NewThresholdRange(minDegrees, maxDegrees float64) (ThresholdRange, error) {
	if minDegrees < 0 || minDegrees >= 360 {
		return ThresholdRange{}, fmt.Errorf("%w: min %.1f outside [0,360)", ErrInvalidRange, minDegrees)
	}
	if maxDegrees < 0 || maxDegrees >= 360 {
		return ThresholdRange{}, fmt.Errorf("%w: max %.1f outside [0,360)", ErrInvalidRange, maxDegrees)
	}
	if minDegrees > maxDegrees {
		return ThresholdRange{}, fmt.Errorf("%w: min %.1f > max %.1f", ErrInvalidRange, minDegrees, maxDegrees)
	}
	return ThresholdRange{MinDegrees: minDegrees, MaxDegrees: maxDegrees}, nil
}

// RequiresProtectiveAction reports whether the given bearing falls inside
// the threshold range. A nil bearing means no data; zero and negative
// readings are treated as no data rather than north. Pure function.
func (r ThresholdRange) RequiresProtectiveAction(direction *float64) bool {
	if direction == nil || *direction <= 0 {
		return false
	}
	return r.MinDegrees <= *direction && *direction <= r.MaxDegrees
}
