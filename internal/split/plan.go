package split

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidPlan is returned when a plan is requested for a non-positive
// duration or segment length.
var ErrInvalidPlan = errors.New("invalid plan: duration and segment length must be positive")

// Window is the time range of one segment.
type Window struct {
	// Index is the 1-based segment index.
	Index int
	// Start is the window start in seconds.
	Start float64
	// End is the window end in seconds.
	End float64
}

// Length returns the window length in seconds.
func (w Window) Length() float64 {
	return w.End - w.Start
}

// Plan splits [0, total) into ceil(total/segmentLen) contiguous windows.
// Every window is segmentLen long except possibly the last.
func Plan(total, segmentLen float64) ([]Window, error) {
	if !validSeconds(total) || !validSeconds(segmentLen) {
		return nil, fmt.Errorf("%w: total=%g, segment=%g", ErrInvalidPlan, total, segmentLen)
	}

	count := int(math.Ceil(total / segmentLen))
	windows := make([]Window, 0, count)
	for i := 0; i < count; i++ {
		start := float64(i) * segmentLen
		if start >= total {
			break
		}
		windows = append(windows, Window{
			Index: i + 1,
			Start: start,
			End:   math.Min(start+segmentLen, total),
		})
	}
	return windows, nil
}

func validSeconds(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
