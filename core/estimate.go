package core

import "quarterload/api"

// Estimate projects the final average of the window described by status,
// assuming an additional load of target watts (negative for load shedding)
// runs for the remainder of the window. The result is a linear blend of the
// running average over the elapsed time and average-plus-target over the
// remaining time. Pure function over its inputs, never touches window state.
func Estimate(status api.WindowStatus, target float64) api.Estimate {
	span := Interval.Seconds()

	elapsed := status.ElapsedSeconds
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > span {
		elapsed = span
	}

	remaining := span - elapsed
	avg := status.TotalAverage
	forRemainder := avg + target

	return api.Estimate{
		Target:             target,
		CurrentAverage:     avg,
		ElapsedSeconds:     elapsed,
		RemainingSeconds:   remaining,
		TargetForRemainder: forRemainder,
		EstimatedFinal:     (avg*elapsed + forRemainder*remaining) / span,
	}
}
