package logic

// Bounds returns the hysteresis band [target-hysteresis, target].
func Bounds(target, hysteresis float64) (lower, upper float64) {
	return target - hysteresis, target
}

// Decide applies threshold hysteresis with a dwell guard.
//
// Within MinActuationInterval of the last relay change nothing happens.
// Otherwise heating stops once Current reaches Target and starts once Current
// drops below Target-Hysteresis. Between the two bounds the current state is
// kept.
func Decide(in Input) Decision {
	lower, upper := Bounds(in.Target, in.Hysteresis)
	d := Decision{Action: ActionNone, Reason: ReasonInBand, Lower: lower, Upper: upper}

	// The dwell clock starts at the first relay change, not at boot: a zero
	// LastActuation never blocks, so a cold room heats on the first tick.
	if !in.LastActuation.IsZero() && in.Time.Sub(in.LastActuation) < in.MinActuationInterval {
		d.Reason = ReasonDwell
		return d
	}

	switch {
	case in.Heating && in.Current >= upper:
		d.Action = ActionOff
		d.Reason = ReasonReachedUpper
	case !in.Heating && in.Current < lower:
		d.Action = ActionOn
		d.Reason = ReasonBelowLower
	}
	return d
}
