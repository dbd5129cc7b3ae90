package reminder

import "time"

const day = 24 * time.Hour

// timingRanges gives the half-open window before the event start in which
// each staged reminder fires. Windows are a day wide and centered on the
// nominal offset so a 5-minute sweep cannot miss one.
var timingRanges = map[Timing]struct{ min, max time.Duration }{
	TimingWeek:    {min: 13 * day / 2, max: 15 * day / 2},
	TimingThree:   {min: 5 * day / 2, max: 7 * day / 2},
	TimingPrevDay: {min: day / 2, max: 3 * day / 2},
}

var timingLabels = map[Timing]string{
	TimingWeek:    "1週間前",
	TimingThree:   "3日前",
	TimingPrevDay: "前日",
	TimingSameDay: "当日",
}

// Label returns the Japanese display name of t.
func (t Timing) Label() string {
	return timingLabels[t]
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.In(tokyo).Date()
	by, bm, bd := b.In(tokyo).Date()
	return ay == by && am == bm && ad == bd
}

// triggeredTimings returns the reminder stages that should fire now for an
// event starting at startAt, skipping stages already marked in notified.
// The same-day stage fires any time between midnight and the event start.
func triggeredTimings(startAt, now time.Time, notified map[Timing]bool) []Timing {
	var triggered []Timing
	diff := startAt.Sub(now)
	if diff < 0 {
		return nil
	}

	for _, t := range []Timing{TimingWeek, TimingThree, TimingPrevDay} {
		if notified[t] {
			continue
		}
		r := timingRanges[t]
		if diff >= r.min && diff < r.max {
			triggered = append(triggered, t)
		}
	}

	if !notified[TimingSameDay] && sameDay(startAt, now) && now.Before(startAt) {
		triggered = append(triggered, TimingSameDay)
	}
	return triggered
}
