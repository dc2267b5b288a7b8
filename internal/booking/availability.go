package booking

import (
	"iter"
	"sort"
)

// Resolver computes bookable start times for a dentist/clinic/date
// from working-hour windows, blocked ranges, and existing bookings.
// It is pure interval math: the caller supplies every input and no
// I/O happens here.
type Resolver struct {
	// GranularityMinutes is the step between emitted start times.
	// Zero means step by the service duration.
	GranularityMinutes int
}

// ResolveSlots yields, in ascending order, every start time t such
// that [t, t+duration) fits entirely inside one contiguous free range
// of the day. When date is today, start times at or before nowMinute
// are excluded. A dentist with no applicable windows yields nothing;
// that is an empty result, not an error.
//
// The sequence is finite and restartable; ranging over it twice
// re-walks the same free ranges.
func (r *Resolver) ResolveSlots(
	date Date,
	durationMinutes int,
	windows []AvailabilityWindow,
	blocks []BlockedSlot,
	existing []Appointment,
	today Date,
	nowMinute TimeOfDay,
) iter.Seq[TimeOfDay] {
	step := r.GranularityMinutes
	if step <= 0 {
		step = durationMinutes
	}

	return func(yield func(TimeOfDay) bool) {
		if durationMinutes <= 0 {
			return
		}
		free := freeRanges(date, windows, blocks, existing)
		span := TimeOfDay(durationMinutes)
		for _, iv := range free {
			for t := iv.Start; iv.Contains(Interval{Start: t, End: t + span}); t += TimeOfDay(step) {
				if date.Equal(today) && t <= nowMinute {
					continue
				}
				if !yield(t) {
					return
				}
			}
		}
	}
}

// freeRanges applies the windows for date, then subtracts blocked
// ranges and non-terminal appointment intervals. Date-specific
// windows override the weekday template for that day.
func freeRanges(date Date, windows []AvailabilityWindow, blocks []BlockedSlot, existing []Appointment) []Interval {
	var dated, weekly []Interval
	for _, w := range windows {
		if !w.AppliesTo(date) {
			continue
		}
		if w.Date != nil {
			dated = append(dated, w.Interval())
		} else {
			weekly = append(weekly, w.Interval())
		}
	}
	free := weekly
	if len(dated) > 0 {
		free = dated
	}
	free = mergeIntervals(free)

	for _, b := range blocks {
		if b.Date.Equal(date) {
			free = subtract(free, b.Interval())
		}
	}
	for _, a := range existing {
		if a.Status.Terminal() {
			continue
		}
		if a.Date.Equal(date) {
			free = subtract(free, a.Interval())
		}
	}
	return free
}

func mergeIntervals(ivs []Interval) []Interval {
	var out []Interval
	for _, iv := range ivs {
		if !iv.Empty() {
			out = append(out, iv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	merged := out[:0]
	for _, iv := range out {
		if n := len(merged); n > 0 && iv.Start <= merged[n-1].End {
			if iv.End > merged[n-1].End {
				merged[n-1].End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// subtract removes cut from every interval in ivs, splitting any
// interval the cut lands inside.
func subtract(ivs []Interval, cut Interval) []Interval {
	if cut.Empty() {
		return ivs
	}
	var out []Interval
	for _, iv := range ivs {
		if !iv.Overlaps(cut) {
			out = append(out, iv)
			continue
		}
		if left := (Interval{Start: iv.Start, End: cut.Start}); !left.Empty() {
			out = append(out, left)
		}
		if right := (Interval{Start: cut.End, End: iv.End}); !right.Empty() {
			out = append(out, right)
		}
	}
	return out
}
