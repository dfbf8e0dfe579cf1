package align

import "time"

// DaysBetween returns the number of calendar days from a to b. Dates are
// normalized to UTC midnight so daylight transitions cannot skew ages.
func DaysBetween(a, b time.Time) int {
	au := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bu := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bu.Sub(au).Hours() / 24)
}

// MonthEnds returns the last calendar day of each month whose end falls in
// [start, end].
func MonthEnds(start, end time.Time) []time.Time {
	var out []time.Time
	cur := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cur.After(end) {
		next := cur.AddDate(0, 1, 0)
		monthEnd := next.AddDate(0, 0, -1)
		if !monthEnd.After(end) {
			out = append(out, monthEnd)
		}
		cur = next
	}
	return out
}

// QuarterEnds returns calendar quarter ends (Mar/Jun/Sep/Dec) in [start, end].
func QuarterEnds(start, end time.Time) []time.Time {
	var out []time.Time
	for year := start.Year(); year <= end.Year(); year++ {
		for _, month := range []time.Month{time.March, time.June, time.September, time.December} {
			var qEnd time.Time
			if month == time.December {
				qEnd = time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
			} else {
				qEnd = time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
			}
			if !qEnd.Before(start) && !qEnd.After(end) {
				out = append(out, qEnd)
			}
		}
	}
	return out
}
