package device

import "time"

const throttleWindow = time.Second

// timestampQueue is the sliding window of processed-frame times
type timestampQueue struct {
	times []time.Time
}

// allow prunes entries older than the window and admits now if fewer than
// ceiling frames were processed inside it. A ceiling of 0 admits everything.
func (q *timestampQueue) allow(now time.Time, ceiling int) bool {
	cutoff := now.Add(-throttleWindow)
	drop := 0
	for drop < len(q.times) && !q.times[drop].After(cutoff) {
		drop++
	}
	if drop > 0 {
		q.times = append(q.times[:0], q.times[drop:]...)
	}

	if ceiling > 0 && len(q.times) >= ceiling {
		return false
	}
	q.times = append(q.times, now)
	return true
}

// rate returns the processed frames per second over the window ending at now
func (q *timestampQueue) rate(now time.Time) float64 {
	cutoff := now.Add(-throttleWindow)
	n := 0
	for _, t := range q.times {
		if t.After(cutoff) {
			n++
		}
	}
	return float64(n) / throttleWindow.Seconds()
}
