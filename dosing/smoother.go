package dosing

import "time"

// Smoother averages readings into fixed wall-clock buckets.
type Smoother struct {
	Window time.Duration

	last time.Time
	buf  []float64
}

// Add buffers v. Once Window has passed since the last flush it returns
// the mean of the buffer, including v, and clears it.
func (s *Smoother) Add(t time.Time, v float64) (mean float64, ok bool) {
	if s.last.IsZero() {
		s.last = t
	}
	s.buf = append(s.buf, v)
	if t.Sub(s.last) < s.Window {
		return 0, false
	}

	var sum float64
	for _, b := range s.buf {
		sum += b
	}
	mean = sum / float64(len(s.buf))
	s.buf = s.buf[:0]
	s.last = t
	return mean, true
}
