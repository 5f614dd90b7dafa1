package sim

// Clock is the discrete event simulation clock shared by every entity in the
// run. It is a logical time in seconds, moved forward by the movement loop
// between events; it never runs backwards.
type Clock struct {
	now float64
}

// NewClock builds a Clock starting at start seconds
func NewClock(start float64) *Clock {
	return &Clock{now: start}
}

// Now implements movement.Clock
func (c *Clock) Now() float64 {
	return c.now
}

// AdvanceTo moves the clock forward to at; earlier values are ignored to
// keep the clock monotonically non-decreasing
func (c *Clock) AdvanceTo(at float64) {
	if at > c.now {
		c.now = at
	}
}
