package device

import "sentinel-worker-go/internal/models"

// classifier applies the two-threshold hysteresis to change rates
type classifier struct {
	lower float64
	upper float64
	state models.MotionState
}

func newClassifier(lower, upper float64) *classifier {
	return &classifier{lower: lower, upper: upper}
}

// update classifies one evaluated change rate. Inside the band the
// previous evaluated classification is kept.
func (c *classifier) update(percent float64) models.MotionState {
	switch {
	case percent >= c.upper:
		c.state = models.MotionDetected
	case percent < c.lower:
		c.state = models.MotionIdle
	}
	return c.state
}

func (c *classifier) current() models.MotionState { return c.state }
