package activity

import (
	"context"
	"time"
)

// ReplayStep is one transition in a replayed sequence, delivered after
// waiting Delay from the previous step.
type ReplayStep struct {
	Delay time.Duration
	Raw   RawTransition
}

// ReplaySource replays a fixed sequence of raw transitions. Used by debug
// tooling and tests standing in for a live recognizer.
type ReplaySource struct {
	Steps []ReplayStep
}

// Run delivers the steps in order, honoring each step's delay, then returns.
func (s *ReplaySource) Run(ctx context.Context, deliver func(RawTransition)) error {
	for _, step := range s.Steps {
		if step.Delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(step.Delay):
			}
		} else if ctx.Err() != nil {
			return ctx.Err()
		}
		deliver(step.Raw)
	}
	return nil
}
