package anchor

import "log/slog"

// FollowState is the state of the follow-bottom machine.
type FollowState int

const (
	// Following auto-scrolls to the bottom as content arrives.
	Following FollowState = iota
	// Detached leaves the scroll position alone while the user reads history.
	Detached
)

func (s FollowState) String() string {
	switch s {
	case Following:
		return "following"
	case Detached:
		return "detached"
	default:
		return "unknown"
	}
}

// FollowConfig configures follow-bottom behaviour.
//
// DetachThreshold should be tighter than ReattachThreshold: breaking free
// takes a small move away from the bottom, re-locking happens as soon as the
// user scrolls back close to it. Equal thresholds make the lock flap while
// content streams in.
type FollowConfig struct {
	Enabled bool
	// Threshold is the distance from the bottom within which a flush snaps
	// the viewport back to the bottom.
	Threshold         float64
	DetachThreshold   float64
	ReattachThreshold float64
}

// DefaultFollowConfig returns thresholds suited to pixel based lists.
func DefaultFollowConfig() FollowConfig {
	return FollowConfig{
		Enabled:           true,
		Threshold:         8,
		DetachThreshold:   4,
		ReattachThreshold: 48,
	}
}

// Follower tracks whether the list should stick to the bottom.
type Follower struct {
	state    FollowState
	detach   float64
	reattach float64
}

// NewFollower returns a follower in the Following state.
func NewFollower(cfg FollowConfig) *Follower {
	return &Follower{
		state:    Following,
		detach:   cfg.DetachThreshold,
		reattach: cfg.ReattachThreshold,
	}
}

// State returns the current state.
func (f *Follower) State() FollowState {
	return f.state
}

// Following reports whether the follower is locked to the bottom.
func (f *Follower) Following() bool {
	return f.state == Following
}

// Observe feeds a user scroll. movement is the change in scroll offset,
// positive towards the bottom; distance is what remains to the bottom after
// the move.
func (f *Follower) Observe(movement, distance float64) FollowState {
	switch f.state {
	case Following:
		if movement < 0 && distance > f.detach {
			f.state = Detached
			slog.Debug("Detached from bottom", "distance", distance)
		}
	case Detached:
		if movement > 0 && distance <= f.reattach {
			f.state = Following
			slog.Debug("Re-attached to bottom", "distance", distance)
		}
	}
	return f.state
}

// Reattach locks to the bottom unconditionally, as after an explicit
// scroll to bottom.
func (f *Follower) Reattach() {
	f.state = Following
}
