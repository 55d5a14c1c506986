package contracts

// RunState tracks a pipeline execution through its state machine:
//
//	STARTED → UNIVERSE_LOADED → FILTERED → SCORED → RANKED →
//	PERSISTED → NOTIFIED → COMPLETED
//
// FAILED is terminal and reachable from any non-terminal state. All
// logs, snapshots and DB rows use these constants.
type RunState string

const (
	StateStarted        RunState = "STARTED"
	StateUniverseLoaded RunState = "UNIVERSE_LOADED"
	StateFiltered       RunState = "FILTERED"
	StateScored         RunState = "SCORED"
	StateRanked         RunState = "RANKED"
	StatePersisted      RunState = "PERSISTED"
	StateNotified       RunState = "NOTIFIED"
	StateCompleted      RunState = "COMPLETED"
	StateFailed         RunState = "FAILED"
)

// String returns the state name
func (s RunState) String() string {
	return string(s)
}

// Terminal reports whether no further transition is allowed.
func (s RunState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// AllRunStates returns the happy-path states in execution order.
func AllRunStates() []RunState {
	return []RunState{
		StateStarted,
		StateUniverseLoaded,
		StateFiltered,
		StateScored,
		StateRanked,
		StatePersisted,
		StateNotified,
		StateCompleted,
	}
}

// CanTransition reports whether moving from s to next is legal. Any
// non-terminal state may fail; otherwise only the next happy-path state
// is allowed, with NOTIFIED skippable when notifications are disabled.
func (s RunState) CanTransition(next RunState) bool {
	if s.Terminal() {
		return false
	}
	if next == StateFailed {
		return true
	}

	order := AllRunStates()
	for i, st := range order {
		if st != s {
			continue
		}
		if i+1 < len(order) && order[i+1] == next {
			return true
		}
		// PERSISTED → COMPLETED is legal when notifications are off.
		if s == StatePersisted && next == StateCompleted {
			return true
		}
		return false
	}
	return false
}
