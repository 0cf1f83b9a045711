package listing

// transitions is the closed set of legal status moves. Anything not in
// this table is refused by Store.Transition with ErrInvalidState.
var transitions = map[Status][]Status{
	StatusAvailable: {StatusClaimed, StatusRejected, StatusExpired},
	StatusClaimed:   {StatusAccepted, StatusAvailable, StatusExpired},
	StatusAccepted:  {StatusTransit, StatusAvailable, StatusExpired},
	StatusTransit:   {StatusCompleted, StatusAvailable, StatusExpired},
	// completed, rejected and expired are terminal: no outgoing edges.
}

// CanTransition reports whether from -> to is a legal lifecycle move.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a status admits no further transitions.
func Terminal(s Status) bool {
	switch s {
	case StatusCompleted, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// AllStatuses enumerates every lifecycle state, for validation and tests.
func AllStatuses() []Status {
	return []Status{
		StatusAvailable, StatusClaimed, StatusAccepted, StatusTransit,
		StatusCompleted, StatusRejected, StatusExpired,
	}
}
