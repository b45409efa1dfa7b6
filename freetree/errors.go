package freetree

// InvariantError reports a structural violation found by a variant's
// CheckInvariants pass (P4-P7 in the allocator's testable-properties
// list). It is never returned from Insert/Remove/BestFit themselves,
// which assume their preconditions hold, as spec'd.
type InvariantError struct {
	Reason string
}

func (e *InvariantError) Error() string { return "freetree: " + e.Reason }

func errInvariant(reason string) error { return &InvariantError{Reason: reason} }
