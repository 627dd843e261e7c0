package snapshot

// policyState holds the variables that select a write-policy row.
type policyState struct {
	Existing bool // a value exists and is persisted (inline literal, raw file, or on-disk record)
	Mode     UpdateMode
	Pass     bool
}

// action is what Match does once the comparison is known.
type action int

const (
	actionUnmatched   action = iota // report failure, write nothing
	actionAdd                       // write a new snapshot, count added
	actionOverwrite                 // replace a mismatching snapshot, count updated
	actionRecanonical               // count matched, refresh stored text with fresh serialization
	actionMatch                     // count matched, write nothing
)

// Row returns the write-policy row (1-6):
//
//	| row | existing | mode     | pass  | action        |
//	|-----|----------|----------|-------|---------------|
//	| 1   | no       | none     | -     | unmatched     |
//	| 2   | no       | new, all | -     | add           |
//	| 3   | yes      | all      | false | overwrite     |
//	| 4   | yes      | all      | true  | recanonical   |
//	| 5   | yes      | new,none | true  | match         |
//	| 6   | yes      | new,none | false | unmatched     |
func (s policyState) Row() int {
	if !s.Existing {
		if s.Mode == UpdateNone {
			return 1
		}
		return 2
	}
	if s.Mode == UpdateAll {
		if !s.Pass {
			return 3
		}
		return 4
	}
	if s.Pass {
		return 5
	}
	return 6
}

// Action returns the action for this state's row.
func (s policyState) Action() action {
	switch s.Row() {
	case 2:
		return actionAdd
	case 3:
		return actionOverwrite
	case 4:
		return actionRecanonical
	case 5:
		return actionMatch
	default:
		return actionUnmatched
	}
}

func (a action) String() string {
	switch a {
	case actionUnmatched:
		return "unmatched"
	case actionAdd:
		return "added"
	case actionOverwrite:
		return "updated"
	case actionRecanonical, actionMatch:
		return "matched"
	}
	return "unknown"
}
