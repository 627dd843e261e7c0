package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWritePolicy_AllRows(t *testing.T) {
	tests := []struct {
		name   string
		state  policyState
		row    int
		action action
	}{
		{"#1 missing none", policyState{Mode: UpdateNone}, 1, actionUnmatched},
		{"#1 missing none ignores pass", policyState{Mode: UpdateNone, Pass: true}, 1, actionUnmatched},
		{"#2 missing new", policyState{Mode: UpdateNew}, 2, actionAdd},
		{"#2 missing all", policyState{Mode: UpdateAll}, 2, actionAdd},
		{"#3 existing all fail", policyState{Existing: true, Mode: UpdateAll}, 3, actionOverwrite},
		{"#4 existing all pass", policyState{Existing: true, Mode: UpdateAll, Pass: true}, 4, actionRecanonical},
		{"#5 existing new pass", policyState{Existing: true, Mode: UpdateNew, Pass: true}, 5, actionMatch},
		{"#5 existing none pass", policyState{Existing: true, Mode: UpdateNone, Pass: true}, 5, actionMatch},
		{"#6 existing new fail", policyState{Existing: true, Mode: UpdateNew}, 6, actionUnmatched},
		{"#6 existing none fail", policyState{Existing: true, Mode: UpdateNone}, 6, actionUnmatched},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.row, tt.state.Row())
			assert.Equal(t, tt.action, tt.state.Action())
		})
	}
}

func TestAction_String(t *testing.T) {
	assert.Equal(t, "unmatched", actionUnmatched.String())
	assert.Equal(t, "added", actionAdd.String())
	assert.Equal(t, "updated", actionOverwrite.String())
	assert.Equal(t, "matched", actionRecanonical.String())
	assert.Equal(t, "matched", actionMatch.String())
}
