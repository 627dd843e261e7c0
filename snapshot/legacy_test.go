package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalLegacySnapshotFile_Expressions(t *testing.T) {
	text := "// Jest Snapshot v1\n\n" +
		"exports[`render 1`] = `\n<div>\n  hi\n</div>\n`;\n\n" +
		"exports['concat 1'] = 'a' + \"b\";\n"
	got, err := EvalLegacySnapshotFile(text)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"render 1": "\n<div>\n  hi\n</div>\n",
		"concat 1": "ab",
	}, got)
}

func TestEvalLegacySnapshotFile_StoreAndExportsShareRecord(t *testing.T) {
	got, err := EvalLegacySnapshotFile("store['a 1'] = 'x'; exports['b 1'] = 'y';")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestEvalLegacySnapshotFile_Rejects(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"syntax", "exports['a 1'] = ;"},
		{"non-string", "exports['a 1'] = 42;"},
		{"unknown global", "require('fs');"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EvalLegacySnapshotFile(tt.text)
			assert.ErrorIs(t, err, ErrMalformedSnapshot)
		})
	}
}

func TestEvalLegacySnapshotFile_Timeout(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the evaluation timeout")
	}
	_, err := EvalLegacySnapshotFile("for (;;) {}")
	assert.ErrorIs(t, err, ErrMalformedSnapshot)
}
