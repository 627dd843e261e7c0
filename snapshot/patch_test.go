package snapshot

import (
	"go/parser"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func patch(t *testing.T, p *Patcher, src string, edits ...InlineEdit) string {
	t.Helper()
	out, err := p.Patch(src, edits)
	require.NoError(t, err)
	return out
}

func edit(line int, snapshot string) InlineEdit {
	return InlineEdit{CallSite: CallSite{File: "x_test.go", Line: line}, Snapshot: snapshot}
}

func TestPatch_CustomCallName(t *testing.T) {
	p := NewPatcher(map[string]CallShape{"toMatchInlineSnapshot": ShapeLiteral})
	src := "it('works', () => {\n  const x = 'abc';\n  expect(x).toMatchInlineSnapshot();\n});\n"
	out := patch(t, p, src, InlineEdit{CallSite: CallSite{Line: 3, Column: 3}, Snapshot: "abc"})
	assert.Equal(t, "it('works', () => {\n  const x = 'abc';\n  expect(x).toMatchInlineSnapshot(`abc`);\n});\n", out)
}

func TestPatch_MultiLineIndent(t *testing.T) {
	p := NewPatcher(map[string]CallShape{"foo": ShapeLiteral})

	out := patch(t, p, "func f() {\n    foo(`old`)\n}\n", edit(2, "a\nb"))
	assert.Equal(t, "func f() {\n    foo(`\n      a\n      b\n    `)\n}\n", out)

	out = patch(t, p, "func f() {\n\t\tfoo()\n}\n", edit(2, "\na\n\nb\n"))
	assert.Equal(t, "func f() {\n\t\tfoo(`\n\t\t\ta\n\n\t\t\tb\n\t\t`)\n}\n", out)
}

func TestPatch_LiteralForm(t *testing.T) {
	p := NewPatcher(nil)
	tests := []struct {
		name string
		src  string
		snap string
		want string
	}{
		{"insert", "\tsnaps.Expect(t, v).ToMatchInline()\n", "42", "\tsnaps.Expect(t, v).ToMatchInline(`42`)\n"},
		{"replace raw", "\tsnaps.Expect(t, v).ToMatchInline(`41`)\n", "42", "\tsnaps.Expect(t, v).ToMatchInline(`42`)\n"},
		{"replace quoted", "\tsnaps.Expect(t, v).ToMatchInline(\"a\\\"b\")\n", "42", "\tsnaps.Expect(t, v).ToMatchInline(`42`)\n"},
		{"backtick falls back to quotes", "x.ToMatchInline()\n", "a`b", "x.ToMatchInline(\"a`b\")\n"},
		{"carriage return falls back to quotes", "x.ToMatchInline()\n", "a\r\nb", "x.ToMatchInline(\"a\\r\\nb\")\n"},
		{"error form", "x.ToErrorMatchingInline()\n", "boom", "x.ToErrorMatchingInline(`boom`)\n"},
		{"invalid utf-8 falls back to quotes", "x.ToMatchInline()\n", "\xff\xfe", "x.ToMatchInline(\"\\xff\\xfe\")\n"},
		{"nul falls back to quotes", "x.ToMatchInline()\n", "a\x00b", "x.ToMatchInline(\"a\\x00b\")\n"},
		{"bom falls back to quotes", "x.ToMatchInline()\n", "\ufeffa", "x.ToMatchInline(\"\\ufeffa\")\n"},
		{"escape char falls back to quotes", "x.ToMatchInline()\n", "a\x1bb", "x.ToMatchInline(\"a\\x1bb\")\n"},
		{"multi-line with nul", "x.ToMatchInline()\n", "\nx\n\x00\n", "x.ToMatchInline(\"x\\n\\x00\")\n"},
		{"tab stays raw", "x.ToMatchInline()\n", "a\tb", "x.ToMatchInline(`a\tb`)\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, patch(t, p, tt.src, edit(1, tt.snap)))
		})
	}
}

func TestPatch_CompositeFirstArgument(t *testing.T) {
	p := NewPatcher(map[string]CallShape{"MatchValue": ShapeLiteral})
	out := patch(t, p, "x.MatchValue(map[string]int{\"a\": 1})\n", edit(1, "v"))
	assert.Equal(t, "x.MatchValue(map[string]int{\"a\": 1}, `v`)\n", out)
}

func TestNewLiteral_AlwaysValidGo(t *testing.T) {
	for _, snap := range []string{
		"plain", "a\nb", "\xff\xfe", "a\x00b", "\ufeffhead", "bell\a", "del\x7f",
		"tick`s", "crlf\r\nline", "\n  indented\n\tmixed\n", "ünïcode ✓",
	} {
		lit := newLiteral(snap, "\t")
		_, err := parser.ParseExpr("f(" + lit + ")")
		assert.NoError(t, err, "%q -> %s", snap, lit)
	}
	assert.False(t, rawSafe("a\x00b"))
	assert.True(t, rawSafe("a\tb\nc"))
}

func TestPatch_ObjectForm(t *testing.T) {
	p := NewPatcher(nil)

	out := patch(t, p, `x.ToMatchInlineProps(Props{"ID": "value > 0"})`, edit(1, "v"))
	assert.Equal(t, `x.ToMatchInlineProps(Props{"ID": "value > 0"}, `+"`v`)", out)

	out = patch(t, p, `x.ToMatchInlineProps(snapshot.Props{"ID": "value > 0"}, `+"`old`)", edit(1, "new"))
	assert.Equal(t, `x.ToMatchInlineProps(snapshot.Props{"ID": "value > 0"}, `+"`new`)", out)

	_, err := p.Patch("x.ToMatchInlineProps()", []InlineEdit{edit(1, "v")})
	assert.ErrorIs(t, err, ErrCallSiteUnresolved)
}

func TestPatch_MessageForm(t *testing.T) {
	p := NewPatcher(nil)

	assert.Equal(t, "x.ToMatchInlineWithMessage(\"\", `v`)",
		patch(t, p, "x.ToMatchInlineWithMessage()", edit(1, "v")))
	assert.Equal(t, "x.ToMatchInlineWithMessage(\"why\", `v`)",
		patch(t, p, "x.ToMatchInlineWithMessage(\"why\")", edit(1, "v")))
	assert.Equal(t, "x.ToMatchInlineWithMessage(\"why\", `new`)",
		patch(t, p, "x.ToMatchInlineWithMessage(\"why\", `old`)", edit(1, "new")))
}

func TestPatch_SeveralEditsOneFile(t *testing.T) {
	p := NewPatcher(nil)
	src := "a.ToMatchInline()\nb.ToMatchInline(`x`)\n"
	out := patch(t, p, src, edit(2, "two"), edit(1, "one"))
	assert.Equal(t, "a.ToMatchInline(`one`)\nb.ToMatchInline(`two`)\n", out)
}

func TestPatch_DuplicateEditsCollapse(t *testing.T) {
	p := NewPatcher(nil)
	out := patch(t, p, "a.ToMatchInline()\n", edit(1, "same"), edit(1, "same"))
	assert.Equal(t, "a.ToMatchInline(`same`)\n", out)
}

func TestPatch_ConflictingEdits(t *testing.T) {
	p := NewPatcher(nil)
	_, err := p.Patch("a.ToMatchInline()\n", []InlineEdit{edit(1, "one"), edit(1, "two")})
	assert.ErrorContains(t, err, "conflicting")
}

func TestPatch_Unresolved(t *testing.T) {
	p := NewPatcher(nil)
	_, err := p.Patch("no call here\n", []InlineEdit{edit(1, "v")})
	assert.ErrorIs(t, err, ErrCallSiteUnresolved)

	_, err = p.Patch("one line\n", []InlineEdit{edit(9, "v")})
	assert.ErrorIs(t, err, ErrCallSiteUnresolved)
}

func TestPatcher_ApplySkipsUnchangedFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	env := &countingEnv{FSEnvironment: NewFSEnvironment(fs, "")}
	require.NoError(t, afero.WriteFile(fs, "/a_test.go", []byte("x.ToMatchInline(`v`)\n"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/b_test.go", []byte("x.ToMatchInline()\n"), 0644))

	err := NewPatcher(nil).Apply(env, []InlineEdit{
		{CallSite: CallSite{File: "/a_test.go", Line: 1}, Snapshot: "v"},
		{CallSite: CallSite{File: "/b_test.go", Line: 1}, Snapshot: "w"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, env.saves)

	data, err := afero.ReadFile(fs, "/b_test.go")
	require.NoError(t, err)
	assert.Equal(t, "x.ToMatchInline(`w`)\n", string(data))

	err = NewPatcher(nil).Apply(env, []InlineEdit{{CallSite: CallSite{File: "/missing_test.go", Line: 1}, Snapshot: "v"}})
	assert.ErrorIs(t, err, ErrCallSiteUnresolved)
}

func TestPositionToOffset(t *testing.T) {
	src := "ab\ncd\n"
	off, ok := positionToOffset(src, 2, 0)
	require.True(t, ok)
	assert.Equal(t, 3, off)

	off, ok = positionToOffset(src, 2, 2)
	require.True(t, ok)
	assert.Equal(t, 4, off)

	off, ok = positionToOffset(src, 2, 99)
	require.True(t, ok)
	assert.Equal(t, 5, off)

	_, ok = positionToOffset(src, 0, 0)
	assert.False(t, ok)
}
