// Package snapshot implements golden-value snapshot testing.
//
// A test records the serialized form of a value; the first run writes it to
// a snapshot file next to the test (or, for inline assertions, into the
// test source as a literal argument) and later runs compare against it.
//
//	var snaps = snapshot.MustClientFromEnv()
//
//	func TestMain(m *testing.M) { os.Exit(snaps.Run(m)) }
//
//	func TestRender(t *testing.T) {
//		snaps.Expect(t, render()).ToMatch()
//		snaps.Expect(t, len(items)).ToMatchInline(`3`)
//	}
//
// SNAPSHOT_UPDATE selects what may be written: "none" only compares, "new"
// writes missing snapshots, "all" also overwrites mismatches and removes
// snapshots no test visited. Without it, CI runs use "none" and local runs
// "new".
//
// Snapshot files have the form
//
//	// Snapshot v1
//
//	store["TestRender 1"] = `...`;
//
// with keys in natural order.
package snapshot
