package diff

import (
	"reflect"
	"strings"
	"testing"

	"github.com/sprite-ai/auditor/internal/review"
)

const sampleDiff = `diff --git a/hello.go b/hello.go
new file mode 100644
index 0000000..e69de29
--- /dev/null
+++ b/hello.go
@@ -0,0 +1,3 @@
+package main
+
+func main() {}
diff --git a/readme.md b/readme.md
index abc1234..def5678 100644
--- a/readme.md
+++ b/readme.md
@@ -1,3 +1,4 @@
 # Project

-Old description
+New description
+Added line
diff --git a/vendor/lib.go b/vendor/lib.go
index abc1234..def5678 100644
--- a/vendor/lib.go
+++ b/vendor/lib.go
@@ -1 +1 @@
-package old
+package lib
diff --git a/gone.go b/gone.go
deleted file mode 100644
index abc1234..0000000
--- a/gone.go
+++ /dev/null
@@ -1,2 +0,0 @@
-package gone
-
`

func TestParse(t *testing.T) {
	ds, err := Parse(sampleDiff)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(ds.Files) != 4 {
		t.Fatalf("expected 4 files, got %d", len(ds.Files))
	}

	f0 := ds.Files[0]
	if !f0.IsNew {
		t.Error("expected hello.go to be new")
	}
	if f0.Path() != "hello.go" {
		t.Errorf("expected path 'hello.go', got %q", f0.Path())
	}
	if f0.AddedLines != 3 {
		t.Errorf("expected 3 added lines, got %d", f0.AddedLines)
	}

	if p := ds.Files[3].Path(); p != "gone.go" {
		t.Errorf("expected deleted file path 'gone.go', got %q", p)
	}

	files, added, deleted := ds.Stats()
	if files != 4 || added != 6 || deleted != 4 {
		t.Errorf("stats: got files=%d added=%d deleted=%d", files, added, deleted)
	}
}

func TestParseEmpty(t *testing.T) {
	ds, err := Parse("")
	if err != nil {
		t.Fatalf("Parse empty failed: %v", err)
	}
	if len(ds.Files) != 0 {
		t.Errorf("expected 0 files, got %d", len(ds.Files))
	}
}

func TestLineDiffs(t *testing.T) {
	ds, err := Parse(sampleDiff)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	d := ds.LineDiffs(func(path string) bool { return strings.HasPrefix(path, "vendor/") })

	want := map[string][]review.LineDiff{
		"hello.go":  {{New: 1}, {New: 2}, {New: 3}},
		"readme.md": {{Old: 3}, {New: 3}, {New: 4}},
		"gone.go":   {{Old: 1}, {Old: 2}},
	}
	if !reflect.DeepEqual(d.Files, want) {
		t.Errorf("LineDiffs mismatch:\n got %+v\nwant %+v", d.Files, want)
	}
	if d.Lines() != 8 {
		t.Errorf("expected 8 entries, got %d", d.Lines())
	}
}

func TestLineDiffsMultipleFragments(t *testing.T) {
	raw := `diff --git a/a.go b/a.go
index abc1234..def5678 100644
--- a/a.go
+++ b/a.go
@@ -2,3 +2,3 @@ package a
 x
-y
+Y
 z
@@ -10,2 +10,3 @@ func f() {
 p
+q
 r
`
	ds, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	got := ds.LineDiffs(nil).Files["a.go"]
	want := []review.LineDiff{{Old: 3}, {New: 3}, {New: 11}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}
