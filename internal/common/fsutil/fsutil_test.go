package fsutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func fakeHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	}
	return home
}

func TestExpandHome(t *testing.T) {
	home := fakeHome(t)
	cases := map[string]string{
		"":          "",
		"/tmp":      "/tmp",
		"~":         home,
		"~/sub/dir": filepath.Join(home, "sub/dir"),
	}
	for in, want := range cases {
		got, err := ExpandHome(in)
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		if got != want {
			t.Fatalf("%q: expected %q, got %q", in, want, got)
		}
	}
}

func TestPrepareFile(t *testing.T) {
	home := fakeHome(t)
	p, err := PrepareFile("~/.chatd/nested/chatd.db")
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if p != filepath.Join(home, ".chatd/nested/chatd.db") {
		t.Fatalf("unexpected path %q", p)
	}
	if fi, err := os.Stat(filepath.Dir(p)); err != nil || !fi.IsDir() {
		t.Fatalf("parent not created: %v", err)
	}
	if PathExists(p) {
		t.Fatalf("file itself must not be created")
	}
	if got, _ := PrepareFile(":memory:"); got != ":memory:" {
		t.Fatalf("memory path changed: %q", got)
	}
}

func TestPathExists(t *testing.T) {
	d := t.TempDir()
	if !PathExists(d) {
		t.Fatalf("temp dir should exist")
	}
	if PathExists(filepath.Join(d, "nope")) {
		t.Fatalf("missing path reported as existing")
	}
}
