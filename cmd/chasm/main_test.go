package main

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ndlib/chasm/model"
)

// chasm runs the tool against the repository in dir and returns its output.
func chasm(t *testing.T, dir string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	argv := append([]string{"--location", "file:" + filepath.Join(dir, "repo")}, args...)
	if err := run(argv, &out); err != nil {
		t.Fatalf("chasm %v: %s", args, err)
	}
	return out.String()
}

func TestCommandLine(t *testing.T) {
	dir, err := ioutil.TempDir("", "chasm")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	file := filepath.Join(dir, "hello.txt")
	ioutil.WriteFile(file, []byte("hello\n"), 0644)
	expected := model.Hash([]byte("hello\n")).String()

	out := chasm(t, dir, "hash", file)
	if !strings.HasPrefix(out, expected+" 6 ") {
		t.Errorf("hash: %q", out)
	}

	out = chasm(t, dir, "put", file)
	if out != expected+" "+file+"\n" {
		t.Errorf("put: %q", out)
	}
	out = chasm(t, dir, "cat", expected)
	if out != "hello\n" {
		t.Errorf("cat: %q", out)
	}

	tree := strings.TrimSpace(chasm(t, dir, "mktree", "hello.txt="+expected))
	out = chasm(t, dir, "tree", tree)
	if out != "blob "+expected+" hello.txt\n" {
		t.Errorf("tree: %q", out)
	}

	commit := strings.TrimSpace(chasm(t, dir, "commit", "--author", "tester", "-m", "first", tree))
	out = chasm(t, dir, "show", commit)
	if !strings.Contains(out, "tree "+tree) || !strings.HasSuffix(out, "\nfirst\n") {
		t.Errorf("show: %q", out)
	}

	chasm(t, dir, "ref", "project", "main", commit)
	out = chasm(t, dir, "ref", "project", "main")
	if out != commit+"\n" {
		t.Errorf("ref: %q", out)
	}
	out = chasm(t, dir, "tree", "project", "main")
	if out != "blob "+expected+" hello.txt\n" {
		t.Errorf("tree by ref: %q", out)
	}
	out = chasm(t, dir, "tree", "--commit", commit)
	if out != "blob "+expected+" hello.txt\n" {
		t.Errorf("tree by commit: %q", out)
	}

	second := strings.TrimSpace(chasm(t, dir, "commit", "-p", commit, "-m", "second", tree))
	var buf bytes.Buffer
	err = run([]string{"--location", "file:" + filepath.Join(dir, "repo"), "ref", "project", "main", second}, &buf)
	if err == nil {
		t.Errorf("moving a ref without --previous succeeded")
	}
	chasm(t, dir, "ref", "--previous", commit, "project", "main", second)
	chasm(t, dir, "ref", "project", "dev", commit)

	out = chasm(t, dir, "branches", "project")
	if out != commit+" dev\n"+second+" main\n" {
		t.Errorf("branches: %q", out)
	}
	out = chasm(t, dir, "names")
	if out != "project\n" {
		t.Errorf("names: %q", out)
	}
}

func TestUnknownCommand(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"frobnicate"}, &out); err == nil {
		t.Errorf("expected an error")
	}
}
