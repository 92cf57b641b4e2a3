package store

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestShardDir(t *testing.T) {
	var table = []struct{ input, output string }{
		{"x", "x/"},
		{"xy", "xy/"},
		{"xyz", "xy/z/"},
		{"da39", "da/39/"},
		{"da39a3ee5e6b4b0d3255bfef95601890afd80709", "da/39/"},
		{"name@main", "na/me/"},
	}
	for _, s := range table {
		result := shardDir(s.input)
		if result != s.output {
			t.Errorf("shardDir(%q) = %s, expected %s", s.input, result, s.output)
		}
	}
}

func TestListPrefix(t *testing.T) {
	var files = []string{
		"0b/",
		"0b/ee/",
		"0b/ee/0bee89b07a248e27c83fc3d5951213c1",
		"0b/ee/0beec7b5ea3f0fdbc95d0dd47f3c5bc275da8a33",
		"0b/ef/",
		"0b/ef/0bef0000",
		"da/",
		"da/39/",
		"da/39/da39a3ee5e6b4b0d3255bfef95601890afd80709",
		"do/",
		"do/cs/",
		"do/cs/docs@main",
		"do/cs/docs@release",
		"do/cs/docsite@main",
	}
	var table = []struct {
		prefix   string
		expected []string
	}{
		{"", []string{
			"0bee89b07a248e27c83fc3d5951213c1",
			"0beec7b5ea3f0fdbc95d0dd47f3c5bc275da8a33",
			"0bef0000",
			"da39a3ee5e6b4b0d3255bfef95601890afd80709",
			"docs@main",
			"docs@release",
			"docsite@main",
		}},
		{"0", []string{
			"0bee89b07a248e27c83fc3d5951213c1",
			"0beec7b5ea3f0fdbc95d0dd47f3c5bc275da8a33",
			"0bef0000",
		}},
		{"0bee", []string{
			"0bee89b07a248e27c83fc3d5951213c1",
			"0beec7b5ea3f0fdbc95d0dd47f3c5bc275da8a33",
		}},
		{"0beec", []string{
			"0beec7b5ea3f0fdbc95d0dd47f3c5bc275da8a33",
		}},
		{"docs@", []string{
			"docs@main",
			"docs@release",
		}},
		{"zz", nil},
	}
	dir := makeTmpTree(files)
	defer os.RemoveAll(dir)
	s := &FileSystem{root: dir}
	for _, tab := range table {
		result, err := s.ListPrefix(context.Background(), tab.prefix)
		if err != nil {
			t.Errorf("ListPrefix(%q): %s", tab.prefix, err)
		} else if !equal(tab.expected, result) {
			t.Errorf("ListPrefix(%q) = %v, expected %v", tab.prefix, result, tab.expected)
		}
	}
}

func TestIsKeyValid(t *testing.T) {
	var table = []struct {
		key string
		err error
	}{
		{"abc", nil},
		{"name%40x@main", nil},
		{"", ErrKeyEmpty},
		{"a/b", ErrKeyContainsSlash},
		{"a b", ErrKeyContainsWhiteSpace},
		{"a\x01b", ErrKeyContainsControlChar},
		{"a\xffb", ErrKeyContainsNonUnicode},
	}
	for _, tab := range table {
		err := isKeyValid(tab.key)
		if err != tab.err {
			t.Errorf("isKeyValid(%q) = %v, expected %v", tab.key, err, tab.err)
		}
	}
}

func TestFileVersionedFormat(t *testing.T) {
	dir, err := ioutil.TempDir("", "chasm")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	s := NewFileSystem(dir)
	ctx := context.Background()

	tok, err := s.Save(ctx, "main", []byte("a\nb"), NoToken)
	if err != nil {
		t.Fatal(err)
	}
	if tok != "1" {
		t.Errorf("first generation is %q", tok)
	}
	raw, err := ioutil.ReadFile(s.keypath("main"))
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "1\na\nb" {
		t.Errorf("file contents are %q", raw)
	}

	// a value without a generation line is reported, not guessed at
	ioutil.WriteFile(s.keypath("main"), []byte("garbage"), 0664)
	_, _, _, err = s.Load(ctx, "main")
	if err == nil {
		t.Errorf("expected error loading a malformed file")
	}
}

func TestFileLockContention(t *testing.T) {
	dir, err := ioutil.TempDir("", "chasm")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	s := NewFileSystem(dir)

	unlock, err := s.lock(context.Background(), "main")
	if err != nil {
		t.Fatal(err)
	}
	// the lock is held so a save with a cancelled context gives up
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Save(ctx, "main", []byte("x"), NoToken)
	if err != context.Canceled {
		t.Errorf("Save while locked returned %v", err)
	}
	unlock()
	_, err = s.Save(context.Background(), "main", []byte("x"), NoToken)
	if err != nil {
		t.Errorf("Save after unlock returned %v", err)
	}
}

// makeTmpTree creates the given entries under a new temporary directory.
// Names ending in a slash are directories. The caller removes the tree.
func makeTmpTree(files []string) string {
	root, _ := ioutil.TempDir("", "chasm")
	for _, name := range files {
		p := filepath.Join(root, name)
		if strings.HasSuffix(name, "/") {
			os.Mkdir(p, 0777)
			continue
		}
		ioutil.WriteFile(p, []byte(name), 0666)
	}
	return root
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
