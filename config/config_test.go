package config

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/ndlib/chasm/model"
	"github.com/ndlib/chasm/repository"
)

func TestParse(t *testing.T) {
	cfg, err := Parse(`
codec = "msgpack"
promote = true

[[tier]]
kind = "memory"

[[tier]]
location = "ql:memory"
prefix = "x-"
`)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Codec != "msgpack" || !cfg.Promote {
		t.Errorf("got %+v", cfg)
	}
	// not in the file, so left at the default
	if cfg.Compression != "zstd" || cfg.Parallelism != 8 {
		t.Errorf("got %+v", cfg)
	}
	if len(cfg.Tiers) != 2 {
		t.Fatalf("got tiers %+v", cfg.Tiers)
	}
	if cfg.Tiers[1] != (Tier{Kind: "ql", Path: "memory", Prefix: "x-"}) {
		t.Errorf("location not expanded: %+v", cfg.Tiers[1])
	}
}

func TestValidate(t *testing.T) {
	var table = []string{
		`codec = "xml"
		[[tier]]
		kind = "memory"`,
		`compression = "rar"
		[[tier]]
		kind = "memory"`,
		`parallelism = -1
		[[tier]]
		kind = "memory"`,
		`codec = "cbor"`,
		`[[tier]]
		kind = "floppy"`,
		`[[tier]]
		kind = "file"`,
		`[[tier]]
		kind = "s3"`,
		`[[tier]]
		kind = "mysql"`,
		`[[tier]]
		kind = "file"
		location = "/tmp"`,
	}
	for _, text := range table {
		if _, err := Parse(text); err == nil {
			t.Errorf("expected error for %q", text)
		}
	}
	if err := Default().Validate(); err != nil {
		t.Errorf("Default() is not valid: %s", err)
	}
}

func TestLoadAndOpen(t *testing.T) {
	dir, err := ioutil.TempDir("", "chasm")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	name := filepath.Join(dir, "chasm.toml")
	text := `
compression = "lz4"

[[tier]]
kind = "memory"

[[tier]]
kind = "file"
path = "` + filepath.Join(dir, "store") + `"
`
	if err = ioutil.WriteFile(name, []byte(text), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(name)
	if err != nil {
		t.Fatal(err)
	}
	r, closer, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()
	h, ok := r.(*repository.Hybrid)
	if !ok {
		t.Fatalf("got %T, expected a hybrid", r)
	}
	if len(h.Tiers()) != 2 {
		t.Errorf("got %d tiers", len(h.Tiers()))
	}

	ctx := context.Background()
	id, err := r.WriteObject(ctx, []byte("configured"), nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if err = r.WriteCommitRef(ctx, nil, "n", model.NewCommitRef("b", model.CommitID(id))); err != nil {
		t.Fatal(err)
	}
	// the file tier writes below the configured path
	for _, sub := range []string{"objects", "refs"} {
		if _, err := os.Stat(filepath.Join(dir, "store", sub)); err != nil {
			t.Errorf("%s: %s", sub, err)
		}
	}
}

func TestOpenSingleTier(t *testing.T) {
	r, closer, err := Open(Default())
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()
	if _, ok := r.(*repository.Repo); !ok {
		t.Errorf("got %T, expected a plain repository", r)
	}
}

func TestOpenQL(t *testing.T) {
	cfg, err := Parse(`
[[tier]]
location = "ql:memory:configtest"
`)
	if err != nil {
		t.Fatal(err)
	}
	r, closer, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()
	id, err := r.WriteObject(context.Background(), []byte("in ql"), nil, false)
	if err != nil {
		t.Fatal(err)
	}
	blob, err := r.ReadObject(context.Background(), id)
	if err != nil || blob == nil {
		t.Errorf("ReadObject = %v, %v", blob, err)
	}
}
