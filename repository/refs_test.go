package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/ndlib/chasm/model"
	"github.com/ndlib/chasm/store"
)

func cid(s string) model.CommitID {
	return model.CommitID(model.Hash([]byte(s)))
}

func TestCommitRefHappyPath(t *testing.T) {
	r := NewMemory(Options{})
	c1, c2 := cid("c1"), cid("c2")

	if err := r.WriteCommitRef(ctx, nil, "n", model.NewCommitRef("b", c1)); err != nil {
		t.Fatal(err)
	}
	if err := r.WriteCommitRef(ctx, &c1, "n", model.NewCommitRef("b", c2)); err != nil {
		t.Fatal(err)
	}
	ref, err := r.ReadCommitRef(ctx, "n", "b")
	if err != nil || ref == nil {
		t.Fatalf("ReadCommitRef = %v, %v", ref, err)
	}
	if *ref != model.NewCommitRef("b", c2) {
		t.Errorf("got ref %s", ref)
	}
}

func TestCommitRefConflicts(t *testing.T) {
	r := NewMemory(Options{})
	c1, c2, other := cid("c1"), cid("c2"), cid("unrelated")
	if err := r.WriteCommitRef(ctx, nil, "n", model.NewCommitRef("b", c1)); err != nil {
		t.Fatal(err)
	}

	var table = []struct {
		previous *model.CommitID
		branch   string
	}{
		{&other, "b"}, // mismatched previous
		{nil, "b"},    // previous omitted but the ref exists
		{&c1, "new"},  // previous given but the ref is absent
	}
	for _, tab := range table {
		err := r.WriteCommitRef(ctx, tab.previous, "n", model.NewCommitRef(tab.branch, c2))
		ce, ok := err.(*ConcurrencyError)
		if !ok {
			t.Errorf("previous %v branch %s: got %v", tab.previous, tab.branch, err)
			continue
		}
		if ce.Name != "n" || ce.Branch != tab.branch {
			t.Errorf("got %+v", ce)
		}
	}
	ref, _ := r.ReadCommitRef(ctx, "n", "b")
	if ref.CommitID != c1 {
		t.Errorf("ref moved to %s", ref.CommitID)
	}
	ref, _ = r.ReadCommitRef(ctx, "n", "new")
	if ref != nil {
		t.Errorf("ref created: %s", ref)
	}
}

func TestCommitRefIdempotent(t *testing.T) {
	refs := &countingVersioned{Versioned: store.NewMemory()}
	r := New(store.NewMemory(), refs, Options{})
	c1, other := cid("c1"), cid("unrelated")
	if err := r.WriteCommitRef(ctx, nil, "n", model.NewCommitRef("b", c1)); err != nil {
		t.Fatal(err)
	}
	// already at c1, so no previous is wrong enough to fail
	for _, previous := range []*model.CommitID{nil, &c1, &other} {
		err := r.WriteCommitRef(ctx, previous, "n", model.NewCommitRef("b", c1))
		if err != nil {
			t.Errorf("previous %v: %s", previous, err)
		}
	}
	if refs.saves != 1 {
		t.Errorf("got %d saves, expected 1", refs.saves)
	}
}

type countingVersioned struct {
	store.Versioned
	m     sync.Mutex
	saves int
}

func (c *countingVersioned) Save(ctx context.Context, key string, data []byte, prev store.Token) (store.Token, error) {
	c.m.Lock()
	c.saves++
	c.m.Unlock()
	return c.Versioned.Save(ctx, key, data, prev)
}

func TestCommitRefValidation(t *testing.T) {
	refs := &countingVersioned{Versioned: store.NewMemory()}
	r := New(store.NewMemory(), refs, Options{})
	var table = []struct {
		name, branch string
		id           model.CommitID
	}{
		{"", "b", cid("x")},
		{"  ", "b", cid("x")},
		{"n", "", cid("x")},
		{"n", "a\nb", cid("x")},
		{"n", "b", model.EmptyCommitID},
	}
	for _, tab := range table {
		err := r.WriteCommitRef(ctx, nil, tab.name, model.NewCommitRef(tab.branch, tab.id))
		if !IsValidation(err) {
			t.Errorf("(%q, %q, %s): got %v", tab.name, tab.branch, tab.id, err)
		}
	}
	if refs.saves != 0 {
		t.Errorf("validation failures reached the store")
	}
	if _, err := r.ReadCommitRef(ctx, "", "b"); !IsValidation(err) {
		t.Errorf("ReadCommitRef with empty name: %v", err)
	}
}

// racingVersioned lets another writer in between the load and the save.
type racingVersioned struct {
	store.Versioned
	once sync.Once
}

func (rv *racingVersioned) Save(ctx context.Context, key string, data []byte, prev store.Token) (store.Token, error) {
	rv.once.Do(func() {
		rv.Versioned.Save(ctx, key, []byte("sneaky"), prev)
	})
	return rv.Versioned.Save(ctx, key, data, prev)
}

func TestCommitRefLostRace(t *testing.T) {
	r := New(store.NewMemory(), &racingVersioned{Versioned: store.NewMemory()}, Options{})
	err := r.WriteCommitRef(ctx, nil, "n", model.NewCommitRef("b", cid("c1")))
	ce, ok := err.(*ConcurrencyError)
	if !ok {
		t.Fatalf("got %v", err)
	}
	if ce.Err != store.ErrPrecondition {
		t.Errorf("cause is %v", ce.Err)
	}
}

func TestCommitRefConcurrentWriters(t *testing.T) {
	const n = 10
	r := NewMemory(Options{})
	start := cid("start")
	if err := r.WriteCommitRef(ctx, nil, "n", model.NewCommitRef("b", start)); err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			next := cid(string(rune('a' + i)))
			errs[i] = r.WriteCommitRef(ctx, &start, "n", model.NewCommitRef("b", next))
			wg.Done()
		}(i)
	}
	wg.Wait()
	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else if !IsConcurrency(err) {
			t.Errorf("unexpected error %v", err)
		}
	}
	if winners != 1 {
		t.Errorf("got %d winners", winners)
	}
}

func TestBranchesAndNames(t *testing.T) {
	r := NewMemory(Options{})
	var refs = []struct{ name, branch string }{
		{"repo", "main"},
		{"repo", "dev"},
		{"repo", "feature/x"},
		{"other repo", "main"},
		{"a@b", "c@d"},
		{"repo2", "main"},
	}
	for i, ref := range refs {
		err := r.WriteCommitRef(ctx, nil, ref.name, model.NewCommitRef(ref.branch, cid(string(rune('a'+i)))))
		if err != nil {
			t.Fatal(err)
		}
	}

	branches, err := r.GetBranches(ctx, "repo")
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, b := range branches {
		got = append(got, b.Branch)
	}
	if !equalStrings(got, []string{"dev", "feature/x", "main"}) {
		t.Errorf("GetBranches(repo) = %v", got)
	}
	if branches[2].CommitID != cid("a") {
		t.Errorf("main points at %s", branches[2].CommitID)
	}

	branches, _ = r.GetBranches(ctx, "a@b")
	if len(branches) != 1 || branches[0].Branch != "c@d" {
		t.Errorf("GetBranches(a@b) = %v", branches)
	}
	branches, err = r.GetBranches(ctx, "nobody")
	if err != nil || len(branches) != 0 {
		t.Errorf("GetBranches(nobody) = %v, %v", branches, err)
	}

	names, err := r.GetNames(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !equalStrings(names, []string{"a@b", "other repo", "repo", "repo2"}) {
		t.Errorf("GetNames = %v", names)
	}
}

func TestCorruptRef(t *testing.T) {
	refs := store.NewMemory()
	r := New(store.NewMemory(), refs, Options{})
	refs.Save(ctx, refKey("n", "b"), []byte("junk"), store.NoToken)
	_, err := r.ReadCommitRef(ctx, "n", "b")
	if !IsCorruption(err) {
		t.Errorf("ReadCommitRef = %v", err)
	}
}

func equalStrings(a, b []string) bool {
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
