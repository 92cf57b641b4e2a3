package repository

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/ndlib/chasm/model"
	"github.com/ndlib/chasm/store"
)

// Commit refs are stored in the versioned store under the key
// "<name>@<branch>", with both parts query escaped so neither contains an
// '@'. The value is the codec's encoding of the commit id, uncompressed.

func refKey(name, branch string) string {
	return url.QueryEscape(name) + "@" + url.QueryEscape(branch)
}

// splitRefKey reverses refKey. ok is false for keys not made by refKey.
func splitRefKey(key string) (name, branch string, ok bool) {
	i := strings.IndexByte(key, '@')
	if i < 0 {
		return "", "", false
	}
	name, err := url.QueryUnescape(key[:i])
	if err != nil {
		return "", "", false
	}
	branch, err = url.QueryUnescape(key[i+1:])
	if err != nil {
		return "", "", false
	}
	return name, branch, true
}

// loadRef returns the commit id stored for key and its version.
func (r *Repo) loadRef(ctx context.Context, key string) (model.CommitID, store.Token, bool, error) {
	data, token, ok, err := r.refs.Load(ctx, key)
	if err != nil {
		return model.EmptyCommitID, store.NoToken, false, errors.Wrapf(err, "read commit ref %s", key)
	}
	if !ok {
		return model.EmptyCommitID, store.NoToken, false, nil
	}
	id, err := r.codec.DeserializeCommitID(data)
	if err != nil {
		return model.EmptyCommitID, store.NoToken, false, corrupt("ref "+key, err)
	}
	return id, token, true, nil
}

// ReadCommitRef returns the ref (name, branch), or nil if there is none.
func (r *Repo) ReadCommitRef(ctx context.Context, name, branch string) (*model.CommitRef, error) {
	if err := validateRef(name, branch); err != nil {
		return nil, err
	}
	id, _, ok, err := r.loadRef(ctx, refKey(name, branch))
	if err != nil || !ok {
		return nil, err
	}
	ref := model.NewCommitRef(branch, id)
	return &ref, nil
}

// GetBranches returns all the refs having the given name, sorted by
// branch.
func (r *Repo) GetBranches(ctx context.Context, name string) ([]model.CommitRef, error) {
	if err := model.ValidateName("name", name); err != nil {
		return nil, validation(err)
	}
	keys, err := r.refs.ListPrefix(ctx, url.QueryEscape(name)+"@")
	if err != nil {
		return nil, errors.Wrapf(err, "list branches %s", name)
	}
	var m sync.Mutex
	var result []model.CommitRef
	err = r.gate.ForEach(ctx, len(keys), func(i int) error {
		n, branch, ok := splitRefKey(keys[i])
		if !ok || n != name {
			return nil
		}
		id, _, ok, err := r.loadRef(ctx, keys[i])
		if err != nil || !ok {
			// a ref deleted since the listing is skipped
			return err
		}
		m.Lock()
		result = append(result, model.NewCommitRef(branch, id))
		m.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Branch < result[j].Branch
	})
	return result, nil
}

// GetNames returns every name having at least one ref, sorted.
func (r *Repo) GetNames(ctx context.Context) ([]string, error) {
	keys, err := r.refs.ListPrefix(ctx, "")
	if err != nil {
		return nil, errors.Wrap(err, "list names")
	}
	seen := make(map[string]struct{})
	var result []string
	for _, key := range keys {
		name, _, ok := splitRefKey(key)
		if !ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		result = append(result, name)
	}
	sort.Strings(result)
	return result, nil
}

// WriteCommitRef moves the ref (name, ref.Branch) from previous to
// ref.CommitID. See Repository for the rules. The only write is a
// conditional save on the version read at the start, so a concurrent
// writer, in this process or another, causes a *ConcurrencyError rather
// than a lost update.
func (r *Repo) WriteCommitRef(ctx context.Context, previous *model.CommitID, name string, ref model.CommitRef) error {
	if err := validateRef(name, ref.Branch); err != nil {
		return err
	}
	if ref.CommitID.IsEmpty() {
		return &ValidationError{Field: "commit id", Reason: "empty"}
	}
	key := refKey(name, ref.Branch)
	conflict := func(err error) error {
		return &ConcurrencyError{Name: name, Branch: ref.Branch, Err: err}
	}

	existing, token, ok, err := r.loadRef(ctx, key)
	if err != nil {
		return err
	}
	switch {
	case ok && existing == ref.CommitID:
		return nil
	case ok && previous == nil:
		return conflict(errors.Errorf("ref exists at %s", existing))
	case ok && existing != *previous:
		return conflict(errors.Errorf("ref is at %s, expected %s", existing, *previous))
	case !ok && previous != nil:
		return conflict(errors.Errorf("ref does not exist, expected %s", *previous))
	}

	data, err := r.codec.SerializeCommitID(ref.CommitID)
	if err != nil {
		return err
	}
	_, err = r.refs.Save(ctx, key, data, token)
	if err == store.ErrPrecondition {
		return conflict(err)
	}
	return errors.Wrapf(err, "write commit ref %s", key)
}
