package repository

import (
	"context"
	"sync"

	"github.com/golang/groupcache/singleflight"
	"github.com/pkg/errors"

	"github.com/ndlib/chasm/compression"
	"github.com/ndlib/chasm/model"
	"github.com/ndlib/chasm/store"
	"github.com/ndlib/chasm/util"
)

// Repo is a Repository over a single pair of drivers. Objects are kept in
// a store.Store keyed by their hex id. Commit refs are kept in a
// store.Versioned.
//
// A Repo is safe for concurrent use, and any number of processes may share
// the same drivers.
type Repo struct {
	derived

	objects     store.Store
	refs        store.Versioned
	compression compression.Tag
	gate        util.Gate
	reads       singleflight.Group // keyed by object id
}

var _ Repository = &Repo{}

// New returns a repository keeping objects in objects and commit refs in
// refs.
func New(objects store.Store, refs store.Versioned, opts Options) *Repo {
	opts = opts.withDefaults()
	r := &Repo{
		objects:     objects,
		refs:        refs,
		compression: opts.Compression,
		gate:        util.NewGate(opts.Parallelism),
	}
	r.derived = derived{p: r, codec: opts.Codec}
	return r
}

// NewMemory returns a repository which keeps everything in memory.
func NewMemory(opts Options) *Repo {
	return New(store.NewMemory(), store.NewMemory(), opts)
}

func objectKey(id model.Sha1) string {
	return id.String()
}

// Exists reports whether the object id is in the store.
func (r *Repo) Exists(ctx context.Context, id model.Sha1) (bool, error) {
	ok, err := r.objects.Exists(ctx, objectKey(id))
	return ok, errors.Wrapf(err, "exists %s", id)
}

// ReadObject returns the object id, or nil if it is not in the store.
// Concurrent reads of the same id share one driver call.
func (r *Repo) ReadObject(ctx context.Context, id model.Sha1) (*model.Blob, error) {
	var v interface{}
	var err error
	for i := 0; i < sharedRetries; i++ {
		v, err = r.reads.Do(objectKey(id), func() (interface{}, error) {
			return r.readObject(ctx, id)
		})
		if !store.CanceledByOther(ctx, err) {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	return v.(*model.Blob), nil
}

// sharedRetries bounds how often a reader starts over after the caller
// running a shared read was cancelled.
const sharedRetries = 3

func (r *Repo) readObject(ctx context.Context, id model.Sha1) (*model.Blob, error) {
	data, ok, err := r.objects.Get(ctx, objectKey(id))
	if err != nil {
		return nil, errors.Wrapf(err, "read object %s", id)
	}
	if !ok {
		return nil, nil
	}
	return unseal(id, data)
}

// ReadObjectBatch reads the given objects in parallel. Duplicate ids are
// read once.
func (r *Repo) ReadObjectBatch(ctx context.Context, ids []model.Sha1) (map[model.Sha1]*model.Blob, error) {
	ids = uniqueIDs(ids)
	var m sync.Mutex
	result := make(map[model.Sha1]*model.Blob, len(ids))
	err := r.gate.ForEach(ctx, len(ids), func(i int) error {
		blob, err := r.ReadObject(ctx, ids[i])
		if err != nil || blob == nil {
			return err
		}
		m.Lock()
		result[ids[i]] = blob
		m.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// WriteObject stores content under its hash. If the object is already
// there and force is false, nothing is written. Losing a race with another
// writer of the same content is not an error, since both wrote the same
// bytes.
func (r *Repo) WriteObject(ctx context.Context, content []byte, meta *model.Metadata, force bool) (model.Sha1, error) {
	id := model.Hash(content)
	if len(content) > compression.MaxDecodedSize {
		return id, &ValidationError{Field: "content", Reason: "larger than the maximum object size"}
	}
	key := objectKey(id)
	if !force {
		ok, err := r.objects.Exists(ctx, key)
		if err != nil {
			return id, errors.Wrapf(err, "write object %s", id)
		}
		if ok {
			return id, nil
		}
	}
	data, err := seal(content, meta, r.compression)
	if err != nil {
		return id, errors.Wrapf(err, "write object %s", id)
	}
	err = r.objects.Put(ctx, key, data, force)
	if err == store.ErrKeyExists {
		err = nil
	}
	return id, errors.Wrapf(err, "write object %s", id)
}

// WriteObjectBatch writes the items in parallel.
func (r *Repo) WriteObjectBatch(ctx context.Context, items []ObjectWrite, force bool) ([]model.Sha1, error) {
	result := make([]model.Sha1, len(items))
	err := r.gate.ForEach(ctx, len(items), func(i int) error {
		var err error
		result[i], err = r.WriteObject(ctx, items[i].Content, items[i].Metadata, force)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// uniqueIDs returns ids with duplicates removed, keeping the first of each.
func uniqueIDs(ids []model.Sha1) []model.Sha1 {
	seen := make(map[model.Sha1]struct{}, len(ids))
	var result []model.Sha1
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
