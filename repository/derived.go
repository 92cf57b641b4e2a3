package repository

import (
	"context"

	"github.com/pkg/errors"

	"github.com/ndlib/chasm/codec"
	"github.com/ndlib/chasm/model"
)

// primitive is what a repository must implement itself. Everything else
// is built on top of it by derived.
type primitive interface {
	ReadObject(ctx context.Context, id model.Sha1) (*model.Blob, error)
	ReadObjectBatch(ctx context.Context, ids []model.Sha1) (map[model.Sha1]*model.Blob, error)
	WriteObject(ctx context.Context, content []byte, meta *model.Metadata, force bool) (model.Sha1, error)
	WriteObjectBatch(ctx context.Context, items []ObjectWrite, force bool) ([]model.Sha1, error)
	ReadCommitRef(ctx context.Context, name, branch string) (*model.CommitRef, error)
}

// derived implements the tree and commit operations in terms of a
// primitive. It is embedded by every Repository implementation.
type derived struct {
	p     primitive
	codec codec.Serializer
}

// WriteTree stores the serialized tree and returns its id.
func (d derived) WriteTree(ctx context.Context, m model.TreeNodeMap) (model.TreeID, error) {
	data, err := d.codec.SerializeTree(m)
	if err != nil {
		return model.EmptyTreeID, err
	}
	id, err := d.p.WriteObject(ctx, data, nil, false)
	return model.TreeID(id), err
}

// ReadTree returns the tree id. It returns nil if id is the empty id or
// there is no such object.
func (d derived) ReadTree(ctx context.Context, id model.TreeID) (*model.TreeNodeMap, error) {
	if id.IsEmpty() {
		return nil, nil
	}
	blob, err := d.p.ReadObject(ctx, id.Sha1())
	if err != nil || blob == nil {
		return nil, err
	}
	return d.decodeTree(blob)
}

func (d derived) decodeTree(blob *model.Blob) (*model.TreeNodeMap, error) {
	m, err := d.codec.DeserializeTree(blob.Content)
	if err != nil {
		return nil, corrupt(blob.ID.String(), err)
	}
	return &m, nil
}

// ReadTreeForCommit returns the tree of commit id, or nil if either the
// commit or its tree is missing.
func (d derived) ReadTreeForCommit(ctx context.Context, id model.CommitID) (*model.TreeNodeMap, error) {
	c, err := d.ReadCommit(ctx, id)
	if err != nil || c == nil {
		return nil, err
	}
	return d.ReadTree(ctx, c.TreeID)
}

// ReadTreeForRef follows the ref (name, branch) to its commit and then to
// the commit's tree. It returns nil at the first missing link.
func (d derived) ReadTreeForRef(ctx context.Context, name, branch string) (*model.TreeNodeMap, error) {
	ref, err := d.p.ReadCommitRef(ctx, name, branch)
	if err != nil || ref == nil {
		return nil, err
	}
	return d.ReadTreeForCommit(ctx, ref.CommitID)
}

// WriteCommit stores the serialized commit and returns its id. The ID
// field of c is ignored.
func (d derived) WriteCommit(ctx context.Context, c model.Commit) (model.CommitID, error) {
	data, err := d.codec.SerializeCommit(c)
	if err != nil {
		return model.EmptyCommitID, err
	}
	id, err := d.p.WriteObject(ctx, data, nil, false)
	return model.CommitID(id), err
}

// ReadCommit returns commit id with its ID field filled in, or nil if
// there is no such commit.
func (d derived) ReadCommit(ctx context.Context, id model.CommitID) (*model.Commit, error) {
	if id.IsEmpty() {
		return nil, nil
	}
	blob, err := d.p.ReadObject(ctx, id.Sha1())
	if err != nil || blob == nil {
		return nil, err
	}
	return d.decodeCommit(blob)
}

func (d derived) decodeCommit(blob *model.Blob) (*model.Commit, error) {
	c, err := d.codec.DeserializeCommit(blob.Content)
	if err != nil {
		return nil, corrupt(blob.ID.String(), err)
	}
	c.ID = model.CommitID(blob.ID)
	return &c, nil
}

// ReadTrees reads many trees with one batch read. Missing trees are left
// out of the result.
func (d derived) ReadTrees(ctx context.Context, ids []model.TreeID) (map[model.TreeID]*model.TreeNodeMap, error) {
	shas := make([]model.Sha1, 0, len(ids))
	for _, id := range ids {
		if !id.IsEmpty() {
			shas = append(shas, id.Sha1())
		}
	}
	blobs, err := d.p.ReadObjectBatch(ctx, shas)
	if err != nil {
		return nil, err
	}
	result := make(map[model.TreeID]*model.TreeNodeMap, len(blobs))
	for id, blob := range blobs {
		m, err := d.decodeTree(blob)
		if err != nil {
			return nil, err
		}
		result[model.TreeID(id)] = m
	}
	return result, nil
}

// ReadCommits reads many commits with one batch read. Missing commits are
// left out of the result.
func (d derived) ReadCommits(ctx context.Context, ids []model.CommitID) (map[model.CommitID]*model.Commit, error) {
	shas := make([]model.Sha1, 0, len(ids))
	for _, id := range ids {
		if !id.IsEmpty() {
			shas = append(shas, id.Sha1())
		}
	}
	blobs, err := d.p.ReadObjectBatch(ctx, shas)
	if err != nil {
		return nil, err
	}
	result := make(map[model.CommitID]*model.Commit, len(blobs))
	for id, blob := range blobs {
		c, err := d.decodeCommit(blob)
		if err != nil {
			return nil, err
		}
		result[model.CommitID(id)] = c
	}
	return result, nil
}

// WriteTrees writes many trees with one batch write. The ids are in the
// same order as trees.
func (d derived) WriteTrees(ctx context.Context, trees []model.TreeNodeMap) ([]model.TreeID, error) {
	items := make([]ObjectWrite, len(trees))
	for i := range trees {
		data, err := d.codec.SerializeTree(trees[i])
		if err != nil {
			return nil, errors.Wrapf(err, "tree %d", i)
		}
		items[i].Content = data
	}
	shas, err := d.p.WriteObjectBatch(ctx, items, false)
	if err != nil {
		return nil, err
	}
	result := make([]model.TreeID, len(shas))
	for i := range shas {
		result[i] = model.TreeID(shas[i])
	}
	return result, nil
}

// WriteCommits writes many commits with one batch write. The ids are in
// the same order as commits.
func (d derived) WriteCommits(ctx context.Context, commits []model.Commit) ([]model.CommitID, error) {
	items := make([]ObjectWrite, len(commits))
	for i := range commits {
		data, err := d.codec.SerializeCommit(commits[i])
		if err != nil {
			return nil, errors.Wrapf(err, "commit %d", i)
		}
		items[i].Content = data
	}
	shas, err := d.p.WriteObjectBatch(ctx, items, false)
	if err != nil {
		return nil, err
	}
	result := make([]model.CommitID, len(shas))
	for i := range shas {
		result[i] = model.CommitID(shas[i])
	}
	return result, nil
}
