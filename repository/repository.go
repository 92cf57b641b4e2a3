package repository

import (
	"context"

	"github.com/ndlib/chasm/codec"
	"github.com/ndlib/chasm/compression"
	"github.com/ndlib/chasm/model"
)

// Repository is the full set of operations on an object store.
type Repository interface {
	// Exists reports whether there is an object with the given id.
	Exists(ctx context.Context, id model.Sha1) (bool, error)

	// ReadObject returns the object with the given id, or nil if there is
	// none. The returned blob may be shared and must not be modified.
	ReadObject(ctx context.Context, id model.Sha1) (*model.Blob, error)

	// ReadObjectBatch returns the objects which exist among ids. Absent
	// ids are missing from the map.
	ReadObjectBatch(ctx context.Context, ids []model.Sha1) (map[model.Sha1]*model.Blob, error)

	// WriteObject stores content and returns its id. If the object already
	// exists nothing is written, unless force is set.
	WriteObject(ctx context.Context, content []byte, meta *model.Metadata, force bool) (model.Sha1, error)

	// WriteObjectBatch is WriteObject for many objects. The ids are
	// returned in the same order as items.
	WriteObjectBatch(ctx context.Context, items []ObjectWrite, force bool) ([]model.Sha1, error)

	WriteTree(ctx context.Context, m model.TreeNodeMap) (model.TreeID, error)
	ReadTree(ctx context.Context, id model.TreeID) (*model.TreeNodeMap, error)
	ReadTreeForCommit(ctx context.Context, id model.CommitID) (*model.TreeNodeMap, error)
	ReadTreeForRef(ctx context.Context, name, branch string) (*model.TreeNodeMap, error)
	ReadTrees(ctx context.Context, ids []model.TreeID) (map[model.TreeID]*model.TreeNodeMap, error)
	WriteTrees(ctx context.Context, trees []model.TreeNodeMap) ([]model.TreeID, error)

	WriteCommit(ctx context.Context, c model.Commit) (model.CommitID, error)
	ReadCommit(ctx context.Context, id model.CommitID) (*model.Commit, error)
	ReadCommits(ctx context.Context, ids []model.CommitID) (map[model.CommitID]*model.Commit, error)
	WriteCommits(ctx context.Context, commits []model.Commit) ([]model.CommitID, error)

	// ReadCommitRef returns the ref (name, branch), or nil if it has
	// never been written.
	ReadCommitRef(ctx context.Context, name, branch string) (*model.CommitRef, error)

	// GetBranches returns every ref with the given name, sorted by branch.
	GetBranches(ctx context.Context, name string) ([]model.CommitRef, error)

	// GetNames returns the names having at least one ref, sorted.
	GetNames(ctx context.Context) ([]string, error)

	// WriteCommitRef points (name, ref.Branch) at ref.CommitID, provided
	// it currently points at previous. A nil previous means the ref must
	// not exist yet. If the ref already points at ref.CommitID this is a
	// no-op whatever previous is. A failed precondition is returned as a
	// *ConcurrencyError.
	WriteCommitRef(ctx context.Context, previous *model.CommitID, name string, ref model.CommitRef) error
}

// ObjectWrite is one item in a WriteObjectBatch.
type ObjectWrite struct {
	Content  []byte
	Metadata *model.Metadata
}

// DefaultParallelism is the number of concurrent driver calls a batch
// operation makes when Options does not say.
const DefaultParallelism = 8

// Options configures a Repo. The zero value is usable.
type Options struct {
	// Codec serializes trees, commits and ref values. Defaults to CBOR.
	Codec codec.Serializer

	// Compression is applied to object bodies when it makes them smaller.
	Compression compression.Tag

	// Parallelism bounds the driver calls made at once by batch
	// operations. Defaults to DefaultParallelism.
	Parallelism int
}

func (o Options) withDefaults() Options {
	if o.Codec == nil {
		o.Codec = codec.CBOR{}
	}
	if o.Parallelism <= 0 {
		o.Parallelism = DefaultParallelism
	}
	return o
}
