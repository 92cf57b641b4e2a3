package repository

import (
	"context"
	"fmt"

	"github.com/facebookgo/stats"
	"github.com/getsentry/raven-go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/ndlib/chasm/codec"
	"github.com/ndlib/chasm/model"
	"github.com/ndlib/chasm/util"
)

// Hybrid chains several repositories, nearest (fastest) first and furthest
// (most durable) last.
//
// Object reads go to each tier in turn and return the first hit. Object
// writes go to every tier in parallel. Commit refs are mutable, so they are
// only ever read from and written to the last tier; the nearer tiers are
// caches for immutable content.
type Hybrid struct {
	derived

	tiers   []Repository
	gate    util.Gate
	promote bool
	stats   stats.Client
}

var _ Repository = &Hybrid{}

// HybridOptions configures a Hybrid. The zero value is usable.
type HybridOptions struct {
	// Codec serializes trees and commits. It should match the tiers'
	// codec. Defaults to CBOR.
	Codec codec.Serializer

	// Parallelism bounds the number of tiers written to at once.
	// Defaults to DefaultParallelism.
	Parallelism int

	// Promote copies an object found in a far tier into the nearer tiers
	// which missed it. Failures to copy are logged and otherwise ignored.
	Promote bool

	// Stats receives per tier counters, such as "tier0.hit",
	// "tier1.miss" and "tier0.write.error".
	Stats stats.Client
}

// NewHybrid returns a chain of the given tiers. There must be at least one.
func NewHybrid(tiers []Repository, opts HybridOptions) (*Hybrid, error) {
	if len(tiers) == 0 {
		return nil, &ValidationError{Field: "tiers", Reason: "empty"}
	}
	if opts.Codec == nil {
		opts.Codec = codec.CBOR{}
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = DefaultParallelism
	}
	if opts.Stats == nil {
		opts.Stats = &stats.HookClient{}
	}
	h := &Hybrid{
		tiers:   append([]Repository(nil), tiers...),
		gate:    util.NewGate(opts.Parallelism),
		promote: opts.Promote,
		stats:   opts.Stats,
	}
	h.derived = derived{p: h, codec: opts.Codec}
	return h, nil
}

// Tiers returns the repositories making up the chain, nearest first.
func (h *Hybrid) Tiers() []Repository {
	return append([]Repository(nil), h.tiers...)
}

func (h *Hybrid) bump(tier int, what string) {
	h.stats.BumpSum(fmt.Sprintf("tier%d.%s", tier, what), 1)
}

// last is the tier holding the commit refs.
func (h *Hybrid) last() Repository {
	return h.tiers[len(h.tiers)-1]
}

// Exists returns true as soon as one tier has the object.
func (h *Hybrid) Exists(ctx context.Context, id model.Sha1) (bool, error) {
	for i, tier := range h.tiers {
		ok, err := tier.Exists(ctx, id)
		if err != nil {
			return false, errors.Wrapf(err, "tier %d", i)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// ReadObject returns the object from the nearest tier having it.
func (h *Hybrid) ReadObject(ctx context.Context, id model.Sha1) (*model.Blob, error) {
	for i, tier := range h.tiers {
		blob, err := tier.ReadObject(ctx, id)
		if err != nil {
			return nil, errors.Wrapf(err, "tier %d", i)
		}
		if blob == nil {
			h.bump(i, "miss")
			continue
		}
		h.bump(i, "hit")
		if h.promote {
			h.promoteTo(ctx, i, []*model.Blob{blob})
		}
		return blob, nil
	}
	return nil, nil
}

// ReadObjectBatch asks each tier in turn for all of ids, and returns the
// first complete answer. Results are not merged across tiers, so if no tier
// has every object the largest partial answer is returned.
func (h *Hybrid) ReadObjectBatch(ctx context.Context, ids []model.Sha1) (map[model.Sha1]*model.Blob, error) {
	want := len(uniqueIDs(ids))
	var best map[model.Sha1]*model.Blob
	besttier := -1
	for i, tier := range h.tiers {
		result, err := tier.ReadObjectBatch(ctx, ids)
		if err != nil {
			return nil, errors.Wrapf(err, "tier %d", i)
		}
		if len(result) == want {
			h.bump(i, "hit")
			best, besttier = result, i
			break
		}
		h.bump(i, "miss")
		if best == nil || len(result) > len(best) {
			best, besttier = result, i
		}
	}
	if h.promote && besttier > 0 && len(best) > 0 {
		blobs := make([]*model.Blob, 0, len(best))
		for _, blob := range best {
			blobs = append(blobs, blob)
		}
		h.promoteTo(ctx, besttier, blobs)
	}
	return best, nil
}

// promoteTo copies blobs into the tiers before tier n. It is best effort.
func (h *Hybrid) promoteTo(ctx context.Context, n int, blobs []*model.Blob) {
	items := make([]ObjectWrite, len(blobs))
	for i, blob := range blobs {
		meta := blob.Metadata
		items[i] = ObjectWrite{Content: blob.Content, Metadata: &meta}
	}
	for i := 0; i < n; i++ {
		_, err := h.tiers[i].WriteObjectBatch(ctx, items, false)
		if err != nil {
			h.bump(i, "promote.error")
			log.WithFields(log.Fields{"tier": i, "count": len(items)}).Warnln("hybrid: promote:", err)
			raven.CaptureError(err, map[string]string{"Tier": fmt.Sprint(i), "Op": "promote"})
			continue
		}
		h.bump(i, "promote")
	}
}

// fanout calls fn for every tier in parallel. Every tier is attempted.
func (h *Hybrid) fanout(ctx context.Context, fn func(tier Repository) error) error {
	errs := make([]error, len(h.tiers))
	err := h.gate.ForEach(ctx, len(h.tiers), func(i int) error {
		errs[i] = fn(h.tiers[i])
		if errs[i] != nil {
			h.bump(i, "write.error")
			log.WithFields(log.Fields{"tier": i}).Warnln("hybrid: write:", errs[i])
		} else {
			h.bump(i, "write")
		}
		return nil
	})
	if err != nil {
		// cancelled before every tier was started
		return err
	}
	for _, err := range errs {
		if err != nil {
			return &FanoutError{Errs: errs}
		}
	}
	return nil
}

// WriteObject writes content to every tier. If some tiers fail the
// returned error is a *FanoutError; the object stays on the tiers which
// succeeded.
func (h *Hybrid) WriteObject(ctx context.Context, content []byte, meta *model.Metadata, force bool) (model.Sha1, error) {
	id := model.Hash(content)
	err := h.fanout(ctx, func(tier Repository) error {
		_, err := tier.WriteObject(ctx, content, meta, force)
		return err
	})
	return id, err
}

// WriteObjectBatch writes every item to every tier, like WriteObject.
func (h *Hybrid) WriteObjectBatch(ctx context.Context, items []ObjectWrite, force bool) ([]model.Sha1, error) {
	ids := make([]model.Sha1, len(items))
	for i := range items {
		ids[i] = model.Hash(items[i].Content)
	}
	err := h.fanout(ctx, func(tier Repository) error {
		_, err := tier.WriteObjectBatch(ctx, items, force)
		return err
	})
	return ids, err
}

// ReadCommitRef reads from the last tier.
func (h *Hybrid) ReadCommitRef(ctx context.Context, name, branch string) (*model.CommitRef, error) {
	return h.last().ReadCommitRef(ctx, name, branch)
}

// GetBranches reads from the last tier.
func (h *Hybrid) GetBranches(ctx context.Context, name string) ([]model.CommitRef, error) {
	return h.last().GetBranches(ctx, name)
}

// GetNames reads from the last tier.
func (h *Hybrid) GetNames(ctx context.Context) ([]string, error) {
	return h.last().GetNames(ctx)
}

// WriteCommitRef writes to the last tier only.
func (h *Hybrid) WriteCommitRef(ctx context.Context, previous *model.CommitID, name string, ref model.CommitRef) error {
	return h.last().WriteCommitRef(ctx, previous, name, ref)
}
