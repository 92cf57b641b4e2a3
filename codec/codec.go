package codec

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/ndlib/chasm/model"
)

// A Serializer converts model values to and from their canonical bytes.
type Serializer interface {
	// Name identifies the serializer in configuration files.
	Name() string

	SerializeCommit(c model.Commit) ([]byte, error)
	DeserializeCommit(data []byte) (model.Commit, error)

	SerializeTree(m model.TreeNodeMap) ([]byte, error)
	DeserializeTree(data []byte) (model.TreeNodeMap, error)

	SerializeCommitID(id model.CommitID) ([]byte, error)
	DeserializeCommitID(data []byte) (model.CommitID, error)
}

// MalformedError is returned when bytes cannot be decoded.
type MalformedError struct {
	Codec string
	What  string
	Err   error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("codec %s: malformed %s: %s", e.Codec, e.What, e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

func malformed(codec, what string, err error) error {
	return &MalformedError{Codec: codec, What: what, Err: err}
}

// IsMalformed is true if err, or anything it wraps, is a *MalformedError.
func IsMalformed(err error) bool {
	var m *MalformedError
	return errors.As(err, &m)
}

// ByName returns the serializer with the given name. The empty name selects
// the default, CBOR.
func ByName(name string) (Serializer, error) {
	switch strings.ToLower(name) {
	case "", "cbor":
		return CBOR{}, nil
	case "json":
		return JSON{}, nil
	case "msgpack":
		return MsgPack{}, nil
	}
	return nil, fmt.Errorf("unknown codec %q", name)
}

// The binary codecs share these wire structs. Field order is the
// encoding order.

type wireNode struct {
	Name string `json:"n" msgpack:"n"`
	Kind uint8  `json:"k" msgpack:"k"`
	ID   []byte `json:"i" msgpack:"i"`
	Data []byte `json:"d,omitempty" msgpack:"d,omitempty"`
}

type wireAudit struct {
	Name    string `json:"n" msgpack:"n"`
	Seconds int64  `json:"s" msgpack:"s"`
	Nanos   int32  `json:"ns" msgpack:"ns"`
	Offset  int32  `json:"o" msgpack:"o"`
}

type wireCommit struct {
	Parents   [][]byte  `json:"p" msgpack:"p"`
	Tree      []byte    `json:"t" msgpack:"t"`
	Author    wireAudit `json:"a" msgpack:"a"`
	Committer wireAudit `json:"c" msgpack:"c"`
	Message   string    `json:"m" msgpack:"m"`
}

type wireTree struct {
	Nodes []wireNode `json:"e" msgpack:"e"`
}

func toWireAudit(a model.Audit) wireAudit {
	_, offset := a.Timestamp.Zone()
	return wireAudit{
		Name:    a.Name,
		Seconds: a.Timestamp.Unix(),
		Nanos:   int32(a.Timestamp.Nanosecond()),
		Offset:  int32(offset),
	}
}

func fromWireAudit(w wireAudit) model.Audit {
	return model.Audit{
		Name:      w.Name,
		Timestamp: makeTime(w.Seconds, int64(w.Nanos), int(w.Offset)),
	}
}

// makeTime rebuilds a timestamp in a fixed zone with the given offset.
func makeTime(seconds, nanos int64, offset int) time.Time {
	loc := time.UTC
	if offset != 0 {
		loc = time.FixedZone("", offset)
	}
	return time.Unix(seconds, nanos).In(loc)
}

func toWireCommit(c model.Commit) wireCommit {
	parents := model.CanonicalParents(c.ParentIDs)
	w := wireCommit{
		Tree:      c.TreeID.Sha1().Bytes(),
		Author:    toWireAudit(c.Author),
		Committer: toWireAudit(c.Committer),
		Message:   c.Message,
	}
	for _, p := range parents {
		w.Parents = append(w.Parents, p.Sha1().Bytes())
	}
	return w
}

func fromWireCommit(w wireCommit) (model.Commit, error) {
	var c model.Commit
	tree, err := model.Sha1FromBytes(w.Tree)
	if err != nil {
		return c, errors.Wrap(err, "tree id")
	}
	parents := make([]model.CommitID, 0, len(w.Parents))
	for _, p := range w.Parents {
		h, err := model.Sha1FromBytes(p)
		if err != nil {
			return c, errors.Wrap(err, "parent id")
		}
		parents = append(parents, model.CommitID(h))
	}
	return model.NewCommit(parents, model.TreeID(tree), fromWireAudit(w.Author), fromWireAudit(w.Committer), w.Message), nil
}

func toWireTree(m model.TreeNodeMap) wireTree {
	nodes := m.Nodes()
	w := wireTree{Nodes: make([]wireNode, 0, len(nodes))}
	for _, n := range nodes {
		w.Nodes = append(w.Nodes, wireNode{
			Name: n.Name,
			Kind: uint8(n.Kind),
			ID:   n.ID.Bytes(),
			Data: n.Data,
		})
	}
	return w
}

func fromWireTree(w wireTree) (model.TreeNodeMap, error) {
	var m model.TreeNodeMap
	for _, n := range w.Nodes {
		h, err := model.Sha1FromBytes(n.ID)
		if err != nil {
			return model.TreeNodeMap{}, errors.Wrapf(err, "node %q", n.Name)
		}
		err = m.Add(model.TreeNode{
			Name: n.Name,
			Kind: model.NodeKind(n.Kind),
			ID:   h,
			Data: n.Data,
		})
		if err != nil {
			return model.TreeNodeMap{}, err
		}
	}
	return m, nil
}
