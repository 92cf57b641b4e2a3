package codec

import (
	"bytes"

	"github.com/vmihailenco/msgpack"

	"github.com/ndlib/chasm/model"
)

// MsgPack is a compact binary serializer. Structs are written as maps with
// their fields in declaration order.
type MsgPack struct{}

var _ Serializer = MsgPack{}

func (MsgPack) Name() string { return "msgpack" }

func msgpackEncode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf).SortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (MsgPack) SerializeCommit(c model.Commit) ([]byte, error) {
	return msgpackEncode(toWireCommit(c))
}

func (MsgPack) DeserializeCommit(data []byte) (model.Commit, error) {
	var w wireCommit
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return model.Commit{}, malformed("msgpack", "commit", err)
	}
	c, err := fromWireCommit(w)
	if err != nil {
		return c, malformed("msgpack", "commit", err)
	}
	return c, nil
}

func (MsgPack) SerializeTree(m model.TreeNodeMap) ([]byte, error) {
	return msgpackEncode(toWireTree(m))
}

func (MsgPack) DeserializeTree(data []byte) (model.TreeNodeMap, error) {
	var w wireTree
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return model.TreeNodeMap{}, malformed("msgpack", "tree", err)
	}
	m, err := fromWireTree(w)
	if err != nil {
		return m, malformed("msgpack", "tree", err)
	}
	return m, nil
}

func (MsgPack) SerializeCommitID(id model.CommitID) ([]byte, error) {
	return msgpackEncode(id.Sha1().Bytes())
}

func (MsgPack) DeserializeCommitID(data []byte) (model.CommitID, error) {
	var b []byte
	if err := msgpack.Unmarshal(data, &b); err != nil {
		return model.EmptyCommitID, malformed("msgpack", "commit id", err)
	}
	h, err := model.Sha1FromBytes(b)
	if err != nil {
		return model.EmptyCommitID, malformed("msgpack", "commit id", err)
	}
	return model.CommitID(h), nil
}
