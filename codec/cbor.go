package codec

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/ndlib/chasm/model"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v with Core Deterministic Encoding. It is exported for
// other packages which need stable CBOR, such as the repository's object
// envelope.
func Marshal(v interface{}) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v interface{}) error {
	return decMode.Unmarshal(data, v)
}

// CBOR is the default serializer.
type CBOR struct{}

var _ Serializer = CBOR{}

func (CBOR) Name() string { return "cbor" }

func (CBOR) SerializeCommit(c model.Commit) ([]byte, error) {
	return encMode.Marshal(toWireCommit(c))
}

func (CBOR) DeserializeCommit(data []byte) (model.Commit, error) {
	var w wireCommit
	if err := decMode.Unmarshal(data, &w); err != nil {
		return model.Commit{}, malformed("cbor", "commit", err)
	}
	c, err := fromWireCommit(w)
	if err != nil {
		return c, malformed("cbor", "commit", err)
	}
	return c, nil
}

func (CBOR) SerializeTree(m model.TreeNodeMap) ([]byte, error) {
	return encMode.Marshal(toWireTree(m))
}

func (CBOR) DeserializeTree(data []byte) (model.TreeNodeMap, error) {
	var w wireTree
	if err := decMode.Unmarshal(data, &w); err != nil {
		return model.TreeNodeMap{}, malformed("cbor", "tree", err)
	}
	m, err := fromWireTree(w)
	if err != nil {
		return m, malformed("cbor", "tree", err)
	}
	return m, nil
}

func (CBOR) SerializeCommitID(id model.CommitID) ([]byte, error) {
	return encMode.Marshal(id.Sha1().Bytes())
}

func (CBOR) DeserializeCommitID(data []byte) (model.CommitID, error) {
	var b []byte
	if err := decMode.Unmarshal(data, &b); err != nil {
		return model.EmptyCommitID, malformed("cbor", "commit id", err)
	}
	h, err := model.Sha1FromBytes(b)
	if err != nil {
		return model.EmptyCommitID, malformed("cbor", "commit id", err)
	}
	return model.CommitID(h), nil
}
