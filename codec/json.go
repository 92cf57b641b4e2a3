package codec

import (
	"encoding/base64"
	"encoding/json"

	"github.com/antonholmquist/jason"
	"github.com/pkg/errors"

	"github.com/ndlib/chasm/model"
)

// JSON writes with encoding/json and reads with jason. Ids are lower case
// hex and inline data is standard base64.
type JSON struct{}

var _ Serializer = JSON{}

type jsonAudit struct {
	Name    string `json:"name"`
	Seconds int64  `json:"seconds"`
	Nanos   int32  `json:"nanos"`
	Offset  int32  `json:"offset"`
}

type jsonCommit struct {
	Parents   []string  `json:"parents"`
	Tree      string    `json:"tree"`
	Author    jsonAudit `json:"author"`
	Committer jsonAudit `json:"committer"`
	Message   string    `json:"message"`
}

type jsonNode struct {
	Name string `json:"name"`
	Kind uint8  `json:"kind"`
	ID   string `json:"id"`
	Data string `json:"data,omitempty"`
}

type jsonTree struct {
	Nodes []jsonNode `json:"nodes"`
}

func (JSON) Name() string { return "json" }

func (JSON) SerializeCommit(c model.Commit) ([]byte, error) {
	w := toWireCommit(c)
	jc := jsonCommit{
		Parents:   make([]string, 0, len(w.Parents)),
		Tree:      c.TreeID.String(),
		Author:    jsonAudit(w.Author),
		Committer: jsonAudit(w.Committer),
		Message:   w.Message,
	}
	for _, p := range model.CanonicalParents(c.ParentIDs) {
		jc.Parents = append(jc.Parents, p.String())
	}
	return json.Marshal(jc)
}

func (JSON) DeserializeCommit(data []byte) (model.Commit, error) {
	c, err := readJSONCommit(data)
	if err != nil {
		return model.Commit{}, malformed("json", "commit", err)
	}
	return c, nil
}

func readJSONCommit(data []byte) (model.Commit, error) {
	var c model.Commit
	obj, err := jason.NewObjectFromBytes(data)
	if err != nil {
		return c, err
	}
	tree, err := obj.GetString("tree")
	if err != nil {
		return c, err
	}
	treeID, err := model.ParseTreeID(tree)
	if err != nil {
		return c, err
	}
	parentList, err := obj.GetStringArray("parents")
	if err != nil {
		return c, err
	}
	var parents []model.CommitID
	for _, p := range parentList {
		pid, err := model.ParseCommitID(p)
		if err != nil {
			return c, err
		}
		parents = append(parents, pid)
	}
	author, err := readJSONAudit(obj, "author")
	if err != nil {
		return c, err
	}
	committer, err := readJSONAudit(obj, "committer")
	if err != nil {
		return c, err
	}
	message, err := obj.GetString("message")
	if err != nil {
		return c, err
	}
	return model.NewCommit(parents, treeID, author, committer, message), nil
}

func readJSONAudit(obj *jason.Object, key string) (model.Audit, error) {
	var a model.Audit
	name, err := obj.GetString(key, "name")
	if err != nil {
		return a, err
	}
	seconds, err := obj.GetInt64(key, "seconds")
	if err != nil {
		return a, err
	}
	nanos, err := obj.GetInt64(key, "nanos")
	if err != nil {
		return a, err
	}
	offset, err := obj.GetInt64(key, "offset")
	if err != nil {
		return a, err
	}
	a.Name = name
	a.Timestamp = makeTime(seconds, nanos, int(offset))
	return a, nil
}

func (JSON) SerializeTree(m model.TreeNodeMap) ([]byte, error) {
	nodes := m.Nodes()
	jt := jsonTree{Nodes: make([]jsonNode, 0, len(nodes))}
	for _, n := range nodes {
		jn := jsonNode{Name: n.Name, Kind: uint8(n.Kind), ID: n.ID.String()}
		if n.Data != nil {
			jn.Data = base64.StdEncoding.EncodeToString(n.Data)
		}
		jt.Nodes = append(jt.Nodes, jn)
	}
	return json.Marshal(jt)
}

func (JSON) DeserializeTree(data []byte) (model.TreeNodeMap, error) {
	m, err := readJSONTree(data)
	if err != nil {
		return model.TreeNodeMap{}, malformed("json", "tree", err)
	}
	return m, nil
}

func readJSONTree(data []byte) (model.TreeNodeMap, error) {
	var m model.TreeNodeMap
	obj, err := jason.NewObjectFromBytes(data)
	if err != nil {
		return m, err
	}
	nodes, err := obj.GetObjectArray("nodes")
	if err != nil {
		return m, err
	}
	for _, jn := range nodes {
		var n model.TreeNode
		n.Name, err = jn.GetString("name")
		if err != nil {
			return m, err
		}
		kind, err := jn.GetInt64("kind")
		if err != nil {
			return m, err
		}
		n.Kind = model.NodeKind(kind)
		id, err := jn.GetString("id")
		if err != nil {
			return m, err
		}
		n.ID, err = model.ParseSha1(id)
		if err != nil {
			return m, err
		}
		if _, ok := jn.Map()["data"]; ok {
			s, err := jn.GetString("data")
			if err != nil {
				return m, err
			}
			n.Data, err = base64.StdEncoding.DecodeString(s)
			if err != nil {
				return m, errors.Wrapf(err, "node %q data", n.Name)
			}
		}
		if err = m.Add(n); err != nil {
			return m, err
		}
	}
	return m, nil
}

func (JSON) SerializeCommitID(id model.CommitID) ([]byte, error) {
	return json.Marshal(id.String())
}

func (JSON) DeserializeCommitID(data []byte) (model.CommitID, error) {
	v, err := jason.NewValueFromBytes(data)
	if err != nil {
		return model.EmptyCommitID, malformed("json", "commit id", err)
	}
	s, err := v.String()
	if err != nil {
		return model.EmptyCommitID, malformed("json", "commit id", err)
	}
	id, err := model.ParseCommitID(s)
	if err != nil {
		return model.EmptyCommitID, malformed("json", "commit id", err)
	}
	return id, nil
}
