package repository

import (
	"fmt"

	"github.com/getsentry/raven-go"
	log "github.com/sirupsen/logrus"

	"github.com/ndlib/chasm/codec"
	"github.com/ndlib/chasm/compression"
	"github.com/ndlib/chasm/model"
	"github.com/ndlib/chasm/util"
)

// envelope is the stored form of an object. The metadata rides along with
// the body but is not part of the object's id.
type envelope struct {
	_           struct{} `cbor:",toarray"`
	ContentType string
	Filename    string
	Compression compression.Tag
	Size        int
	Body        []byte
}

// seal returns the stored bytes for content.
func seal(content []byte, meta *model.Metadata, tag compression.Tag) ([]byte, error) {
	var result []byte
	err := util.WithBuffer(compression.MaxSize(len(content)), func(buf []byte) error {
		body, used, err := compression.Compress(buf, content, tag)
		if err != nil {
			return err
		}
		env := envelope{
			Compression: used,
			Size:        len(content),
			Body:        body,
		}
		if meta != nil {
			env.ContentType = meta.ContentType
			env.Filename = meta.Filename
		}
		// Marshal copies body out of buf
		result, err = codec.Marshal(env)
		return err
	})
	return result, err
}

// unseal decodes stored bytes and checks they hash to id.
func unseal(id model.Sha1, data []byte) (*model.Blob, error) {
	var env envelope
	if err := codec.Unmarshal(data, &env); err != nil {
		return nil, corrupt(id.String(), err)
	}
	if env.Size < 0 || env.Size > compression.MaxDecodedSize {
		return nil, corrupt(id.String(), fmt.Errorf("impossible size %d", env.Size))
	}
	content, err := compression.Decompress(env.Body, env.Compression, env.Size)
	if err != nil {
		return nil, corrupt(id.String(), err)
	}
	if got := model.Hash(content); got != id {
		return nil, corrupt(id.String(), fmt.Errorf("content hashes to %s", got))
	}
	if len(content) == 0 {
		content = nil
	}
	return &model.Blob{
		ID:      id,
		Content: content,
		Metadata: model.Metadata{
			ContentType: env.ContentType,
			Filename:    env.Filename,
		},
	}, nil
}

// corrupt makes a CorruptionError and reports it, since corruption always
// needs a person to look at it.
func corrupt(id string, err error) error {
	log.WithFields(log.Fields{"id": id}).Errorln("corrupt object:", err)
	raven.CaptureError(err, map[string]string{"ID": id, "Kind": "corruption"})
	return &CorruptionError{ID: id, Err: err}
}
