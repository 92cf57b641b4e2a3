package store

import (
	"bytes"
	"context"
	"io/ioutil"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	raven "github.com/getsentry/raven-go"
	"github.com/golang/groupcache/singleflight"
	log "github.com/sirupsen/logrus"
)

// A S3 store represents a store that is kept on AWS S3 storage, or on
// anything speaking the same API (e.g. Minio).
// Do not change Bucket or Prefix concurrently with calls using the structure.
//
// Conditional writes use the If-None-Match and If-Match request headers, so
// the ETag of an object is its version token.
type S3 struct {
	svc    *s3.S3
	Bucket string
	Prefix string
	known  *presenceCache     // keep HEAD results
	heads  singleflight.Group // one HEAD in flight per key
}

var (
	_ Store     = &S3{}
	_ Versioned = &S3{}
)

// NewS3 creates a new S3 store. It will use the given bucket and will prepend
// prefix to all keys. This is to allow for a bucket to be used for more than
// one store. For example if prefix were "cache/" then a Get("hello") would
// look for the key "cache/hello" in the bucket. The authorization method and
// credentials in the session are used for all accesses.
func NewS3(bucket, prefix string, awsSession *session.Session) *S3 {
	return &S3{
		Bucket: bucket,
		Prefix: prefix,
		svc:    s3.New(awsSession),
		known:  newPresenceCache(),
	}
}

// ListPrefix returns the keys in this store that have the given prefix.
// The argument prefix is added to the store's Prefix.
func (s *S3) ListPrefix(ctx context.Context, prefix string) ([]string, error) {
	var result []string
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.Bucket),
		Prefix: aws.String(s.Prefix + prefix),
	}
	err := s.svc.ListObjectsV2PagesWithContext(ctx, input,
		func(page *s3.ListObjectsV2Output, lastpage bool) bool {
			for _, item := range page.Contents {
				result = append(result, strings.TrimPrefix(*item.Key, s.Prefix))
			}
			return !lastpage
		})
	if err != nil {
		s.report(err, "ListPrefix", prefix)
	}
	return result, err
}

// Get downloads the object for key. A 404 from S3 is reported as ok ==
// false rather than as an error.
func (s *S3) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, _, ok, err := s.Load(ctx, key)
	return data, ok, err
}

// Exists checks for key with a HEAD request. Answers are cached, which
// drastically cuts down on the number of HEAD requests.
func (s *S3) Exists(ctx context.Context, key string) (bool, error) {
	var p presence
	var err error
	for i := 0; i < 3; i++ {
		p, err = s.known.Lookup(key, func(key string) (bool, error) {
			v, err := s.heads.Do(key, func() (interface{}, error) {
				return s.stat0(ctx, key)
			})
			if err != nil {
				return false, err
			}
			return v.(bool), nil
		})
		// a HEAD shared with a cancelled caller is retried under ctx
		if !CanceledByOther(ctx, err) {
			break
		}
	}
	return p == present, err
}

// stat0 implements the actual HEAD request to s3. You probably want to call
// Exists().
func (s *S3) stat0(ctx context.Context, key string) (bool, error) {
	input := &s3.HeadObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Prefix + key),
	}
	_, err := s.svc.HeadObjectWithContext(ctx, input)
	if isNotFound(err) {
		return false, nil
	} else if err != nil {
		s.report(err, "Head", key)
		return false, err
	}
	return true, nil
}

// Put uploads data with a single PUT. Unless overwrite is set the request
// carries "If-None-Match: *", so S3 refuses to replace an existing object.
func (s *S3) Put(ctx context.Context, key string, data []byte, overwrite bool) error {
	if !overwrite {
		if p, _ := s.known.Lookup(key, nil); p == present {
			return ErrKeyExists
		}
	}
	header := "If-None-Match"
	value := "*"
	if overwrite {
		header = ""
	}
	_, err := s.put(ctx, key, data, header, value)
	if isPreconditionFailed(err) {
		return ErrKeyExists
	}
	return err
}

// Delete will remove the given key from the store. The store's Prefix is
// prepended first. It is not an error to delete something that doesn't exist.
func (s *S3) Delete(ctx context.Context, key string) error {
	_, err := s.svc.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Prefix + key),
	})
	if err != nil {
		s.report(err, "Delete", key)
	} else {
		s.known.Mark(key, false)
	}
	return err
}

// Load downloads the object for key along with its ETag.
func (s *S3) Load(ctx context.Context, key string) ([]byte, Token, bool, error) {
	output, err := s.svc.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Prefix + key),
	})
	if isNotFound(err) {
		s.known.Forget(key)
		return nil, NoToken, false, nil
	} else if err != nil {
		s.report(err, "Get", key)
		return nil, NoToken, false, err
	}
	defer output.Body.Close()
	data, err := ioutil.ReadAll(output.Body)
	if err != nil {
		return nil, NoToken, false, err
	}
	s.known.Mark(key, true)
	return data, Token(aws.StringValue(output.ETag)), true, nil
}

// Save uploads data only if the object's ETag is still prev. S3 answers a
// failed condition with 412 Precondition Failed, or 409 when a concurrent
// conditional write is in progress; both become ErrPrecondition.
func (s *S3) Save(ctx context.Context, key string, data []byte, prev Token) (Token, error) {
	header, value := "If-Match", string(prev)
	if prev == NoToken {
		header, value = "If-None-Match", "*"
	}
	output, err := s.put(ctx, key, data, header, value)
	if isPreconditionFailed(err) {
		return NoToken, ErrPrecondition
	} else if err != nil {
		return NoToken, err
	}
	return Token(aws.StringValue(output.ETag)), nil
}

// put does a PutObject, optionally adding one conditional header.
func (s *S3) put(ctx context.Context, key string, data []byte, header, value string) (*s3.PutObjectOutput, error) {
	req, output := s.svc.PutObjectRequest(&s3.PutObjectInput{
		Body:          bytes.NewReader(data),
		Bucket:        aws.String(s.Bucket),
		Key:           aws.String(s.Prefix + key),
		ContentLength: aws.Int64(int64(len(data))),
	})
	req.SetContext(ctx)
	if header != "" {
		req.HTTPRequest.Header.Set(header, value)
	}
	err := req.Send()
	if err != nil {
		if !isPreconditionFailed(err) {
			s.report(err, "Put", key)
		}
		return nil, err
	}
	s.known.Mark(key, true)
	return output, nil
}

func (s *S3) report(err error, op, key string) {
	log.WithFields(log.Fields{
		"bucket": s.Bucket,
		"prefix": s.Prefix,
		"key":    key,
	}).Errorln("S3", op, err)
	raven.CaptureError(err, map[string]string{"Bucket": s.Bucket, "Prefix": s.Prefix, "Key": key, "Op": op})
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(awserr.RequestFailure); ok && e.StatusCode() == http.StatusNotFound {
		return true
	}
	if e, ok := err.(awserr.Error); ok {
		return e.Code() == s3.ErrCodeNoSuchKey || e.Code() == "NotFound"
	}
	return false
}

func isPreconditionFailed(err error) bool {
	if e, ok := err.(awserr.RequestFailure); ok {
		return e.StatusCode() == http.StatusPreconditionFailed ||
			e.StatusCode() == http.StatusConflict
	}
	return false
}
