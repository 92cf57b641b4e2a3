package config

import (
	"crypto/tls"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/certifi/gocertifi"
	"github.com/pkg/errors"

	"github.com/ndlib/chasm/codec"
	"github.com/ndlib/chasm/compression"
	"github.com/ndlib/chasm/repository"
	"github.com/ndlib/chasm/store"
)

// Open builds the repository described by cfg. The returned Closer
// releases any database handles and should be called when the repository
// is no longer needed.
func Open(cfg *Config) (repository.Repository, io.Closer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	c, _ := codec.ByName(cfg.Codec)
	tag, _ := compression.Parse(cfg.Compression)
	opts := repository.Options{
		Codec:       c,
		Compression: tag,
		Parallelism: cfg.Parallelism,
	}
	var closers closerList
	var tiers []repository.Repository
	for i, t := range cfg.Tiers {
		objects, refs, closer, err := openTier(t)
		if err != nil {
			closers.Close()
			return nil, nil, errors.Wrapf(err, "tier %d", i)
		}
		if closer != nil {
			closers = append(closers, closer)
		}
		tiers = append(tiers, repository.New(objects, refs, opts))
	}
	if len(tiers) == 1 {
		return tiers[0], closers, nil
	}
	h, err := repository.NewHybrid(tiers, repository.HybridOptions{
		Codec:       c,
		Parallelism: cfg.Parallelism,
		Promote:     cfg.Promote,
	})
	if err != nil {
		closers.Close()
		return nil, nil, err
	}
	return h, closers, nil
}

// openTier returns the object and ref drivers for t.
func openTier(t Tier) (store.Store, store.Versioned, io.Closer, error) {
	var objects store.Store
	var refs store.Versioned
	var closer io.Closer
	switch t.Kind {
	case "memory":
		objects, refs = store.NewMemory(), store.NewMemory()
	case "file":
		o := filepath.Join(t.Path, "objects")
		r := filepath.Join(t.Path, "refs")
		for _, dir := range []string{o, r} {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, nil, nil, err
			}
		}
		objects, refs = store.NewFileSystem(o), store.NewFileSystem(r)
	case "s3":
		sess, err := s3Session(t)
		if err != nil {
			return nil, nil, nil, err
		}
		objects = store.NewS3(t.Bucket, t.Prefix+"objects/", sess)
		refs = store.NewS3(t.Bucket, t.Prefix+"refs/", sess)
		// the prefix is handled by the driver
		return objects, refs, nil, nil
	case "ql", "mysql":
		var db *store.DB
		var err error
		if t.Kind == "ql" {
			db, err = store.OpenQL(t.Path)
		} else {
			db, err = store.OpenMysql(t.DSN)
		}
		if err != nil {
			return nil, nil, nil, err
		}
		objects = store.NewSQL(db, store.ObjectTable)
		refs = store.NewSQL(db, store.RefTable)
		closer = db
	}
	if t.Prefix != "" {
		objects = store.NewWithPrefix(objects, t.Prefix)
		refs = store.NewVersionedWithPrefix(refs, t.Prefix)
	}
	return objects, refs, closer, nil
}

// s3Session makes an AWS session for the tier. Credentials come from the
// usual AWS environment variables and files.
func s3Session(t Tier) (*session.Session, error) {
	conf := &aws.Config{}
	region := t.Region
	if region == "" {
		region = "us-east-1"
	}
	conf.Region = aws.String(region)
	if t.Endpoint != "" {
		endpoint := t.Endpoint
		// disable SSL for local development
		if strings.Contains(endpoint, "localhost") {
			conf.DisableSSL = aws.Bool(true)
		}
		conf.Endpoint = aws.String(endpoint)
		conf.S3ForcePathStyle = aws.Bool(true)
	}
	if t.Certifi {
		pool, err := gocertifi.CACerts()
		if err != nil {
			return nil, err
		}
		conf.HTTPClient = &http.Client{
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{RootCAs: pool},
			},
		}
	}
	return session.NewSession(conf)
}

// closerList closes every database opened for a configuration.
type closerList []io.Closer

func (c closerList) Close() error {
	var first error
	for _, closer := range c {
		if err := closer.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
