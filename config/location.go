package config

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// splitBucketPrefix will take a path and separate the bucket name from a
// prefix, if any. It makes sure the prefix returned is either empty or ends
// with a slash "/".
//
// examples:
//
//	"" -> ("", "")
//	"bucket" -> ("bucket", "")
//	"bucket/and/a/prefix" -> ("bucket", "and/a/prefix/")
func splitBucketPrefix(location string) (bucket, prefix string) {
	if location == "" {
		return
	}
	location = strings.TrimPrefix(location, "/")
	v := strings.SplitN(location, "/", 2)
	bucket = v[0]
	if len(v) > 1 {
		prefix = path.Clean(v[1])
		if prefix == "." {
			prefix = ""
		}
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix = prefix + "/"
	}
	return
}

// ParseLocation turns a location string into a Tier. It understands
//
//	""  or "memory:"              memory
//	"/some/path" or "file:/path"  file
//	"s3:/bucket/prefix"           s3 on AWS
//	"s3://host:port/bucket"       s3 on another service
//	"ql:/path/to/db" or "ql:memory"
//	"mysql:user:pw@tcp(host:3306)/database"
func ParseLocation(location string) (Tier, error) {
	switch {
	case location == "" || location == "memory:":
		return Tier{Kind: "memory"}, nil
	case strings.HasPrefix(location, "mysql:"):
		// a DSN does not parse as a URL
		dsn := strings.TrimPrefix(location, "mysql:")
		if dsn == "" {
			return Tier{}, fmt.Errorf("no dsn in %q", location)
		}
		return Tier{Kind: "mysql", DSN: dsn}, nil
	}
	u, err := url.Parse(location)
	if err != nil {
		return Tier{}, err
	}
	switch u.Scheme {
	case "", "file":
		return Tier{Kind: "file", Path: urlPath(u)}, nil
	case "ql":
		return Tier{Kind: "ql", Path: urlPath(u)}, nil
	case "s3":
		t := Tier{Kind: "s3"}
		if u.Host != "" {
			t.Endpoint = u.Host
		}
		t.Bucket, t.Prefix = splitBucketPrefix(u.Path)
		if t.Bucket == "" {
			return Tier{}, fmt.Errorf("no bucket name in %q", location)
		}
		return t, nil
	}
	return Tier{}, fmt.Errorf("unknown location scheme %q", u.Scheme)
}

// urlPath returns the path of u, which is opaque for locations such as
// "file:rel/path".
func urlPath(u *url.URL) string {
	if u.Path == "" {
		return u.Opaque
	}
	return u.Path
}
