// Package persist opens the byte store a configuration names.
package persist

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/pkg/errors"

	"github.com/jrhy/iavl/kv"
	"github.com/jrhy/iavl/kv/memkv"
	"github.com/jrhy/iavl/persist/bolt"
	"github.com/jrhy/iavl/persist/file"
	"github.com/jrhy/iavl/persist/leveldb"
	s3Store "github.com/jrhy/iavl/persist/s3"
)

// Backend types.
const (
	Memory  = "memory"
	Bolt    = "bolt"
	LevelDB = "leveldb"
	File    = "file"
	S3      = "s3"
)

// BackendConfig describes a byte store. Path applies to the bolt,
// leveldb and file backends; the S3 fields to s3, whose credentials come
// from the usual AWS environment.
type BackendConfig struct {
	Type string `yaml:"type"`
	Path string `yaml:"path,omitempty"`

	Bucket   string `yaml:"bucket,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
	Region   string `yaml:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
}

// Open opens the configured store. The returned function releases it.
func Open(cfg BackendConfig) (kv.Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Type {
	case "", Memory:
		return memkv.New(), noop, nil
	case Bolt:
		s, err := bolt.Open(cfg.Path, nil)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case LevelDB:
		s, err := leveldb.Open(cfg.Path, nil)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case File:
		if cfg.Path == "" {
			return nil, nil, errors.New("file backend needs a path")
		}
		return file.NewStoreForPath(cfg.Path), noop, nil
	case S3:
		if cfg.Bucket == "" {
			return nil, nil, errors.New("s3 backend needs a bucket")
		}
		config := aws.NewConfig()
		if cfg.Region != "" {
			config = config.WithRegion(cfg.Region)
		}
		if cfg.Endpoint != "" {
			config = config.WithEndpoint(cfg.Endpoint).WithS3ForcePathStyle(true)
		}
		sess, err := session.NewSession(config)
		if err != nil {
			return nil, nil, errors.Wrap(err, "s3 session")
		}
		return s3Store.NewStore(s3.New(sess), cfg.Bucket, cfg.Prefix), noop, nil
	}
	return nil, nil, errors.Errorf("unknown backend type %q", cfg.Type)
}
